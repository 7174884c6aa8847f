package main

import (
	"log"

	"widget-chat-backend/internal/api"
	"widget-chat-backend/internal/api/router"
	"widget-chat-backend/internal/database"
	"widget-chat-backend/internal/env"
	"widget-chat-backend/internal/queue"
	"widget-chat-backend/internal/realtime"
)

func main() {
	env.Require(env.AWSRegion, env.AWSID, env.AWSSecret, env.OperatorSecret, env.ChatRedisURL)

	queueManager := queue.NewRequestQueueManager(10, 10)
	db, err := database.NewDatabase()
	if err != nil {
		log.Fatalf("db init failed: %v", err)
	}

	server := api.NewAPIServer(
		":82",
		queueManager,
		db,
		nil,
		realtime.NewPublisher(),
		router.UtilsRoutes("/api/operator/v1"),
		router.OperatorRoutes("/api/operator/v1"),
	)

	server.Run()
}
