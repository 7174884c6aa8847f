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
	env.Require(env.AWSRegion, env.AWSID, env.AWSSecret, env.WidgetSecretKey, env.ChatRedisURL)

	queueManager := queue.NewRequestQueueManager(10, 10)
	db, err := database.NewDatabase()
	if err != nil {
		log.Fatalf("db init failed: %v", err)
	}

	server := api.NewAPIServer(
		":81",
		queueManager,
		db,
		nil,
		realtime.NewPublisher(),
		router.UtilsRoutes("/api/widget/v1"),
		router.WidgetRoutes("/api/widget/v1"),
	)

	server.Run()
}
