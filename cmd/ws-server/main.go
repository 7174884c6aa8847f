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
	env.Require(env.AWSRegion, env.AWSID, env.AWSSecret, env.WidgetSecretKey, env.OperatorSecret, env.ChatRedisURL)

	queueManager := queue.NewRequestQueueManager(10, 10)
	db, err := database.NewDatabase()
	if err != nil {
		log.Fatalf("db init failed: %v", err)
	}

	hub := realtime.NewHub()
	go hub.Run()
	handler := realtime.NewHandler(hub)

	server := api.NewAPIServer(
		":83",
		queueManager,
		db,
		handler,
		realtime.NewPublisher(),
		router.UtilsRoutes("/api/ws/v1"),
		router.RealtimeRoutes("/api/ws/v1"),
	)

	server.Run()
}
