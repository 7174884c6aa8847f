package router

import (
	"strconv"
	"time"

	"widget-chat-backend/internal/api"
	"widget-chat-backend/internal/env"
	messagesvc "widget-chat-backend/internal/service/message"
	sessionsvc "widget-chat-backend/internal/service/session"
	sitesvc "widget-chat-backend/internal/service/site"
	threadsvc "widget-chat-backend/internal/service/thread"
	"widget-chat-backend/internal/token"
)

// services wires the full service graph for one server process. Routers
// call this per registrar; the constructors are cheap and stateless beyond
// the shared database handle.
type services struct {
	sites    *sitesvc.Service
	threads  *threadsvc.Manager
	tokens   *token.Service
	sessions *sessionsvc.Service
	messages *messagesvc.Service
}

func buildServices(s *api.APIServer) services {
	db := s.Database()

	sites := sitesvc.New(sitesvc.NewDynamoRepository(db))
	threads := threadsvc.NewManager(threadsvc.NewDynamoRepository(db), staleAfterFromEnv(), nil)
	tokens := token.New([]byte(env.Get(env.WidgetSecretKey)), tokenTTLFromEnv())
	sessions := sessionsvc.New(sessionsvc.NewDynamoRepository(db), sites, threads, tokens, nil)

	var pub messagesvc.Publisher
	if p := s.Publisher(); p != nil {
		pub = p
	}
	messages := messagesvc.New(messagesvc.NewDynamoRepository(db), sites, sessions, threads, tokens, pub, nil)

	return services{
		sites:    sites,
		threads:  threads,
		tokens:   tokens,
		sessions: sessions,
		messages: messages,
	}
}

func tokenTTLFromEnv() time.Duration {
	raw := env.GetOrDefault(env.WidgetTokenTTL, "3600")
	seconds, err := strconv.Atoi(raw)
	if err != nil || seconds <= 0 {
		return time.Hour
	}
	return time.Duration(seconds) * time.Second
}

func staleAfterFromEnv() time.Duration {
	raw := env.Get(env.ThreadStaleAfter)
	if raw == "" {
		return 0
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0
	}
	return d
}
