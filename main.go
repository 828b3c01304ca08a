package main

import (
	"context"
	"encoding/hex"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"chat-sync/internal/db"
	"chat-sync/internal/handlers"
	"chat-sync/internal/middleware"
	"chat-sync/internal/observability"
	"chat-sync/internal/payload"
	"chat-sync/internal/rabbitmq"
	"chat-sync/internal/remote"
	"chat-sync/internal/repositories"
	syncer "chat-sync/internal/sync"
	"chat-sync/internal/telemetry"
	"chat-sync/internal/ws"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	database, err := db.Connect()
	if err != nil {
		log.Fatalf("failed to connect to cache db: %v", err)
	}

	shutdownTracing, err := observability.InitTracing(context.Background(), getEnv("OTLP_ENDPOINT", ""), "chat-sync")
	if err != nil {
		log.Fatalf("failed to init tracing: %v", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Printf("tracing shutdown failed: %v", err)
		}
	}()

	eventPublisher, err := observability.NewEventPublisher(getEnv("AMQP_URL", ""), getEnv("AMQP_EXCHANGE", "chat_sync_events"))
	if err != nil {
		log.Printf("telemetry events disabled: %v", err)
	} else {
		observability.SetPublisher(eventPublisher)
		defer eventPublisher.Close()
	}

	auditPublisher := rabbitmq.NewPublisher(getEnv("AMQP_URL", ""), getEnv("AMQP_EXCHANGE", "chat_sync_events"))
	defer auditPublisher.Close()
	mode, noopReason := rabbitmq.Describe(auditPublisher)
	log.Printf("audit publisher mode=%s reason=%q", mode, noopReason)
	audit := telemetry.NewAuditEmitter(auditPublisher, "audit_log.chat_sync", "chat-sync", getEnv("ENVIRONMENT", "development"))

	chatRepo := repositories.NewChatRepo(database)
	messageRepo := repositories.NewMessageRepo(database)
	participantRepo := repositories.NewParticipantRepo(database)
	contactRepo := repositories.NewContactRepo(database)
	userRepo := repositories.NewUserRepo(database)
	tombstoneRepo := repositories.NewTombstoneRepo(database)

	apiClient := remote.NewClient(getEnv("REMOTE_API_URL", "http://localhost:8080/api/v1"), nil)

	codec, err := payload.NewCodec(decodeKey(getEnv("PAYLOAD_KEY", "")))
	if err != nil {
		log.Fatalf("invalid payload key: %v", err)
	}

	dispatcher := ws.NewDispatcher(messageRepo, chatRepo, codec, "")
	session := ws.NewSession(ws.Config{
		URL:                getEnv("STREAM_URL", "ws://localhost:8080/ws"),
		Origin:             getEnv("STREAM_ORIGIN", "http://localhost"),
		UserAgent:          getEnv("STREAM_USER_AGENT", "chat-sync/1.0"),
		HeartbeatInterval:  envDuration("HEARTBEAT_INTERVAL", 30*time.Second),
		LivenessMultiplier: envInt("LIVENESS_MULTIPLIER", 3),
		DialTimeout:        envDuration("DIAL_TIMEOUT", 10*time.Second),
		ReconnectAttempts:  envInt("RECONNECT_ATTEMPTS", 5),
		ReconnectDelay:     envDuration("RECONNECT_DELAY", 2*time.Second),
	}, nil, dispatcher)

	// Local notification feed. The UI layer subscribes here; until one is
	// attached the events are surfaced as log lines.
	go func() {
		for event := range dispatcher.Events() {
			switch {
			case event.Chat != nil:
				log.Printf("stream event: message chat_id=%s sender=%s", event.Chat.ChatID, event.Chat.SenderID)
			case event.Status != nil:
				log.Printf("stream event: status message_id=%s status=%s", event.Status.MessageID, event.Status.Status)
			}
		}
	}()

	resolver := syncer.NewResolver(userRepo, contactRepo, apiClient)
	reconciler := syncer.NewReconciler(apiClient, chatRepo, messageRepo, participantRepo, contactRepo, userRepo, tombstoneRepo, resolver)

	account := &handlers.Account{}
	session.OnSessionDown(func(reason string) {
		userID := account.UserID()
		audit.EmitSession(context.Background(), ws.StateDisconnected.String(), reason, &userID)
	})

	sessionHandler := handlers.NewSessionHandler(session, apiClient, account, dispatcher, audit)
	chatHandler := handlers.NewChatHandler(chatRepo, messageRepo, participantRepo, tombstoneRepo, apiClient, reconciler, account, audit)
	messageHandler := handlers.NewMessageHandler(messageRepo, chatRepo, apiClient, codec, account)
	contactHandler := handlers.NewContactHandler(contactRepo, reconciler)

	router := gin.Default()
	router.Use(gin.Recovery())
	router.Use(observability.HTTPMetricsMiddleware())
	router.Use(otelgin.Middleware("chat-sync"))

	authMiddleware := middleware.AuthMiddleware(getEnv("CONTROL_API_TOKEN", ""))
	api := router.Group("/", authMiddleware)

	api.POST("/session/connect", sessionHandler.Connect)
	api.POST("/session/disconnect", sessionHandler.Disconnect)
	api.POST("/session/reconnect", sessionHandler.Reconnect)
	api.GET("/session/status", sessionHandler.Status)

	api.GET("/chats", chatHandler.ListChats)
	api.POST("/chats", chatHandler.CreateChat)
	api.POST("/chats/sync", chatHandler.SyncChats)
	api.GET("/chats/:chat_id/messages", chatHandler.GetChatMessages)
	api.GET("/chats/:chat_id/participants", chatHandler.GetParticipants)
	api.POST("/chats/:chat_id/participants/sync", chatHandler.SyncParticipants)
	api.POST("/chats/:chat_id/read", chatHandler.MarkChatRead)
	api.POST("/chats/:chat_id/name", chatHandler.RenameChat)
	api.DELETE("/chats/:chat_id", chatHandler.DeleteChat)

	api.POST("/messages", messageHandler.SendMessage)
	api.POST("/messages/retry", messageHandler.RetrySend)

	api.GET("/contacts", contactHandler.ListContacts)
	api.POST("/contacts/sync", contactHandler.SyncContacts)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	addr := getEnv("CONTROL_API_ADDR", "127.0.0.1:8090")
	if err := router.Run(addr); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
		log.Printf("invalid duration for %s, using %s", key, fallback)
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
		log.Printf("invalid integer for %s, using %d", key, fallback)
	}
	return fallback
}

// decodeKey accepts a hex-encoded 32-byte payload key. Anything else
// disables sealing.
func decodeKey(value string) []byte {
	if value == "" {
		return nil
	}
	key, err := hex.DecodeString(value)
	if err != nil {
		log.Printf("payload key is not valid hex, sealing disabled")
		return nil
	}
	return key
}
