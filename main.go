package main

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"messenger-service/internal/auth"
	"messenger-service/internal/config"
	"messenger-service/internal/handlers"
	applog "messenger-service/internal/log"
	"messenger-service/internal/middleware"
	"messenger-service/internal/observability"
	"messenger-service/internal/rabbitmq"
	"messenger-service/internal/ratelimit"
	"messenger-service/internal/repositories"
	"messenger-service/internal/store"
	"messenger-service/internal/telemetry"
	"messenger-service/internal/ws"
)

const serviceName = "messenger-service"

func main() {
	cfg := config.Load()
	applog.Init(cfg.Env)

	shutdownTracing, err := observability.SetupTracing(context.Background(), serviceName, cfg.OTLPEndpoint)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up tracing")
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(ctx)
	}()

	var st store.Store
	if cfg.RedisAddr != "" {
		redisStore, err := store.ConnectRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redisStore.Close()
		st = redisStore
	} else {
		log.Warn().Msg("no redis configured, using in-memory store")
		st = store.NewMemoryStore()
	}

	auditPublisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AuditExchange)
	defer auditPublisher.Close()
	log.Info().
		Str("mode", rabbitmq.PublisherMode(auditPublisher)).
		Str("reason", rabbitmq.PublisherNoopReason(auditPublisher)).
		Msg("audit publisher ready")
	emitter := telemetry.NewAuditEmitter(auditPublisher, cfg.AuditRoutingKey, serviceName, cfg.Env)

	if eventPublisher, err := observability.NewAMQPPublisher(cfg.AMQPURL, cfg.AuditExchange); err == nil {
		observability.SetPublisher(eventPublisher)
		defer eventPublisher.Close()
	} else {
		log.Warn().Err(err).Msg("service events disabled")
	}

	imageRepo := repositories.NewImageRepo(st)
	messageRepo := repositories.NewMessageRepo(st, imageRepo)
	groupRepo := repositories.NewGroupRepo(st)
	userRepo := repositories.NewUserRepo(st)

	jwtManager := auth.NewJWTManager(cfg.JWTSecret, 24*time.Hour)
	hub := ws.NewHub()

	messageHandler := handlers.NewMessageHandler(messageRepo, groupRepo, userRepo, hub, emitter)
	groupHandler := handlers.NewGroupHandler(groupRepo, userRepo, hub, emitter)
	friendHandler := handlers.NewFriendHandler(userRepo, hub, emitter)
	imageHandler := handlers.NewImageHandler(imageRepo)
	wsHandler := ws.NewHandler(hub, jwtManager, groupRepo)

	if cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	router.Use(observability.HTTPMetricsMiddleware())

	authMiddleware := middleware.AuthMiddleware(jwtManager)
	limiter := ratelimit.NewPerKey(cfg.RateLimitPerMin, cfg.RateLimitBurst)
	limitMiddleware := middleware.RateLimitMiddleware(limiter)

	router.POST("/messages/send", authMiddleware, limitMiddleware, messageHandler.SendMessage)
	router.POST("/messages/unsend", authMiddleware, limitMiddleware, messageHandler.UnsendMessage)
	router.POST("/messages/react", authMiddleware, limitMiddleware, messageHandler.ReactToMessage)
	router.GET("/chats/:chat_id/messages", authMiddleware, messageHandler.GetMessages)
	router.POST("/typing", authMiddleware, messageHandler.Typing)
	router.POST("/polls/create", authMiddleware, limitMiddleware, messageHandler.CreatePoll)
	router.POST("/polls/vote", authMiddleware, limitMiddleware, messageHandler.VotePoll)

	router.POST("/groups", authMiddleware, limitMiddleware, groupHandler.CreateGroup)
	router.GET("/groups", authMiddleware, groupHandler.ListGroups)
	router.GET("/groups/join/requests", authMiddleware, groupHandler.PendingRequests)
	router.GET("/groups/:group_id", authMiddleware, groupHandler.GetGroup)
	router.POST("/groups/:group_id/update", authMiddleware, limitMiddleware, groupHandler.UpdateGroup)
	router.POST("/groups/:group_id/delete", authMiddleware, limitMiddleware, groupHandler.DeleteGroup)
	router.POST("/groups/:group_id/members/add", authMiddleware, limitMiddleware, groupHandler.AddMembers)
	router.POST("/groups/:group_id/members/remove", authMiddleware, limitMiddleware, groupHandler.RemoveMember)
	router.POST("/groups/:group_id/leave", authMiddleware, limitMiddleware, groupHandler.LeaveGroup)
	router.POST("/groups/:group_id/join/request", authMiddleware, limitMiddleware, groupHandler.RequestJoin)
	router.POST("/groups/:group_id/join/approve", authMiddleware, limitMiddleware, groupHandler.ApproveJoin)
	router.POST("/groups/:group_id/join/deny", authMiddleware, limitMiddleware, groupHandler.DenyJoin)

	router.POST("/friends/add", authMiddleware, limitMiddleware, friendHandler.AddFriend)
	router.POST("/friends/accept", authMiddleware, limitMiddleware, friendHandler.AcceptFriend)
	router.POST("/friends/deny", authMiddleware, limitMiddleware, friendHandler.DenyFriend)
	router.GET("/friends", authMiddleware, friendHandler.ListFriends)
	router.GET("/friends/requests", authMiddleware, friendHandler.FriendRequests)

	router.GET("/resource/images/:image_id", imageHandler.GetImage)
	router.GET("/ws", wsHandler.Handle)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handlers.RegisterDebugRoutes(router, emitter, cfg.DebugRoutes)

	log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("starting server")
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("server error")
	}
}
