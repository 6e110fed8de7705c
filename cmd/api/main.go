package main

import (
	"fmt"
	"log"
	"time"

	"github.com/go-playground/validator/v10"

	_ "github.com/commune-dev/commune-api/api/swagger"
	"github.com/commune-dev/commune-api/internal/handler"
	"github.com/commune-dev/commune-api/internal/repository"
	"github.com/commune-dev/commune-api/internal/service"
	"github.com/commune-dev/commune-api/internal/ws"
	"github.com/commune-dev/commune-api/pkg/cache"
	"github.com/commune-dev/commune-api/pkg/config"
	"github.com/commune-dev/commune-api/pkg/database"
	"github.com/commune-dev/commune-api/pkg/logger"
)

// @title Commune API
// @version 1.0.0
// @description Community backend with session auth, board posts and realtime chat rooms
// @BasePath /
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	}

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	roomRepo := repository.NewChatRoomRepository(db)
	chatRepo := repository.NewChatRepository(db)
	postRepo := repository.NewPostRepository(db)
	categoryRepo := repository.NewCategoryRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	tokenSvc := service.NewTokenService(service.TokenConfig{
		Secret:            cfg.JWT.Secret,
		Issuer:            cfg.JWT.Issuer,
		AccessExpiration:  cfg.JWT.AccessExpiration,
		RefreshExpiration: cfg.JWT.RefreshExpiration,
	})
	metricsSvc := service.NewMetricsService()
	authSvc := service.NewAuthService(userRepo, sessionRepo, tokenSvc, validate, logr)
	userSvc := service.NewUserService(userRepo, validate, logr)
	roomSvc := service.NewChatRoomService(roomRepo, cacheRepo, cfg.Rooms.ListCacheTTL, validate, logr)
	chatSvc := service.NewChatService(chatRepo, roomSvc, validate, logr)
	postSvc := service.NewPostService(postRepo, validate, logr)
	categorySvc := service.NewCategoryService(categoryRepo, cacheRepo, 5*time.Minute, logr)

	hub := ws.NewHub(logr, metricsSvc)
	gateway := ws.NewGateway(hub, userSvc, roomSvc, chatSvc, metricsSvc, logr, ws.GatewayConfig{
		RemoveMembershipsOnDisconnect: cfg.Realtime.RemoveMembershipsOnDisconnect,
		SendBufferSize:                cfg.Realtime.SendBufferSize,
	})

	r := handler.NewRouter(handler.Dependencies{
		Config:     cfg,
		Logger:     logr,
		Auth:       handler.NewAuthHandler(authSvc),
		Users:      handler.NewUserHandler(userSvc),
		Posts:      handler.NewPostHandler(postSvc),
		Categories: handler.NewCategoryHandler(categorySvc),
		Gateway:    gateway,
		Tokens:     tokenSvc,
		Metrics:    metricsSvc,
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
