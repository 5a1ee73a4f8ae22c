package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"VChat/global"
	"VChat/logger"
	mid "VChat/middleware"
	midsec "VChat/middleware/security"
	chathandler "VChat/module/chat"
	msgsrv "VChat/module/chat/service"
	"VChat/module/user"
	usermodel "VChat/module/user/model"
	usersrv "VChat/module/user/service"
	"VChat/service/chat"
	"VChat/service/mgo"
	"VChat/service/natsx"
	"VChat/service/storage"

	"github.com/gin-gonic/gin"
)

func main() {
	defer logger.Sync()

	cfg, err := global.Load()
	if err != nil {
		logger.Errorf("[main] config: %v", err)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// storage tier
	mgo.StartAsync(ctx, mgo.Config{
		URI:         cfg.MongoURI,
		Database:    cfg.MongoDatabase,
		MaxPoolSize: 20,
	})
	waitCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	err = mgo.WaitReady(waitCtx)
	cancel()
	if err != nil {
		logger.Errorf("[main] mongo: %v", err)
		return
	}

	if err := storage.InitOnline(storage.OnlineConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}); err != nil {
		// mirror is best-effort, never fatal
		logger.Warnf("[main] redis mirror disabled: %v", err)
	}
	mirror := storage.GetOnline()
	mirror.Reset(ctx)

	var events *natsx.Publisher
	if cfg.NatsURL != "" {
		events, err = natsx.NewPublisher(natsx.Config{
			Servers: []string{cfg.NatsURL},
			Name:    "vchat-server",
		})
		if err != nil {
			logger.Warnf("[main] nats disabled: %v", err)
			events = nil
		} else {
			defer func() { _ = events.Close() }()
		}
	}

	// realtime tier
	conns := chat.NewConnManager()
	defer conns.Close()
	ws := chat.NewServer(conns, global.JWTOptions(), mirror)
	fanout := chat.NewFanout(conns, events)

	// message store
	store := msgsrv.NewMongoStore(mgo.GetDB())
	if err := store.EnsureIndexes(ctx); err != nil {
		logger.Warnf("[main] indexes: %v", err)
	}

	msgHandler := chathandler.NewHandler(store,
		func(ctx context.Context, exclude string) ([]*usermodel.User, error) {
			return usersrv.ListOthers(ctx, mgo.GetDB(), exclude)
		},
		fanout)

	mid.Init(&midsec.Options{
		JWT: global.JWTOptions(),
		LoadUser: func(ctx context.Context, id string) (*usermodel.User, error) {
			return usersrv.GetByID(ctx, mgo.GetDB(), id)
		},
	})

	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/ws", ws.HandleWS)

	mid.POST(r, "/api/auth/signup", user.HandlerSignup, mid.RouteOpt{IsAuth: false})
	mid.POST(r, "/api/auth/login", user.HandlerLogin, mid.RouteOpt{IsAuth: false})
	mid.GET(r, "/api/auth/check", user.HandlerCheck, mid.RouteOpt{IsAuth: true})
	mid.PUT(r, "/api/auth/update-profile", user.HandlerUpdateProfile, mid.RouteOpt{IsAuth: true})

	mid.GET(r, "/api/messages/users", msgHandler.HandleUsers, mid.RouteOpt{IsAuth: true})
	mid.GET(r, "/api/messages/:userId", msgHandler.HandleHistory, mid.RouteOpt{IsAuth: true})
	mid.POST(r, "/api/messages/send/:userId", msgHandler.HandleSend, mid.RouteOpt{IsAuth: true})
	mid.PUT(r, "/api/messages/mark/:id", msgHandler.HandleMarkSeen, mid.RouteOpt{IsAuth: true})

	logger.Infof("[HTTP] Listening on %s", cfg.HTTPAddr)
	if err := r.Run(cfg.HTTPAddr); err != nil {
		logger.Errorf("[main] http server: %v", err)
	}
}
