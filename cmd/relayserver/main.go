package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"relay-go/internal/config"
	"relay-go/internal/fetch"
	relayhandlers "relay-go/internal/handlers/relayserver"
	appKafka "relay-go/internal/kafka"
	"relay-go/internal/middleware"
	"relay-go/internal/relaytypes"
	"relay-go/internal/services"
	"relay-go/internal/storage"
	"relay-go/internal/whatsapp"

	appRedis "relay-go/internal/redis"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	redisDriver "github.com/redis/go-redis/v9"
)

func main() {
	// 1. 加载配置
	cfg, err := config.LoadConfig("")
	if err != nil {
		log.Fatalf("无法加载配置: %v", err)
	}
	log.Println("Relay 服务器配置加载成功。")

	// 2. 初始化数据库连接
	db, err := storage.InitDB(cfg.Database)
	if err != nil {
		log.Fatalf("无法初始化数据库: %v", err)
	}
	log.Println("Relay 服务器数据库连接成功。")

	// (可选) 表结构迁移
	if err := storage.AutoMigrateTables(db); err != nil {
		log.Printf("警告：Relay 服务器数据库表迁移可能失败: %v", err)
	} else {
		log.Println("Relay 服务器数据库表迁移成功 (如果执行)。")
	}

	// 3. 初始化媒体缓存，后端由 CACHE.TYPE 决定
	var mediaCache relaytypes.MediaCache
	switch cfg.Cache.Type {
	case "redis":
		redisClient := redisDriver.NewClient(&redisDriver.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if _, err := redisClient.Ping(context.Background()).Result(); err != nil {
			log.Fatalf("无法连接到 Redis: %v", err)
		}
		log.Println("成功连接到 Redis")
		mediaCache = appRedis.NewRedisMediaCache(redisClient)
	case "postgres":
		mediaCache = storage.NewGormMediaCache(db)
	default:
		log.Fatalf("不支持的缓存类型: %s", cfg.Cache.Type)
	}

	// 4. 初始化本地文件仓库
	fileStore, err := storage.NewLocalFileStore(cfg.Storage)
	if err != nil {
		log.Fatalf("无法初始化本地文件仓库: %v", err)
	}
	log.Println("本地文件仓库初始化成功。")

	// 5. 初始化 Repositories
	logRepo := storage.NewGormMessageLogRepository(db)

	// 6. 初始化 Kafka Producer (用于异步批次任务)
	kfkProducer, err := appKafka.NewConfluentKafkaProducer(cfg.Kafka)
	if err != nil {
		log.Fatalf("无法创建 Kafka 生产者: %v", err)
	}
	defer kfkProducer.Close()
	log.Println("Kafka 生产者初始化成功 (Relay Server)。")

	// 7. 初始化 Services
	waClient := whatsapp.NewClient(cfg.WhatsApp)
	fetcher := fetch.NewFetcher(cfg.WhatsApp.HTTPTimeout, fileStore)
	deliveryService := services.NewDeliveryService(fetcher, mediaCache, waClient, cfg, logRepo)
	messageService := services.NewMessageService(waClient, cfg, logRepo)

	// 8. 初始化 Handlers
	sendHandler := relayhandlers.NewSendHandler(deliveryService, kfkProducer, cfg.Kafka)
	messageHandler := relayhandlers.NewMessageHandler(messageService)
	uploadHandler := relayhandlers.NewUploadHandler(fileStore, cfg.Storage)

	// 9. 设置 HTTP 路由
	r := mux.NewRouter()

	// 9.1 API 子路由 (需要预共享密钥认证)
	authMW := middleware.AuthMiddleware(cfg.Auth.RelaySecret)

	apiRouter := r.PathPrefix("/api/v1").Subrouter()
	apiRouter.Use(authMW)

	apiRouter.HandleFunc("/send", sendHandler.SendFilesHandler).Methods(http.MethodPost)
	apiRouter.HandleFunc("/send/async", sendHandler.SendFilesAsyncHandler).Methods(http.MethodPost)
	apiRouter.HandleFunc("/messages/text", messageHandler.SendTextHandler).Methods(http.MethodPost)
	apiRouter.HandleFunc("/messages/read", messageHandler.MarkReadHandler).Methods(http.MethodPost)
	apiRouter.HandleFunc("/messages", messageHandler.ListMessagesHandler).Methods(http.MethodGet)
	apiRouter.HandleFunc("/files", uploadHandler.UploadFileHandler).Methods(http.MethodPost)

	// 9.2 公开路由 (不需要认证)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status":  "ok",
			"app":     cfg.AppName,
			"version": cfg.AppVersion,
		})
	}).Methods(http.MethodGet)

	// 10. 启动 HTTP 服务器并实现优雅关闭
	serverAddr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)

	// 定义 CORS 选项，从配置中读取
	corsOptions := []handlers.CORSOption{
		handlers.AllowedOrigins(cfg.Server.CORS.AllowedOrigins),
		handlers.AllowedMethods(cfg.Server.CORS.AllowedMethods),
		handlers.AllowedHeaders(cfg.Server.CORS.AllowedHeaders),
		handlers.ExposedHeaders(cfg.Server.CORS.ExposedHeaders),
		handlers.MaxAge(cfg.Server.CORS.MaxAge),
	}
	if cfg.Server.CORS.AllowCredentials {
		corsOptions = append(corsOptions, handlers.AllowCredentials())
	}

	// 将主路由器 r 包装在 CORS 中间件中
	corsHandler := handlers.CORS(corsOptions...)(r)

	srv := &http.Server{
		Addr:           serverAddr,
		Handler:        corsHandler,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    time.Second * 60,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	go func() {
		log.Printf("Relay 服务器启动于 %s", serverAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Relay 服务器启动失败: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("收到关闭信号，正在关闭 Relay 服务器...")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := srv.Shutdown(ctxShutdown); err != nil {
		log.Fatalf("Relay 服务器强制关闭: %v", err)
	}

	log.Println("Relay 服务器已成功关闭")
}
