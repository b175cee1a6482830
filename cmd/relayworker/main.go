package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"relay-go/internal/config"
	"relay-go/internal/fetch"
	appKafka "relay-go/internal/kafka"
	kafkahandlers "relay-go/internal/kafka/handlers"
	"relay-go/internal/relaytypes"
	"relay-go/internal/services"
	"relay-go/internal/storage"
	"relay-go/internal/whatsapp"

	appRedis "relay-go/internal/redis"

	redisDriver "github.com/redis/go-redis/v9"
)

func main() {
	// 1. 加载配置
	cfg, err := config.LoadConfig("")
	if err != nil {
		log.Fatalf("无法加载配置: %v", err)
	}
	log.Println("Relay worker 配置加载成功。")

	// 2. 初始化数据库连接
	db, err := storage.InitDB(cfg.Database)
	if err != nil {
		log.Fatalf("无法初始化数据库: %v", err)
	}
	log.Println("Relay worker 数据库连接成功。")

	// 表结构迁移交给 relayserver 实例负责，worker 只做一次兜底
	if err := storage.AutoMigrateTables(db); err != nil {
		log.Printf("警告：Relay worker 数据库表迁移可能失败: %v", err)
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

	// 4. 初始化本地文件仓库 (批次条目可能引用它的 locator)
	fileStore, err := storage.NewLocalFileStore(cfg.Storage)
	if err != nil {
		log.Fatalf("无法初始化本地文件仓库: %v", err)
	}

	// 5. 初始化 Services
	logRepo := storage.NewGormMessageLogRepository(db)
	waClient := whatsapp.NewClient(cfg.WhatsApp)
	fetcher := fetch.NewFetcher(cfg.WhatsApp.HTTPTimeout, fileStore)
	deliveryService := services.NewDeliveryService(fetcher, mediaCache, waClient, cfg, logRepo)

	// 6. 初始化并启动 Kafka 消费者 (处理异步批次任务)
	jobConsumer, err := appKafka.NewConfluentKafkaConsumer(cfg.Kafka)
	if err != nil {
		log.Fatalf("无法创建批次任务 Kafka 消费者: %v", err)
	}
	defer jobConsumer.Close()

	jobLogic := kafkahandlers.NewBatchJobConsumerLogic(deliveryService)

	consumerCtx, cancelConsumers := context.WithCancel(context.Background())
	defer cancelConsumers()

	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		topics := []string{cfg.Kafka.BatchJobsTopic}
		log.Printf("Kafka 批次任务消费者启动，监听 topic: %s, GroupID: %s", cfg.Kafka.BatchJobsTopic, cfg.Kafka.ConsumerGroup)
		err := jobConsumer.Consume(consumerCtx, topics, cfg.Kafka.ConsumerGroup, jobLogic.HandleBatchJob)
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("Kafka 批次任务消费者错误: %v", err)
		}
		log.Println("Kafka 批次任务消费者 goroutine 已停止。")
	}()

	// 7. 等待关闭信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("收到关闭信号，正在关闭 Relay worker...")

	cancelConsumers()
	<-consumerDone

	log.Println("Relay worker 已成功关闭")
}
