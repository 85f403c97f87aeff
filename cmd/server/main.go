package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"book_pay/internal/config"
	"book_pay/internal/logger"
	"book_pay/internal/model"
	"book_pay/internal/notify"
	"book_pay/internal/queue"
	"book_pay/internal/reconcile"
	"book_pay/internal/router"
	"book_pay/internal/service"
	"book_pay/internal/storage"

	"github.com/gin-gonic/gin"
	rd "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	zaplog, err := logger.NewZapLog(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer zaplog.Sync()

	// 1. SQLite + 自动建表
	db, err := gorm.Open(sqlite.Open(cfg.DBPath), &gorm.Config{})
	if err != nil {
		return err
	}
	if err := db.AutoMigrate(
		&model.PurchaseRequest{},
		&model.PaymentConfirmation{},
		&model.WalletConfig{},
		&model.EmailLog{},
	); err != nil {
		return err
	}

	// 2. Redis：限流 + 通知 outbox + 清扫认领锁
	rdb := rd.NewClient(&rd.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})

	// 3. 对象存储与各服务
	blobs := storage.NewRESTStore(cfg.StorageBaseURL, cfg.StorageBucket, cfg.StorageServiceKey)
	notifier := notify.NewStreamNotifier(rdb, cfg.NotifyStream, zaplog)
	requests := service.NewRequests(db, zaplog)
	confirmations := service.NewConfirmations(db, blobs, notifier, requests, cfg.SignedURLTTL, zaplog)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 4. 通知链路：Stream → Kafka → 邮件
	producer := queue.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
	defer producer.Close()
	relay := queue.NewRelay(rdb, producer, cfg.NotifyStream, cfg.NotifyGroup, cfg.NotifyConsumer, zaplog)
	go relay.Run(ctx)

	mailer := notify.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.MailFrom)
	consumer := queue.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroupID, db, mailer, cfg.AdminEmail, zaplog)
	defer consumer.Close()
	go consumer.Run(ctx)

	// 5. 孤儿 blob 清扫（interval=0 关闭）
	if cfg.OrphanSweepInterval > 0 {
		sweeper := reconcile.NewSweeper(db, blobs, rdb, cfg.OrphanGracePeriod, zaplog)
		go sweeper.Run(ctx, cfg.OrphanSweepInterval)
	}

	// 6. HTTP
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), logger.RequestLog(zaplog))
	router.Setup(r, requests, confirmations, rdb, cfg)

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	errCh := make(chan error, 1)
	go func() {
		zaplog.Info("server listening", zap.String("addr", cfg.HTTPAddr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		zaplog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
