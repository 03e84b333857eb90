// Package main (in api-subfolder) provides launch of the whole application except worker
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/UnendingLoop/ImageBatcher/internal/kafka"
	"github.com/UnendingLoop/ImageBatcher/internal/mwlogger"
	"github.com/UnendingLoop/ImageBatcher/internal/notifier"
	"github.com/UnendingLoop/ImageBatcher/internal/repository"
	"github.com/UnendingLoop/ImageBatcher/internal/service"
	"github.com/UnendingLoop/ImageBatcher/internal/storage"
	"github.com/UnendingLoop/ImageBatcher/internal/transport"
	"github.com/wb-go/wbf/config"
	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/ginext"
	wbfkafka "github.com/wb-go/wbf/kafka"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"
)

func main() {
	// инициализировать конфиг/ считать энвы
	appConfig := config.New()
	appConfig.EnableEnv("")
	if err := appConfig.LoadEnvFiles("./.env"); err != nil {
		log.Fatalf("Failed to load envs: %s\nExiting app...", err)
	}

	// стартуем логгер
	zlog.InitConsole()
	err := zlog.SetLevel("info")
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	// готовим заранее слушатель прерываний - контекст для всего приложения
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// подключитсья к базе
	dbConn := repository.ConnectWithRetries(appConfig, 5, 10*time.Second)
	// накатываем миграцию
	repository.MigrateWithRetries(dbConn.Master, "./migrations", 10, 15*time.Second)

	// подключиться к хранилищу
	strg := storage.NewArtifactStorage(appConfig, 10*time.Second)
	// создаем экземпляр репо
	repo := repository.NewPostgresBatchRepo(dbConn)

	// ждем пока кафка раздуплится
	broker := appConfig.GetString("KAFKA_BROKER")
	kafka.WaitKafkaReady(broker)
	// подключиться к кафке как продюсер
	topic := appConfig.GetString("KAFKA_TOPIC")
	kafka.InitTaskTopic(ctx, broker, 10*time.Second, topic)
	pub := wbfkafka.NewProducer([]string{broker}, topic)

	// нотифаер для исходящих уведомлений
	notif := notifier.NewWebhookNotifier(10*time.Second, retry.Strategy{
		Attempts: 5,
		Delay:    3 * time.Second,
		Backoff:  1.5,
	})

	// создаем экземпляр сервиса
	var svc BatchAPIService = service.NewBatchService(repo, pub, strg, notif,
		appConfig.GetString("PUBLIC_BASE_URL"),
		appConfig.GetString("WEBHOOK_SECRET"))
	// cоздаем экземпляр хендлера HTTP
	handlers := transport.NewBatchHandler(svc)
	// сетапим сервер
	mode := appConfig.GetString("GIN_MODE")
	engine := ginext.New(mode)

	engine.GET("/ping", handlers.SimplePinger)
	engine.POST("/batches", handlers.CreateBatch)                  // создание батча
	engine.GET("/batches/:id", handlers.GetBatch)                  // статус батча с поайтемной разбивкой
	engine.GET("/batches/:id/images", handlers.ListImages)         // выдача готовых картинок - под секретом
	engine.GET("/batches/:id/images/:item", handlers.LoadImage)    // скачивание результата

	srv := &http.Server{
		Addr:    ":" + appConfig.GetString("APP_PORT"),
		Handler: mwlogger.NewMWLogger(engine),
	}

	// Server launch
	go func() {
		log.Printf("Server running on http://localhost%s\n", srv.Addr)
		err := srv.ListenAndServe()
		if err != nil {
			switch {
			case errors.Is(err, http.ErrServerClosed):
				log.Println("Server gracefully stopping...")
			default:
				log.Printf("Server stopped: %v", err)
				stop()
			}
		}
	}()

	// запускаем фонового воркера для переотправки подвисших тасков
	go reviveLoop(ctx, svc)

	// ждем отмены контекста для запуска грейсфул закрытия соединений бд и кафки
	<-ctx.Done()

	shutdown(pub, dbConn)
	log.Println("Exiting app...")
}

func reviveLoop(ctx context.Context, svc BatchAPIService) {
	defer func() {
		if r := recover(); r != nil {
			log.Println("Revive loop crashed:", r)
		}
	}()

	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			svc.ReviveStuckTasks(context.Background(), 20)
		}
	}
}

func shutdown(pub *wbfkafka.Producer, dbConn *dbpg.DB) {
	log.Println("Interrupt received!!! Starting shutdown sequence...")

	// Closing Kafka connection:
	if err := pub.Close(); err != nil {
		log.Println("Failed to close Kafka-producer:", err)
	}
	log.Println("Kafka-producer connection closed.")

	// Closing DB connection
	if err := dbConn.Master.Close(); err != nil {
		log.Println("Failed to close DB-conn correctly:", err)
		return
	}
	log.Println("DBconn closed")
}
