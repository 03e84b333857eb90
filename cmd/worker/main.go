package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/UnendingLoop/ImageBatcher/internal/kafka"
	"github.com/UnendingLoop/ImageBatcher/internal/notifier"
	"github.com/UnendingLoop/ImageBatcher/internal/repository"
	"github.com/UnendingLoop/ImageBatcher/internal/service"
	"github.com/UnendingLoop/ImageBatcher/internal/storage"
	"github.com/UnendingLoop/ImageBatcher/internal/worker"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/wb-go/wbf/config"
	"github.com/wb-go/wbf/dbpg"
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
	if err := zlog.SetLevel("info"); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}

	// подключитсья к базе
	dbConn := repository.ConnectWithRetries(appConfig, 5, 10*time.Second)
	// подключиться к хранилищу
	strg := storage.NewArtifactStorage(appConfig, 10*time.Second)
	// создаем экземпляр репо
	repo := repository.NewPostgresBatchRepo(dbConn)
	// нотифаер: финализация батча и отправка вебхука происходят на стороне воркера
	notif := notifier.NewWebhookNotifier(10*time.Second, retry.Strategy{
		Attempts: 5,
		Delay:    3 * time.Second,
		Backoff:  1.5,
	})
	// создаем экземпляр сервиса
	var svc ItemWorkerService = service.NewBatchService(repo, NoopPublisher{}, nil, notif,
		appConfig.GetString("PUBLIC_BASE_URL"),
		appConfig.GetString("WEBHOOK_SECRET"))

	// ждем пока кафка раздуплится
	broker := appConfig.GetString("KAFKA_BROKER")
	kafka.WaitKafkaReady(broker)
	// подключиться к кафке как читатель
	queue := make(chan kafkago.Message)
	retryStrategy := retry.Strategy{
		Attempts: 5,
		Delay:    2 * time.Second,
		Backoff:  1.5,
	}
	topic := appConfig.GetString("KAFKA_TOPIC")
	groupID := appConfig.GetString("KAFKA_GROUPID")
	cons := wbfkafka.NewConsumer([]string{broker}, topic, groupID)

	// Listening to interruptions through context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cons.StartConsuming(ctx, queue, retryStrategy)

	// качаем исходники обычным HTTP-клиентом с таймаутом
	fetcher := worker.NewHTTPFetcher(30 * time.Second)

	// Собираем воедино все что нужно воркеру и запускаем его
	go worker.NewWorkerInstance(strg, svc, fetcher, queue, cons, appConfig.GetString("RESULT_PREFIX")).StartWorker(ctx)

	// Waiting for interruption to stop context to start Graceful shutdown
	<-ctx.Done()

	shutdown(cons, dbConn)
	log.Println("Exiting worker...")
}

func shutdown(cons *wbfkafka.Consumer, dbConn *dbpg.DB) {
	log.Println("Interrupt received!!! Starting shutdown sequence...")

	// Closing Kafka connection:
	if err := cons.Close(); err != nil {
		log.Println("Failed to close Kafka-reader:", err)
	}
	log.Println("Kafka-consumer connection closed.")

	// Closing DB connection
	if err := dbConn.Master.Close(); err != nil {
		log.Println("Failed to close DB-conn correctly:", err)
		return
	}
	log.Println("DBconn closed")
}
