package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/suPer8Hu/travel-assistant/internal/app"
	"github.com/suPer8Hu/travel-assistant/internal/config"
	"github.com/suPer8Hu/travel-assistant/internal/store/rabbitmq"
	"github.com/suPer8Hu/travel-assistant/internal/worker"
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("init: %v", err)
	}
	defer a.Close()

	consumer, err := rabbitmq.NewConsumer(cfg.RabbitURL, cfg.RabbitQueue, cfg.WorkerConcurrency)
	if err != nil {
		log.Fatalf("rabbit consumer: %v", err)
	}
	defer consumer.Close()

	log.Printf("worker started, queue=%s concurrency=%d", cfg.RabbitQueue, cfg.WorkerConcurrency)
	worker.NewPool(a.Chat, cfg.WorkerConcurrency).Run(ctx, consumer.Deliveries)
	log.Printf("worker stopped")
}
