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

	"github.com/suPer8Hu/travel-assistant/internal/app"
	"github.com/suPer8Hu/travel-assistant/internal/config"
	"github.com/suPer8Hu/travel-assistant/internal/httpapi"
	"github.com/suPer8Hu/travel-assistant/internal/httpapi/handlers"
	"github.com/suPer8Hu/travel-assistant/internal/store/rabbitmq"
)

func main() {
	cfg := config.Load()
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("init: %v", err)
	}
	defer a.Close()

	h := &handlers.Handler{
		DB:      a.DB,
		Cfg:     cfg,
		ChatSvc: a.Chat,
		DestSvc: a.Destinations,
		Filters: a.Filters,
	}

	// async chat is optional; without a broker POST /chat/jobs answers 503
	pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
	if err != nil {
		log.Printf("rabbit unavailable, async chat disabled: %v", err)
	} else {
		h.Jobs = pub
		defer pub.Close()
	}

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      httpapi.NewRouter(cfg, h),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.LLMTimeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("server forced to shutdown: %v", err)
	}
	log.Println("server exited")
}
