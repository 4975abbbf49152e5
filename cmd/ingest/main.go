package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/suPer8Hu/travel-assistant/internal/app"
	"github.com/suPer8Hu/travel-assistant/internal/config"
	"github.com/suPer8Hu/travel-assistant/internal/ingest"
)

func main() {
	dir := flag.String("dir", "", "directory of .txt/.md travel notes to ingest")
	withDestinations := flag.Bool("destinations", false, "also ingest every destination in the catalog")
	chunkSize := flag.Int("chunk-size", 1000, "max characters per chunk")
	batch := flag.Int("batch", 16, "chunks per AddDocuments call")
	interval := flag.Duration("interval", 500*time.Millisecond, "pause between batches")
	flag.Parse()

	if *dir == "" && !*withDestinations {
		log.Fatal("nothing to ingest: pass -dir and/or -destinations")
	}

	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("init: %v", err)
	}
	defer a.Close()

	in := &ingest.Ingester{Store: a.Vectors, ChunkSize: *chunkSize, BatchSize: *batch, Interval: *interval}

	if *dir != "" {
		n, err := in.Directory(ctx, *dir)
		if err != nil {
			log.Fatalf("ingest %s: %v", *dir, err)
		}
		log.Printf("ingested %d chunks from %s", n, *dir)
	}
	if *withDestinations {
		n, err := in.Destinations(ctx, a.Destinations)
		if err != nil {
			log.Fatalf("ingest destinations: %v", err)
		}
		log.Printf("ingested %d destinations", n)
	}

	total, err := a.Vectors.Count(ctx)
	if err != nil {
		log.Fatalf("count: %v", err)
	}
	log.Printf("corpus now holds %d chunks", total)
}
