// Package app wires configuration into long-lived service handles shared by
// the api, worker and ingest commands.
package app

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/suPer8Hu/travel-assistant/internal/ai"
	"github.com/suPer8Hu/travel-assistant/internal/chat"
	"github.com/suPer8Hu/travel-assistant/internal/config"
	"github.com/suPer8Hu/travel-assistant/internal/db"
	"github.com/suPer8Hu/travel-assistant/internal/destination"
	"github.com/suPer8Hu/travel-assistant/internal/filters"
	"github.com/suPer8Hu/travel-assistant/internal/store/redisstore"
	"github.com/suPer8Hu/travel-assistant/internal/vectorstore"
)

type App struct {
	Cfg          config.Config
	DB           *gorm.DB
	Vectors      vectorstore.Store
	Chat         *chat.Service
	Destinations *destination.Service
	Filters      *filters.Generator

	mu           sync.Mutex
	geminiClient *ai.GeminiClient
	closers      []func()
}

// New opens every connection the services need. Close releases them.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	a := &App{Cfg: cfg}
	if err := a.init(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	cfg := a.Cfg

	gdb, err := db.Connect(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return err
	}
	a.DB = gdb
	a.closers = append(a.closers, func() { db.Close(gdb) })
	if err := db.Migrate(gdb); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	reg := a.registry()

	chatLLM, err := reg.Get(ctx, cfg.AIProvider, ai.Options{Model: cfg.AIModel, Temperature: ai.Temperature(cfg.AITemperature)})
	if err != nil {
		return err
	}
	filterLLM, err := reg.Get(ctx, cfg.AIProvider, ai.Options{Model: cfg.AIModel, Temperature: ai.Temperature(cfg.FilterTemperature)})
	if err != nil {
		return err
	}

	embedder, err := a.embedder(ctx)
	if err != nil {
		return err
	}
	store, err := a.vectorStore(vectorstore.NewCachingEmbedder(embedder, 30*time.Minute))
	if err != nil {
		return err
	}
	a.Vectors = store

	a.Chat = chat.NewService(chat.NewRepo(gdb), store, chatLLM, chat.Options{
		HistoryWindow: cfg.ChatHistoryWindow,
		TopK:          cfg.RetrievalTopK,
		LLMTimeout:    cfg.LLMTimeout,
	})
	a.Destinations = destination.NewService(destination.NewRepo(gdb))

	var cache filters.Cache
	if cfg.RedisAddr != "" {
		rds := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := rds.Ping(pctx)
		cancel()
		if err != nil {
			log.Printf("[app.New] redis unavailable addr=%s, dynamic filters will not be cached: %v", cfg.RedisAddr, err)
			_ = rds.Close()
		} else {
			cache = rds
			a.closers = append(a.closers, func() { _ = rds.Close() })
		}
	}
	a.Filters = filters.NewGenerator(filterLLM, cache, cfg.FilterTopN, cfg.FilterCacheTTL)
	a.Filters.CacheNamespace = fmt.Sprintf("%s/%s/%g", cfg.AIProvider, cfg.AIModel, cfg.FilterTemperature)

	log.Printf("[app.New] ready ai=%s model=%s embeddings=%s/%s vector_store=%s",
		cfg.AIProvider, cfg.AIModel, cfg.EmbeddingProvider, cfg.EmbeddingModel, cfg.VectorStore)
	return nil
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *App) registry() *ai.Registry {
	cfg := a.Cfg
	reg := ai.NewRegistry()

	reg.Register("openai", func(ctx context.Context, opts ai.Options) (ai.Provider, error) {
		return ai.NewOpenAIProvider(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, opts), nil
	})
	reg.Register("ollama", func(ctx context.Context, opts ai.Options) (ai.Provider, error) {
		return ai.NewOllamaProvider(cfg.OllamaBaseURL, opts), nil
	})
	reg.Register("gemini", func(ctx context.Context, opts ai.Options) (ai.Provider, error) {
		client, err := a.gemini(ctx)
		if err != nil {
			return nil, err
		}
		return client.Provider(opts), nil
	})
	return reg
}

func (a *App) embedder(ctx context.Context) (ai.Embedder, error) {
	cfg := a.Cfg
	switch cfg.EmbeddingProvider {
	case "openai":
		return ai.NewOpenAIProvider(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, ai.Options{Model: cfg.EmbeddingModel}), nil
	case "ollama":
		return ai.NewOllamaProvider(cfg.OllamaBaseURL, ai.Options{Model: cfg.EmbeddingModel}), nil
	case "gemini":
		client, err := a.gemini(ctx)
		if err != nil {
			return nil, err
		}
		return client.Embedder(cfg.EmbeddingModel), nil
	default:
		return nil, fmt.Errorf("unsupported EMBEDDING_PROVIDER=%q", cfg.EmbeddingProvider)
	}
}

// gemini shares one client between the chat provider and the embedder.
func (a *App) gemini(ctx context.Context) (*ai.GeminiClient, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.geminiClient != nil {
		return a.geminiClient, nil
	}
	client, err := ai.NewGeminiClient(ctx, a.Cfg.GeminiAPIKey)
	if err != nil {
		return nil, err
	}
	a.geminiClient = client
	a.closers = append(a.closers, client.Close)
	return client, nil
}

func (a *App) vectorStore(embedder ai.Embedder) (vectorstore.Store, error) {
	switch a.Cfg.VectorStore {
	case "pgvector":
		if a.Cfg.DBDriver != "postgres" {
			return nil, fmt.Errorf("VECTOR_STORE=pgvector requires DB_DRIVER=postgres, got %q", a.Cfg.DBDriver)
		}
		s := vectorstore.NewPGVectorStore(a.DB, embedder)
		if err := s.Migrate(); err != nil {
			return nil, err
		}
		return s, nil
	case "sql":
		s := vectorstore.NewSQLStore(a.DB, embedder)
		if err := s.Migrate(); err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported VECTOR_STORE=%q", a.Cfg.VectorStore)
	}
}
