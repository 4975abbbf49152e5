package app

import (
	"context"
	"strings"
	"testing"

	"github.com/suPer8Hu/travel-assistant/internal/config"
)

func sqliteConfig(t *testing.T) config.Config {
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	return config.Config{
		DBDriver:          "sqlite",
		DBDSN:             "file:" + name + "?mode=memory&cache=shared",
		AIProvider:        "ollama",
		AIModel:           "llama3:latest",
		EmbeddingProvider: "ollama",
		EmbeddingModel:    "nomic-embed-text",
		VectorStore:       "sql",
		ChatHistoryWindow: 3,
		RetrievalTopK:     3,
		FilterTopN:        5,
	}
}

func TestNew_WiresSQLiteStack(t *testing.T) {
	a, err := New(context.Background(), sqliteConfig(t))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer a.Close()

	if a.Chat == nil || a.Destinations == nil || a.Filters == nil || a.Vectors == nil {
		t.Fatalf("services not wired: %+v", a)
	}
	n, err := a.Vectors.Count(context.Background())
	if err != nil || n != 0 {
		t.Fatalf("empty corpus expected: n=%d err=%v", n, err)
	}
}

func TestNew_RejectsBadCombinations(t *testing.T) {
	cfg := sqliteConfig(t)
	cfg.VectorStore = "pgvector"
	if _, err := New(context.Background(), cfg); err == nil {
		t.Fatalf("pgvector on sqlite should fail")
	}

	cfg = sqliteConfig(t)
	cfg.AIProvider = "mystery"
	if _, err := New(context.Background(), cfg); err == nil {
		t.Fatalf("unknown provider should fail")
	}

	cfg = sqliteConfig(t)
	cfg.EmbeddingProvider = "gemini"
	if _, err := New(context.Background(), cfg); err == nil {
		t.Fatalf("gemini without api key should fail")
	}
}
