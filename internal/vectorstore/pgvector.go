package vectorstore

import (
	"context"
	"fmt"

	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/suPer8Hu/travel-assistant/internal/ai"
)

type pgChunk struct {
	ID        string          `gorm:"type:varchar(64);primaryKey"`
	Content   string          `gorm:"type:text;not null"`
	Metadata  datatypes.JSON  `gorm:"type:jsonb;not null"`
	Embedding pgvector.Vector `gorm:"type:vector;not null"`
}

func (pgChunk) TableName() string { return "document_chunks" }

type pgHit struct {
	ID       string
	Content  string
	Metadata datatypes.JSON
	Score    float64
}

// PGVectorStore searches with the pgvector cosine-distance operator. Relevance
// is reported as 1 - distance so it lines up with SQLStore scores.
type PGVectorStore struct {
	db       *gorm.DB
	embedder ai.Embedder
}

func NewPGVectorStore(db *gorm.DB, embedder ai.Embedder) *PGVectorStore {
	return &PGVectorStore{db: db, embedder: embedder}
}

func (s *PGVectorStore) Migrate() error {
	if err := s.db.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		return fmt.Errorf("create vector extension: %w", err)
	}
	return s.db.AutoMigrate(&pgChunk{})
}

func (s *PGVectorStore) AddDocuments(ctx context.Context, docs []Document) error {
	rows := make([]pgChunk, 0, len(docs))
	for _, d := range docs {
		vec, err := s.embedder.Embed(ctx, d.Content)
		if err != nil {
			return fmt.Errorf("embed document %s: %w", d.ID, err)
		}
		meta, err := encodeMetadata(d.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
		rows = append(rows, pgChunk{ID: d.ID, Content: d.Content, Metadata: meta, Embedding: pgvector.NewVector(vec)})
	}
	if len(rows) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&rows).Error
}

func (s *PGVectorStore) SimilaritySearch(ctx context.Context, query string, k int) ([]ScoredDocument, error) {
	if k <= 0 {
		return nil, nil
	}
	queryVec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	vec := pgvector.NewVector(queryVec)

	var hits []pgHit
	err = s.db.WithContext(ctx).Raw(
		`SELECT id, content, metadata, 1 - (embedding <=> ?) AS score
		 FROM document_chunks
		 ORDER BY embedding <=> ?
		 LIMIT ?`, vec, vec, k,
	).Scan(&hits).Error
	if err != nil {
		return nil, fmt.Errorf("similarity query: %w", err)
	}

	out := make([]ScoredDocument, 0, len(hits))
	for _, h := range hits {
		out = append(out, ScoredDocument{
			Document: Document{ID: h.ID, Content: h.Content, Metadata: decodeMetadata(h.Metadata)},
			Score:    h.Score,
		})
	}
	return out, nil
}

func (s *PGVectorStore) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&pgChunk{}).Count(&n).Error
	return n, err
}
