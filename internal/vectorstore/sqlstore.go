package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/suPer8Hu/travel-assistant/internal/ai"
)

type jsonChunk struct {
	ID        string         `gorm:"type:varchar(64);primaryKey"`
	Content   string         `gorm:"type:text;not null"`
	Metadata  datatypes.JSON `gorm:"not null"`
	Embedding datatypes.JSON `gorm:"not null"`
}

func (jsonChunk) TableName() string { return "document_chunks" }

// SQLStore keeps embeddings as JSON in any gorm-supported database and ranks
// by cosine similarity in process. Suited to small corpora (a few thousand chunks).
type SQLStore struct {
	db       *gorm.DB
	embedder ai.Embedder
}

func NewSQLStore(db *gorm.DB, embedder ai.Embedder) *SQLStore {
	return &SQLStore{db: db, embedder: embedder}
}

func (s *SQLStore) Migrate() error {
	return s.db.AutoMigrate(&jsonChunk{})
}

func (s *SQLStore) AddDocuments(ctx context.Context, docs []Document) error {
	rows := make([]jsonChunk, 0, len(docs))
	for _, d := range docs {
		vec, err := s.embedder.Embed(ctx, d.Content)
		if err != nil {
			return fmt.Errorf("embed document %s: %w", d.ID, err)
		}
		emb, err := json.Marshal(vec)
		if err != nil {
			return fmt.Errorf("marshal embedding: %w", err)
		}
		meta, err := encodeMetadata(d.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
		rows = append(rows, jsonChunk{ID: d.ID, Content: d.Content, Metadata: meta, Embedding: datatypes.JSON(emb)})
	}
	if len(rows) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&rows).Error
}

func (s *SQLStore) SimilaritySearch(ctx context.Context, query string, k int) ([]ScoredDocument, error) {
	if k <= 0 {
		return nil, nil
	}
	queryVec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	var rows []jsonChunk
	if err := s.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load chunks: %w", err)
	}

	scored := make([]ScoredDocument, 0, len(rows))
	for _, r := range rows {
		var vec []float32
		if err := json.Unmarshal(r.Embedding, &vec); err != nil || len(vec) == 0 {
			log.Printf("[SQLStore.SimilaritySearch] skipping chunk id=%s: bad embedding", r.ID)
			continue
		}
		sim, err := CosineSimilarity(queryVec, vec)
		if err != nil {
			log.Printf("[SQLStore.SimilaritySearch] skipping chunk id=%s: %v", r.ID, err)
			continue
		}
		scored = append(scored, ScoredDocument{
			Document: Document{ID: r.ID, Content: r.Content, Metadata: decodeMetadata(r.Metadata)},
			Score:    sim,
		})
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

func (s *SQLStore) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&jsonChunk{}).Count(&n).Error
	return n, err
}
