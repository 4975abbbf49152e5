// Package vectorstore is the retrieval corpus: embedded document chunks
// searchable by semantic similarity.
package vectorstore

import (
	"context"
	"encoding/json"

	"gorm.io/datatypes"
)

const (
	MetaSourceFile = "source_file"
	MetaID         = "id"
	MetaCityName   = "city_name"
)

type Document struct {
	ID       string
	Content  string
	Metadata map[string]string
}

// ScoredDocument is a search hit. Higher Score means more relevant.
type ScoredDocument struct {
	Document
	Score float64
}

type Store interface {
	SimilaritySearch(ctx context.Context, query string, k int) ([]ScoredDocument, error)
	AddDocuments(ctx context.Context, docs []Document) error
	Count(ctx context.Context) (int64, error)
}

func encodeMetadata(m map[string]string) (datatypes.JSON, error) {
	if m == nil {
		m = map[string]string{}
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}

func decodeMetadata(raw datatypes.JSON) map[string]string {
	out := map[string]string{}
	if len(raw) == 0 {
		return out
	}
	_ = json.Unmarshal(raw, &out)
	return out
}
