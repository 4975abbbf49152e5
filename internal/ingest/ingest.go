// Package ingest loads travel notes and destination records into the
// retrieval corpus.
package ingest

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/suPer8Hu/travel-assistant/internal/destination"
	"github.com/suPer8Hu/travel-assistant/internal/models"
	"github.com/suPer8Hu/travel-assistant/internal/vectorstore"
)

// DestinationLister is satisfied by *destination.Service.
type DestinationLister interface {
	List(ctx context.Context, f destination.Filter) ([]models.Destination, error)
}

type Ingester struct {
	Store     vectorstore.Store
	ChunkSize int
	BatchSize int

	// Interval spaces AddDocuments calls so hosted embedding APIs are not
	// hammered. Zero disables throttling.
	Interval time.Duration
}

// Directory ingests every .txt and .md file under dir. Chunk ids derive from
// the relative path and chunk index, so re-running replaces old chunks.
func (in *Ingester) Directory(ctx context.Context, dir string) (int, error) {
	var docs []vectorstore.Document
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".txt", ".md":
		default:
			return nil
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			rel = filepath.Base(path)
		}
		rel = filepath.ToSlash(rel)
		for i, chunk := range vectorstore.SplitText(string(raw), in.ChunkSize) {
			docs = append(docs, vectorstore.Document{
				ID:      chunkID(rel, i),
				Content: chunk,
				Metadata: map[string]string{
					vectorstore.MetaSourceFile: rel,
					vectorstore.MetaID:         strconv.Itoa(i),
				},
			})
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("walk %s: %w", dir, err)
	}
	return in.add(ctx, docs)
}

// Destinations turns each catalog row into one corpus document.
func (in *Ingester) Destinations(ctx context.Context, lister DestinationLister) (int, error) {
	rows, err := lister.List(ctx, destination.Filter{})
	if err != nil {
		return 0, err
	}
	docs := make([]vectorstore.Document, 0, len(rows))
	for _, d := range rows {
		docs = append(docs, vectorstore.Document{
			ID:      chunkID("destinations/"+d.ID, 0),
			Content: DescribeDestination(d),
			Metadata: map[string]string{
				vectorstore.MetaSourceFile: "destinations",
				vectorstore.MetaID:         d.ID,
				vectorstore.MetaCityName:   d.City,
			},
		})
	}
	return in.add(ctx, docs)
}

func (in *Ingester) add(ctx context.Context, docs []vectorstore.Document) (int, error) {
	batch := in.BatchSize
	if batch <= 0 {
		batch = 16
	}

	var tick <-chan time.Time
	if in.Interval > 0 {
		ticker := time.NewTicker(in.Interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	done := 0
	for start := 0; start < len(docs); start += batch {
		if start > 0 && tick != nil {
			select {
			case <-ctx.Done():
				return done, ctx.Err()
			case <-tick:
			}
		}
		end := min(start+batch, len(docs))
		if err := in.Store.AddDocuments(ctx, docs[start:end]); err != nil {
			return done, fmt.Errorf("add documents %d-%d: %w", start, end, err)
		}
		done = end
		log.Printf("[Ingester.add] stored %d/%d chunks", done, len(docs))
	}
	return done, nil
}

func chunkID(source string, i int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("%s#%d", source, i))).String()
}

// DescribeDestination renders a catalog row as prose for embedding.
func DescribeDestination(d models.Destination) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s, %s (%s).", d.City, d.Country, d.Region)
	if s := strings.TrimSpace(d.ShortDescription); s != "" {
		b.WriteString(" ")
		b.WriteString(s)
	}
	if d.BudgetLevel != "" {
		fmt.Fprintf(&b, " Budget: %s.", d.BudgetLevel)
	}

	scores := []struct {
		name  string
		value int
	}{
		{"culture", d.Culture}, {"adventure", d.Adventure}, {"nature", d.Nature},
		{"beaches", d.Beaches}, {"nightlife", d.Nightlife}, {"cuisine", d.Cuisine},
		{"wellness", d.Wellness}, {"urban", d.Urban}, {"seclusion", d.Seclusion},
	}
	var strong []string
	for _, s := range scores {
		if s.value >= 4 {
			strong = append(strong, s.name)
		}
	}
	if len(strong) > 0 {
		fmt.Fprintf(&b, " Known for %s.", strings.Join(strong, ", "))
	}

	trips := []struct {
		name string
		ok   bool
	}{
		{"day trip", d.DayTrip}, {"weekend", d.Weekend}, {"short trip", d.ShortTrip},
		{"one week", d.OneWeek}, {"long trip", d.LongTrip},
	}
	var fits []string
	for _, t := range trips {
		if t.ok {
			fits = append(fits, t.name)
		}
	}
	if len(fits) > 0 {
		fmt.Fprintf(&b, " Good for: %s.", strings.Join(fits, ", "))
	}
	return b.String()
}
