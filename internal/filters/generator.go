package filters

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/suPer8Hu/travel-assistant/internal/ai"
	"github.com/suPer8Hu/travel-assistant/internal/common"
	"github.com/suPer8Hu/travel-assistant/internal/models"
)

// DynamicFilter is a question the frontend can ask to narrow a selection.
type DynamicFilter struct {
	Question      string            `json:"question"`
	Feature       string            `json:"feature"`
	Type          string            `json:"type"`
	Values        []string          `json:"values"`
	ValueMeanings map[string]string `json:"value_meanings"`
}

// Cache stores generated filters by key. A miss is (nil, false, nil).
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

type Generator struct {
	// CacheNamespace separates cached filters produced by different models
	// or sampling settings.
	CacheNamespace string

	provider ai.Provider
	cache    Cache
	topN     int
	ttl      time.Duration
}

// NewGenerator builds a generator. cache may be nil.
func NewGenerator(provider ai.Provider, cache Cache, topN int, ttl time.Duration) *Generator {
	if topN <= 0 {
		topN = 5
	}
	return &Generator{provider: provider, cache: cache, topN: topN, ttl: ttl}
}

const systemPrompt = "You are a travel assistant helping users select destinations. Based on the most " +
	"informative features and their values from a filtered dataset, generate dynamic filters " +
	"in JSON format to help users refine their choices. Return the filter suggestions in " +
	"JSON format under a `filters` field."

const userPromptTemplate = `You are a travel assistant that creates filter questions for a travel destination recommendation system.

Each feature in the dataset has a list of unique values:
- Some features are binary (e.g., [0, 1]) and represent yes/no preferences.
- Others are categorical with multiple values (e.g., [1, 2, 3, 4, 5]), representing intensity or levels of interest.

Your task:
1. Identify the type of each feature (binary or categorical).
2. For each, create a meaningful filter question in natural language.
3. For binary: map 0 -> No, 1 -> Yes
4. For categorical: assume values range from 1 (low) to 5 (high) and explain meanings if possible.
5. Return %d filters, one per feature below.

Here are the features and their relevant values:
%s

Respond strictly with a JSON object {"filters": [...]} where every element has the fields
"question" (string), "feature" (string), "type" ("binary" or "categorical"), "values" (array of strings)
and "value_meanings" (object mapping every value to a non-empty description).
Do not include any extra text, explanations, or commentary.`

// Generate ranks the features of the selected destinations against all and
// asks the completion service to phrase them. The model's output is returned
// as parsed, without repairing missing value descriptions.
func (g *Generator) Generate(ctx context.Context, all []models.Destination, selectedIDs []string) ([]DynamicFilter, error) {
	ranked := RankFeatures(all, selectedIDs, g.topN)
	if len(ranked) == 0 {
		return []DynamicFilter{}, nil
	}

	userPrompt := fmt.Sprintf(userPromptTemplate, len(ranked), describe(ranked))
	key := cacheKey(g.CacheNamespace, userPrompt)
	if g.cache != nil {
		raw, ok, err := g.cache.Get(ctx, key)
		if err != nil {
			log.Printf("[Generator.Generate] cache get key=%s err=%v", key, err)
		} else if ok {
			var cached []DynamicFilter
			if err := json.Unmarshal(raw, &cached); err == nil {
				return cached, nil
			}
		}
	}

	out, err := g.provider.Chat(ctx, []ai.Message{
		{Role: ai.RoleSystem, Content: systemPrompt},
		{Role: ai.RoleUser, Content: userPrompt},
	})
	if err != nil {
		return nil, common.Upstream("completion service", err)
	}

	filters, err := ParseFilters(out)
	if err != nil {
		return nil, common.Upstream("completion service", err)
	}

	if g.cache != nil {
		if b, err := json.Marshal(filters); err == nil {
			if err := g.cache.Set(ctx, key, b, g.ttl); err != nil {
				log.Printf("[Generator.Generate] cache set key=%s err=%v", key, err)
			}
		}
	}
	return filters, nil
}

func describe(ranked []RankedFeature) string {
	lines := make([]string, 0, len(ranked))
	for _, f := range ranked {
		lines = append(lines, fmt.Sprintf("Feature name:'%s'. Feature values: [%s]", f.Name, strings.Join(f.Values, ", ")))
	}
	return strings.Join(lines, "\n")
}

// cacheKey hashes the rendered prompt, so any change to the ranking or to the
// values observed in the selection misses the cache.
func cacheKey(namespace, userPrompt string) string {
	sum := sha256.Sum256([]byte(namespace + "\x00" + systemPrompt + "\x00" + userPrompt))
	return "filters:" + hex.EncodeToString(sum[:])
}

// ParseFilters accepts {"filters": [...]} or a bare array, optionally wrapped
// in a markdown code fence.
func ParseFilters(out string) ([]DynamicFilter, error) {
	s := strings.TrimSpace(out)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			s = s[nl+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		s = strings.TrimSpace(s)
	}
	if s == "" {
		return nil, errors.New("empty filter response")
	}

	if strings.HasPrefix(s, "[") {
		var list []DynamicFilter
		if err := json.Unmarshal([]byte(s), &list); err != nil {
			return nil, fmt.Errorf("parse filter array: %w", err)
		}
		return list, nil
	}

	var wrapped struct {
		Filters []DynamicFilter `json:"filters"`
	}
	if err := json.Unmarshal([]byte(s), &wrapped); err != nil {
		return nil, fmt.Errorf("parse filter object: %w", err)
	}
	if wrapped.Filters == nil {
		return nil, errors.New("filter response has no filters field")
	}
	return wrapped.Filters, nil
}
