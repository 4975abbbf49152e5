package chat

import (
	"fmt"
	"strings"

	"github.com/suPer8Hu/travel-assistant/internal/vectorstore"
)

const (
	promptTemplate = "You are a helpful assistant. Use the conversation history and reference context to answer:\n" +
		"Conversation History:\n%s\n\n" +
		"Context from docs:\n%s\n\n" +
		"Question:\n%s"

	docSeparator = "\n---\n"
)

// ComposePrompt renders the single model input for a turn. Empty history or
// docs leave their section blank.
func ComposePrompt(question string, docs []vectorstore.ScoredDocument, history []Message) string {
	return fmt.Sprintf(promptTemplate, formatHistory(history), formatDocs(docs), question)
}

func formatHistory(history []Message) string {
	lines := make([]string, 0, len(history))
	for _, m := range history {
		prefix := "Human"
		if m.Role == RoleAI {
			prefix = "AI"
		}
		lines = append(lines, prefix+": "+m.Content)
	}
	return strings.Join(lines, "\n")
}

func formatDocs(docs []vectorstore.ScoredDocument) string {
	parts := make([]string, 0, len(docs))
	for _, d := range docs {
		parts = append(parts, d.Content)
	}
	return strings.Join(parts, docSeparator)
}

// FormatSources renders one "<source_file> (id=<id>)" line per document.
func FormatSources(docs []vectorstore.ScoredDocument) string {
	lines := make([]string, 0, len(docs))
	for _, d := range docs {
		lines = append(lines, fmt.Sprintf("%s (id=%s)", metaOr(d.Metadata, vectorstore.MetaSourceFile), metaOr(d.Metadata, vectorstore.MetaID)))
	}
	return strings.Join(lines, "\n")
}

func metaOr(m map[string]string, key string) string {
	if v := strings.TrimSpace(m[key]); v != "" {
		return v
	}
	return "N/A"
}

func relevant(docs []vectorstore.ScoredDocument) []vectorstore.ScoredDocument {
	out := make([]vectorstore.ScoredDocument, 0, len(docs))
	for _, d := range docs {
		if d.Score > 0 {
			out = append(out, d)
		}
	}
	return out
}
