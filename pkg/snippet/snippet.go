// Package snippet defines the core records shared by the store, the search
// engine and the client: snippets, usage metrics and the string⇄structured
// conversion performed once at the storage boundary.
package snippet

import (
	"encoding/json"
	"fmt"
)

// Snippet is one completion entry. Body holds the template lines verbatim;
// the search engine never looks inside them. A nil or empty Scope means the
// snippet applies to every language.
type Snippet struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	Prefix      string   `json:"prefix"`
	Body        []string `json:"body"`
	Description string   `json:"description"`
	Scope       []string `json:"scope,omitempty"`
	Category    string   `json:"category,omitempty"`
	UsageCount  int64    `json:"usageCount"`
	LastUsed    int64    `json:"lastUsed,omitempty"`
}

// MatchesLanguage reports whether the snippet applies to the given language
// tag. Untagged snippets are universal; an empty tag matches everything.
func (s *Snippet) MatchesLanguage(language string) bool {
	if language == "" || len(s.Scope) == 0 {
		return true
	}
	for _, tag := range s.Scope {
		if tag == language {
			return true
		}
	}
	return false
}

// UsageMetric is one append-only usage event reported by a client.
type UsageMetric struct {
	SnippetID     int64   `json:"snippetId"`
	UserID        string  `json:"userId"`
	Language      string  `json:"language"`
	FileExtension string  `json:"fileExtension,omitempty"`
	SearchTimeMs  float64 `json:"searchTimeMs,omitempty"`
	WasAccepted   bool    `json:"wasAccepted"`
	Timestamp     int64   `json:"timestamp,omitempty"`
}

// Validate checks the fields the server requires before recording a metric.
func (m *UsageMetric) Validate() error {
	if m.SnippetID == 0 {
		return fmt.Errorf("usage metric: missing snippetId")
	}
	if m.UserID == "" {
		return fmt.Errorf("usage metric: missing userId")
	}
	if m.Language == "" {
		return fmt.Errorf("usage metric: missing language")
	}
	return nil
}

// UserStats aggregates a single user's recorded usage.
type UserStats struct {
	TotalUsage        int64           `json:"totalUsage"`
	FavoriteLanguages []LanguageCount `json:"favoriteLanguages"`
	AvgSearchTimeMs   float64         `json:"avgSearchTimeMs,omitempty"`
}

// Analytics aggregates usage across all users for one snippet.
type Analytics struct {
	TotalUsage        int64           `json:"totalUsage"`
	UniqueUsers       int64           `json:"uniqueUsers"`
	AvgSearchTimeMs   float64         `json:"avgSearchTimeMs,omitempty"`
	AcceptanceRate    float64         `json:"acceptanceRate"`
	LanguageBreakdown []LanguageCount `json:"languageBreakdown,omitempty"`
}

// LanguageCount pairs a language tag with an event count.
type LanguageCount struct {
	Language string `json:"language"`
	Count    int64  `json:"count"`
}

// EncodeBody serializes body lines for a TEXT column.
func EncodeBody(body []string) (string, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("encode body: %w", err)
	}
	return string(data), nil
}

// DecodeBody parses body lines back out of a TEXT column.
func DecodeBody(raw string) ([]string, error) {
	var body []string
	if err := json.Unmarshal([]byte(raw), &body); err != nil {
		return nil, fmt.Errorf("decode body: %w", err)
	}
	return body, nil
}

// EncodeScope serializes the tag set, or returns "" for a universal snippet
// so the column stays NULL.
func EncodeScope(scope []string) (string, error) {
	if len(scope) == 0 {
		return "", nil
	}
	data, err := json.Marshal(scope)
	if err != nil {
		return "", fmt.Errorf("encode scope: %w", err)
	}
	return string(data), nil
}

// DecodeScope parses a tag set; "" decodes to nil (universal).
func DecodeScope(raw string) ([]string, error) {
	if raw == "" {
		return nil, nil
	}
	var scope []string
	if err := json.Unmarshal([]byte(raw), &scope); err != nil {
		return nil, fmt.Errorf("decode scope: %w", err)
	}
	return scope, nil
}
