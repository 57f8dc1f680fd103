package dto

import "time"

// SymbolNews is the headline digest for one symbol, ready to ride along on
// an advisory request.
type SymbolNews struct {
	Symbol   string     `json:"symbol"`
	Articles []NewsItem `json:"articles"`
}

// NewsItem is one extracted headline.
type NewsItem struct {
	Title       string     `json:"title"`
	Source      string     `json:"source,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	Snippet     string     `json:"snippet,omitempty"`
}
