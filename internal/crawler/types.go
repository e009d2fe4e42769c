// Package crawler defines core types shared across subsystems.
package crawler

import (
	"net/http"
	"time"
)

// Page is the result returned by a Fetcher implementation. A zero-length Body
// means the fetcher degraded the response to "no content".
type Page struct {
	URL        string
	FinalURL   string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// Empty reports whether the page carries no content.
func (p Page) Empty() bool {
	return len(p.Body) == 0
}

// RawReview is one review as it appears in a critic's feed, before its score
// is normalized.
type RawReview struct {
	CriticID string
	MovieID  string
	Fresh    string
	Score    string
	Review   string
}

// Review is a dataset row: a RawReview whose score sits on the 1-5 scale.
type Review struct {
	CriticID string `csv:"critic_id" json:"critic_id"`
	MovieID  string `csv:"movie_id" json:"movie_id"`
	Fresh    string `csv:"fresh" json:"fresh"`
	Score    int    `csv:"score" json:"score"`
	Review   string `csv:"review" json:"review"`
}

// RunSummary describes the outcome of a harvest run.
type RunSummary struct {
	RunID            string    `json:"run_id"`
	StartedAt        time.Time `json:"started_at"`
	FinishedAt       time.Time `json:"finished_at"`
	Movies           int       `json:"movies"`
	MoviesFailed     int       `json:"movies_failed"`
	Critics          int       `json:"critics"`
	CriticsFailed    int       `json:"critics_failed"`
	CriticsRetried   int       `json:"critics_retried"`
	FailedTwice      []string  `json:"failed_twice,omitempty"`
	RawReviews       int       `json:"raw_reviews"`
	DatasetRows      int       `json:"dataset_rows"`
	DatasetCritics   int       `json:"dataset_critics"`
	DatasetMovies    int       `json:"dataset_movies"`
	DatasetLocations []string  `json:"dataset_locations,omitempty"`
	NotificationID   string    `json:"notification_id,omitempty"`
}
