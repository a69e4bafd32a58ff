package domain

import "time"

type Review struct {
	Author       string    `json:"author"`
	Rating       float64   `json:"rating"`
	Text         string    `json:"text"`
	RelativeTime string    `json:"relative_time"`
	Timestamp    time.Time `json:"timestamp"`
}

type ReviewSummary struct {
	SourceName string   `json:"source_name"`
	Rating     float64  `json:"rating"`
	TotalCount int      `json:"total_count"`
	Reviews    []Review `json:"reviews"`
}

// EmptyReviewSummary is what callers see when no review source is configured.
func EmptyReviewSummary() ReviewSummary {
	return ReviewSummary{Reviews: []Review{}}
}
