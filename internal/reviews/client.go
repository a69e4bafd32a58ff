package reviews

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/fjod/go_cart/internal/domain"
	"github.com/fjod/go_cart/internal/metrics"
	"github.com/fjod/go_cart/pkg/circuitbreaker"
	"github.com/go-resty/resty/v2"
)

const DefaultBaseURL = "https://maps.googleapis.com/maps/api/place/details/json"

type placeDetails struct {
	Status string `json:"status"`
	Result struct {
		Name             string  `json:"name"`
		Rating           float64 `json:"rating"`
		UserRatingsTotal int     `json:"user_ratings_total"`
		Reviews          []struct {
			AuthorName              string  `json:"author_name"`
			Rating                  float64 `json:"rating"`
			Text                    string  `json:"text"`
			RelativeTimeDescription string  `json:"relative_time_description"`
			Time                    int64   `json:"time"`
		} `json:"reviews"`
	} `json:"result"`
}

// Client reads the review summary for one place.
type Client struct {
	cfg     Configured
	http    *resty.Client
	breaker *circuitbreaker.Breaker[*placeDetails]
}

func NewClient(cfg Configured, timeout time.Duration) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		cfg:  cfg,
		http: resty.New().SetTimeout(timeout).SetRetryCount(0),
		breaker: circuitbreaker.New[*placeDetails]("reviews", circuitbreaker.Settings{
			OnStateChange: func(name string, state int) {
				metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(state))
			},
		}),
	}
}

func (c *Client) Fetch(ctx context.Context) (domain.ReviewSummary, error) {
	details, err := c.breaker.Execute(func() (*placeDetails, error) {
		resp, err := c.http.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"place_id": c.cfg.PlaceID,
				"fields":   "name,rating,user_ratings_total,reviews",
				"key":      c.cfg.APIKey,
			}).
			Get(c.cfg.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("reviews request: %w", err)
		}
		if resp.StatusCode() != http.StatusOK {
			return nil, fmt.Errorf("reviews upstream returned status %d", resp.StatusCode())
		}
		var out placeDetails
		if err := json.Unmarshal(resp.Body(), &out); err != nil {
			return nil, fmt.Errorf("decode reviews: %w", err)
		}
		if out.Status != "" && out.Status != "OK" {
			return nil, fmt.Errorf("reviews upstream status %s", out.Status)
		}
		return &out, nil
	})
	if err != nil {
		return domain.ReviewSummary{}, err
	}

	summary := domain.ReviewSummary{
		SourceName: details.Result.Name,
		Rating:     details.Result.Rating,
		TotalCount: details.Result.UserRatingsTotal,
		Reviews:    make([]domain.Review, 0, len(details.Result.Reviews)),
	}
	for _, r := range details.Result.Reviews {
		summary.Reviews = append(summary.Reviews, domain.Review{
			Author:       r.AuthorName,
			Rating:       r.Rating,
			Text:         r.Text,
			RelativeTime: r.RelativeTimeDescription,
			Timestamp:    time.Unix(r.Time, 0).UTC(),
		})
	}
	return summary, nil
}
