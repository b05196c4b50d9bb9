package kalshi

import (
	"context"
	"fmt"
	"time"

	"github.com/alanyoungcy/arbwatch/internal/domain"
)

// Source pages through open Kalshi markets for the ingestion pipeline.
type Source struct {
	client   *Client
	pageSize int
	maxPages int
}

// NewSource creates a Source. maxPages bounds one poll; 0 means no bound.
func NewSource(client *Client, pageSize, maxPages int) *Source {
	if pageSize <= 0 {
		pageSize = 200
	}
	return &Source{client: client, pageSize: pageSize, maxPages: maxPages}
}

// Platform returns domain.PlatformKalshi.
func (s *Source) Platform() domain.Platform {
	return domain.PlatformKalshi
}

// Fetch returns a raw quote for every open market.
func (s *Source) Fetch(ctx context.Context, now time.Time) ([]domain.MarketQuote, error) {
	var (
		quotes []domain.MarketQuote
		cursor string
	)
	for page := 0; s.maxPages == 0 || page < s.maxPages; page++ {
		res, err := s.client.GetMarkets(ctx, s.pageSize, cursor, "open")
		if err != nil {
			return quotes, fmt.Errorf("kalshi: fetch page %d: %w", page, err)
		}
		for _, m := range res.Markets {
			quotes = append(quotes, m.ToQuote(now))
		}
		if res.Cursor == "" || len(res.Markets) == 0 {
			break
		}
		cursor = res.Cursor
	}
	return quotes, nil
}
