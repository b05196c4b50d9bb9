package polymarket

import (
	"context"
	"fmt"
	"time"

	"github.com/alanyoungcy/arbwatch/internal/domain"
)

// Source pages through open Gamma markets for the ingestion pipeline.
type Source struct {
	client   *GammaClient
	pageSize int
	maxPages int
}

// NewSource creates a Source. maxPages bounds one poll; 0 means no bound.
func NewSource(client *GammaClient, pageSize, maxPages int) *Source {
	if pageSize <= 0 {
		pageSize = 100
	}
	return &Source{client: client, pageSize: pageSize, maxPages: maxPages}
}

// Platform returns domain.PlatformPolymarket.
func (s *Source) Platform() domain.Platform {
	return domain.PlatformPolymarket
}

// Fetch returns a quote for every open market.
func (s *Source) Fetch(ctx context.Context, now time.Time) ([]domain.MarketQuote, error) {
	var quotes []domain.MarketQuote
	for page := 0; s.maxPages == 0 || page < s.maxPages; page++ {
		markets, err := s.client.GetMarkets(ctx, s.pageSize, page*s.pageSize, true)
		if err != nil {
			return quotes, fmt.Errorf("polymarket: fetch page %d: %w", page, err)
		}
		for _, m := range markets {
			quotes = append(quotes, m.ToQuote(now))
		}
		if len(markets) < s.pageSize {
			break
		}
	}
	return quotes, nil
}
