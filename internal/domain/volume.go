package domain

import "time"

// VolumeAlert records one abnormal-volume event for a market. Alerts are
// append-only; a market that keeps spiking keeps producing alerts.
type VolumeAlert struct {
	ID           string    `json:"id"`
	MarketID     string    `json:"market_id"`
	VolumeUSD    float64   `json:"volume_usd"`
	RollingAvg7d float64   `json:"rolling_avg_7d"`
	Multiplier   float64   `json:"multiplier"`
	ZScore       float64   `json:"z_score"`
	AlertAt      time.Time `json:"alert_at"`
}
