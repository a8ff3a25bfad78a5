package models

import "time"

// Bar is a single OHLCV aggregate as delivered by the upstream feed.
// Field tags follow the upstream wire format; bars received from the feed
// are forwarded to viewers verbatim, this struct exists for the simulator
// and for the cached-snapshot endpoint.
type Bar struct {
	Symbol    string    `json:"S"`
	Open      float64   `json:"o"`
	High      float64   `json:"h"`
	Low       float64   `json:"l"`
	Close     float64   `json:"c"`
	Volume    int64     `json:"v"`
	Timestamp time.Time `json:"t"`
}
