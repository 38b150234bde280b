package storage

import "time"

// CoinPriceSample is a read model for persisted coin facts joined with
// their date/time dimensions.
type CoinPriceSample struct {
	UUID       string
	Symbol     string
	Name       string
	Price      float64
	Change     float64
	Rank       int
	ObservedAt time.Time
}

// StockPriceSample is a read model for persisted stock facts.
type StockPriceSample struct {
	Symbol     string
	Open       float64
	High       float64
	Low        float64
	Close      float64
	ObservedAt time.Time
}

// PredictionSample is a read model for persisted forecasts.
type PredictionSample struct {
	Entity   string
	Datetime time.Time
	Value    float64
}
