package model

import "time"

// DateParts carries the calendar attributes of one dim_date_t row.
type DateParts struct {
	Date    time.Time
	Day     int
	Week    int
	Month   int
	Quarter int
	Year    int
}

// TimeParts carries the clock attributes of one dim_time_t row.
type TimeParts struct {
	Time   time.Time
	Hour   int
	Minute int
	Second int
}

// CoinPrice is one (coin, moment) observation bound for ft_coin_price_t
// together with the dimension attributes it keys into.
type CoinPrice struct {
	UUID    string
	Name    string
	Symbol  string
	IconURL string
	Price   float64
	Change  float64
	Rank    int
	Time    TimeParts
	Date    DateParts
}

// StockPrice is one (stock, moment) observation bound for ft_stock_price_t.
type StockPrice struct {
	Symbol      string
	CompanyName string
	IconURL     string
	Exchange    string
	Industry    string
	Open        float64
	High        float64
	Low         float64
	Close       float64
	Time        TimeParts
	Date        DateParts
}

// TrainingPoint is one historical price observation of an entity, either a
// coin uuid or a stock symbol.
type TrainingPoint struct {
	Entity   string
	Datetime time.Time
	Price    float64
	Year     int
	Month    int
	Day      int
}

// Prediction is one forecast value for an entity at a future timestamp.
type Prediction struct {
	Entity   string
	Datetime time.Time
	Value    float64
}
