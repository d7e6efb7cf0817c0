package models

import "time"

// PriceTick is one intraday observed price from the live mandi feed.
// Prices arrive in quintal.
type PriceTick struct {
	Key   SeriesKey
	Price float64
	At    time.Time
}
