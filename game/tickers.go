package game

import "time"

type realTickerCreator struct{}

func NewRealTickerCreator() realTickerCreator {
	return realTickerCreator{}
}

func (realTickerCreator) Create(duration time.Duration) (<-chan time.Time, func()) {
	ticker := time.NewTicker(duration)
	return ticker.C, ticker.Stop
}
