package marketdata

import (
	"context"
	"log"
	"math"
	"net/http"
	"strconv"
	"time"

	"CryptoBacktester/internal/models"

	"github.com/adshao/go-binance/v2/futures"
	"golang.org/x/time/rate"
)

// Fetcher pulls historical klines from Binance futures and converts them to
// bars. Requests are rate limited and retried with exponential backoff.
type Fetcher struct {
	client      *futures.Client
	rateLimiter *rate.Limiter
}

// NewFetcher creates a fetcher with a shared rate limiter.
func NewFetcher(apiKey, secretKey string) *Fetcher {
	httpClient := &http.Client{
		Timeout: time.Second * 10,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 100,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	futuresClient := futures.NewClient(apiKey, secretKey)
	futuresClient.HTTPClient = httpClient

	return &Fetcher{
		client:      futuresClient,
		rateLimiter: rate.NewLimiter(rate.Limit(10), 20),
	}
}

// FetchBars downloads interval klines for a symbol over the last days and
// returns them as bars in open-time order.
func (f *Fetcher) FetchBars(ctx context.Context, symbol, interval string, days int) ([]models.Bar, error) {
	endTime := time.Now()
	startTime := endTime.AddDate(0, 0, -days)

	chunk := chunkDuration(interval)
	var allBars []models.Bar

	currentStart := startTime
	for currentStart.Before(endTime) {
		currentEnd := currentStart.Add(chunk)
		if currentEnd.After(endTime) {
			currentEnd = endTime
		}

		klines, err := f.getKlines(ctx, symbol, interval,
			currentStart.UnixMilli(), currentEnd.UnixMilli())
		if err != nil {
			return nil, err
		}

		for _, k := range klines {
			allBars = append(allBars, models.Bar{
				Symbol:   symbol,
				OpenTime: time.Unix(k.OpenTime/1000, 0).UTC(),
				Open:     parseFloat(k.Open),
				High:     parseFloat(k.High),
				Low:      parseFloat(k.Low),
				Close:    parseFloat(k.Close),
				Volume:   parseFloat(k.Volume),
			})
		}

		currentStart = currentEnd
	}

	return allBars, nil
}

func (f *Fetcher) getKlines(ctx context.Context, symbol, interval string, startTime, endTime int64) ([]*futures.Kline, error) {
	maxRetries := 3
	backoff := 100 * time.Millisecond

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := f.rateLimiter.Wait(ctx); err != nil {
			return nil, err
		}

		klines, err := f.client.NewKlinesService().
			Symbol(symbol).
			Interval(interval).
			StartTime(startTime).
			EndTime(endTime).
			Limit(500).
			Do(ctx)
		if err == nil {
			return klines, nil
		}
		lastErr = err

		waitTime := time.Duration(math.Pow(2, float64(attempt))) * backoff
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(waitTime):
		}
	}

	return nil, lastErr
}

// chunkDuration sizes request windows to Binance's 500-kline limit.
func chunkDuration(interval string) time.Duration {
	intervals := map[string]time.Duration{
		"1m":  time.Minute,
		"5m":  5 * time.Minute,
		"15m": 15 * time.Minute,
		"1h":  time.Hour,
		"4h":  4 * time.Hour,
		"1d":  24 * time.Hour,
	}

	d, ok := intervals[interval]
	if !ok {
		d = 5 * time.Minute
	}
	return d * 500
}

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		log.Printf("Error parsing float: %v", err)
		return 0
	}
	return f
}
