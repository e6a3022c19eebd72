package benchmark

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"github.com/aborodya/zipline/internal/calendar"
	"github.com/aborodya/zipline/internal/core"
)

const chartBaseURL = "https://query1.finance.yahoo.com/v8/finance/chart"

// validSymbol matches tickers like SPY, QQQ, BRK-B and index symbols
// like ^GSPC.
var validSymbol = regexp.MustCompile(`^\^?[A-Za-z0-9][A-Za-z0-9.\-]{0,11}$`)

// Yahoo fetches daily close history for one benchmark symbol from the
// Yahoo Finance chart API and derives session returns from it. It feeds
// the ingest command; simulations read the ingested bundle instead.
type Yahoo struct {
	symbol  string
	baseURL string
	client  *http.Client
}

// NewYahoo builds a fetcher for the given symbol.
func NewYahoo(symbol string) (*Yahoo, error) {
	if !validSymbol.MatchString(symbol) {
		return nil, core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("invalid benchmark symbol %q", symbol))
	}
	return &Yahoo{
		symbol:  symbol,
		baseURL: chartBaseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}, nil
}

// Symbol reports the symbol this fetcher serves.
func (y *Yahoo) Symbol() string { return y.symbol }

// FetchDailyReturns downloads daily closes covering [start, end] and turns
// them into per-session return points keyed by session label. The first
// session's return is zero since no prior close is available.
func (y *Yahoo) FetchDailyReturns(ctx context.Context, start, end time.Time) ([]ReturnPoint, error) {
	endpoint := fmt.Sprintf("%s/%s?interval=1d&period1=%d&period2=%d",
		y.baseURL, url.PathEscape(y.symbol), start.Unix(), end.Add(24*time.Hour).Unix())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("building chart request: %w", err)
	}
	resp, err := y.client.Do(req)
	if err != nil {
		return nil, core.WrapError(core.ErrBenchmarkFetch,
			fmt.Errorf("fetching chart for %s: %w", y.symbol, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, core.WrapError(core.ErrBenchmarkFetch,
			fmt.Errorf("chart request for %s: unexpected status %d", y.symbol, resp.StatusCode))
	}

	var result chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, core.WrapError(core.ErrBenchmarkFetch,
			fmt.Errorf("decoding chart response for %s: %w", y.symbol, err))
	}
	if result.Chart.Error != nil {
		return nil, core.WrapError(core.ErrBenchmarkFetch,
			fmt.Errorf("chart error for %s: %s", y.symbol, result.Chart.Error.Description))
	}
	if len(result.Chart.Result) == 0 {
		return nil, core.WrapError(core.ErrNoData,
			fmt.Errorf("no chart data for %s", y.symbol))
	}

	r := result.Chart.Result[0]
	if len(r.Indicators.Quote) == 0 {
		return nil, core.WrapError(core.ErrNoData,
			fmt.Errorf("no quote series for %s", y.symbol))
	}
	closes := r.Indicators.Quote[0].Close

	points := make([]ReturnPoint, 0, len(r.Timestamp))
	prevClose := 0.0
	for i, ts := range r.Timestamp {
		if i >= len(closes) || closes[i] == nil {
			continue
		}
		c := *closes[i]
		ret := 0.0
		if prevClose != 0 {
			ret = c/prevClose - 1
		}
		prevClose = c
		points = append(points, ReturnPoint{
			DT:     calendar.Normalize(time.Unix(ts, 0).UTC()),
			Return: ret,
		})
	}
	if len(points) == 0 {
		return nil, core.WrapError(core.ErrNoData,
			fmt.Errorf("chart for %s holds no usable closes", y.symbol))
	}
	return points, nil
}

// Chart API response layout, reduced to the parts returns need.
type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Close []*float64 `json:"close"`
		} `json:"quote"`
	} `json:"indicators"`
}
