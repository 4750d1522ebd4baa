package polygon

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"time"

	"github.com/smgonzalez118/blue-quantum-be-pub/internal/domain"
	"github.com/smgonzalez118/blue-quantum-be-pub/internal/util"
)

// aggsResponse is the wire shape of /v2/aggs endpoints.
type aggsResponse struct {
	ResultsCount int `json:"resultsCount"`
	Results      []struct {
		Ticker string  `json:"T"`
		Open   float64 `json:"o"`
		High   float64 `json:"h"`
		Low    float64 `json:"l"`
		Close  float64 `json:"c"`
		Volume float64 `json:"v"`
		VWAP   float64 `json:"vw"`
		Millis int64   `json:"t"`
	} `json:"results"`
}

// openCloseResponse is the wire shape of /v1/open-close.
type openCloseResponse struct {
	Status     string  `json:"status"`
	Open       float64 `json:"open"`
	High       float64 `json:"high"`
	Low        float64 `json:"low"`
	Close      float64 `json:"close"`
	AfterHours float64 `json:"afterHours"`
	Volume     float64 `json:"volume"`
}

const dateLayout = "2006-01-02"

// GroupedDaily fetches one day's bar for every US stock in a single request
// via /v2/aggs/grouped. Bars are adjusted; adjClose mirrors close. Returns
// ErrForbidden when the plan lacks bulk access.
func (c *Client) GroupedDaily(ctx context.Context, date time.Time, includeOTC bool) ([]domain.PriceBar, error) {
	path := "/v2/aggs/grouped/locale/us/market/stocks/" + date.Format(dateLayout)
	query := url.Values{}
	query.Set("adjusted", "true")
	query.Set("include_otc", strconv.FormatBool(includeOTC))

	var resp aggsResponse
	if err := c.get(ctx, path, query, &resp); err != nil {
		return nil, err
	}

	day := util.DateOnly(date)
	bars := make([]domain.PriceBar, 0, len(resp.Results))
	for _, r := range resp.Results {
		if r.Ticker == "" {
			continue
		}
		bars = append(bars, domain.PriceBar{
			Symbol:   r.Ticker,
			Date:     day,
			Open:     r.Open,
			High:     r.High,
			Low:      r.Low,
			Close:    r.Close,
			AdjClose: r.Close, // adjusted=true
			Volume:   int64(r.Volume),
		})
	}
	return bars, nil
}

// DailyBar fetches a single symbol's EOD bar. It tries the aggs range
// endpoint first and falls back to /v1/open-close when aggs is forbidden on
// the current plan. Returns ErrNotFound when the symbol/date has no data.
func (c *Client) DailyBar(ctx context.Context, symbol string, date time.Time) (domain.PriceBar, error) {
	bar, err := c.dailyBarAggs(ctx, symbol, date)
	if err == nil {
		return bar, nil
	}
	if !errors.Is(err, ErrForbidden) && !errors.Is(err, ErrNotFound) {
		return domain.PriceBar{}, err
	}
	// aggs unavailable on this plan (or empty); the open-close endpoint is
	// usually enabled even on free tiers.
	return c.dailyBarOpenClose(ctx, symbol, date)
}

func (c *Client) dailyBarAggs(ctx context.Context, symbol string, date time.Time) (domain.PriceBar, error) {
	d := date.Format(dateLayout)
	path := "/v2/aggs/ticker/" + url.PathEscape(symbol) + "/range/1/day/" + d + "/" + d
	query := url.Values{}
	query.Set("adjusted", "true")
	query.Set("sort", "asc")
	query.Set("limit", "2")

	var resp aggsResponse
	if err := c.get(ctx, path, query, &resp); err != nil {
		return domain.PriceBar{}, err
	}
	if resp.ResultsCount == 0 || len(resp.Results) == 0 {
		return domain.PriceBar{}, ErrNotFound
	}

	r := resp.Results[0]
	return domain.PriceBar{
		Symbol:   symbol,
		Date:     util.DateOnly(date),
		Open:     r.Open,
		High:     r.High,
		Low:      r.Low,
		Close:    r.Close,
		AdjClose: r.Close, // adjusted=true
		Volume:   int64(r.Volume),
	}, nil
}

func (c *Client) dailyBarOpenClose(ctx context.Context, symbol string, date time.Time) (domain.PriceBar, error) {
	path := "/v1/open-close/" + url.PathEscape(symbol) + "/" + date.Format(dateLayout)

	var resp openCloseResponse
	if err := c.get(ctx, path, nil, &resp); err != nil {
		return domain.PriceBar{}, err
	}
	if resp.Status != "OK" {
		return domain.PriceBar{}, ErrNotFound
	}

	adj := resp.Close
	if resp.AfterHours != 0 {
		adj = resp.AfterHours
	}
	return domain.PriceBar{
		Symbol:   symbol,
		Date:     util.DateOnly(date),
		Open:     resp.Open,
		High:     resp.High,
		Low:      resp.Low,
		Close:    resp.Close,
		AdjClose: adj,
		Volume:   int64(resp.Volume),
	}, nil
}

// RangeBars fetches adjusted daily bars for one symbol over [start, end].
func (c *Client) RangeBars(ctx context.Context, symbol string, start, end time.Time) ([]domain.PriceBar, error) {
	path := "/v2/aggs/ticker/" + url.PathEscape(symbol) + "/range/1/day/" +
		start.Format(dateLayout) + "/" + end.Format(dateLayout)
	query := url.Values{}
	query.Set("adjusted", "true")
	query.Set("sort", "asc")
	query.Set("limit", "50000")

	var resp aggsResponse
	if err := c.get(ctx, path, query, &resp); err != nil {
		return nil, err
	}
	if resp.ResultsCount == 0 {
		return nil, nil
	}

	bars := make([]domain.PriceBar, 0, len(resp.Results))
	for _, r := range resp.Results {
		bars = append(bars, domain.PriceBar{
			Symbol:   symbol,
			Date:     util.DateOnly(time.UnixMilli(r.Millis).UTC()),
			Open:     r.Open,
			High:     r.High,
			Low:      r.Low,
			Close:    r.Close,
			AdjClose: r.Close,
			Volume:   int64(r.Volume),
		})
	}
	return bars, nil
}
