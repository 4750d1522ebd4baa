package polygon

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func testDate() time.Time {
	return time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC)
}

func TestGroupedDaily(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/v2/aggs/grouped/locale/us/market/stocks/") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("apiKey") != "test-key" {
			t.Error("apiKey query param missing")
		}
		w.Write([]byte(`{
			"resultsCount": 2,
			"results": [
				{"T":"AAPL","o":185,"h":187,"l":184,"c":186,"v":5000000,"t":1718323200000},
				{"T":"MSFT","o":440,"h":444,"l":438,"c":442,"v":3000000,"t":1718323200000}
			]
		}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key")
	bars, err := c.GroupedDaily(context.Background(), testDate(), false)
	if err != nil {
		t.Fatalf("GroupedDaily: %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("got %d bars, want 2", len(bars))
	}
	if bars[0].Symbol != "AAPL" || bars[0].Close != 186 {
		t.Errorf("first bar = %+v", bars[0])
	}
	if bars[0].AdjClose != bars[0].Close {
		t.Error("adjusted grouped bars should mirror close into adjClose")
	}
	if !bars[0].Date.Equal(testDate()) {
		t.Errorf("bar date = %v, want %v", bars[0].Date, testDate())
	}
}

func TestGroupedDailyForbidden(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key")
	_, err := c.GroupedDaily(context.Background(), testDate(), false)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}
}

func TestDailyBarFallsBackToOpenClose(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/v2/aggs/ticker/"):
			// aggs not available on this plan
			w.WriteHeader(http.StatusForbidden)
		case strings.HasPrefix(r.URL.Path, "/v1/open-close/"):
			w.Write([]byte(`{"status":"OK","open":10,"high":12,"low":9,"close":11,"afterHours":11.2,"volume":1000}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key")
	bar, err := c.DailyBar(context.Background(), "AAPL", testDate())
	if err != nil {
		t.Fatalf("DailyBar: %v", err)
	}
	if bar.Close != 11 {
		t.Errorf("Close = %v, want 11", bar.Close)
	}
	if bar.AdjClose != 11.2 {
		t.Errorf("AdjClose = %v, want afterHours 11.2", bar.AdjClose)
	}
}

func TestDailyBarNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key")
	_, err := c.DailyBar(context.Background(), "ZZZZ", testDate())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestAPIErrorTemporary(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key")
	_, err := c.GroupedDaily(context.Background(), testDate(), false)

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if !apiErr.Temporary() {
		t.Error("429 should be temporary")
	}

	if (&APIError{StatusCode: 400}).Temporary() {
		t.Error("400 should not be temporary")
	}
}

func TestRangeBars(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"resultsCount": 2,
			"results": [
				{"o":10,"h":11,"l":9,"c":10.5,"v":100,"t":1718236800000},
				{"o":10.5,"h":12,"l":10,"c":11.5,"v":200,"t":1718323200000}
			]
		}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key")
	bars, err := c.RangeBars(context.Background(), "AAPL", testDate().AddDate(0, 0, -1), testDate())
	if err != nil {
		t.Fatalf("RangeBars: %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("got %d bars, want 2", len(bars))
	}
	if bars[0].Symbol != "AAPL" {
		t.Errorf("range bars should carry the requested symbol, got %q", bars[0].Symbol)
	}
	if !bars[1].Date.After(bars[0].Date) {
		t.Error("range bars should be in ascending date order")
	}
}
