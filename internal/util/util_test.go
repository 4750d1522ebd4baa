package util

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetryPolicyDo(t *testing.T) {
	attempts := 0
	targetAttempts := 3

	p := RetryPolicy{MaxRetries: 4}
	err := p.Do(context.Background(), func() error {
		attempts++
		if attempts < targetAttempts {
			return errors.New("transient error")
		}
		return nil
	})

	if err != nil {
		t.Fatalf("Do returned unexpected error: %v", err)
	}
	if attempts != targetAttempts {
		t.Errorf("Do called fn %d times, want %d", attempts, targetAttempts)
	}
}

func TestRetryPolicyDoAllFail(t *testing.T) {
	attempts := 0
	p := RetryPolicy{MaxRetries: 2}

	err := p.Do(context.Background(), func() error {
		attempts++
		return errors.New("persistent error")
	})

	if err == nil {
		t.Fatal("Do should return error when all attempts fail")
	}
	if attempts != 3 {
		t.Errorf("Do called fn %d times, want 3", attempts)
	}
}

func TestRetryPolicyWaitZeroBackoff(t *testing.T) {
	p := RetryPolicy{MaxRetries: 2}
	start := time.Now()
	if err := p.Wait(context.Background(), 1); err != nil {
		t.Fatalf("Wait returned error: %v", err)
	}
	if time.Since(start) > 50*time.Millisecond {
		t.Error("Wait with zero backoff should not sleep")
	}
}

func TestRateLimiterNilNeverBlocks(t *testing.T) {
	var rl *RateLimiter // NewRateLimiter(0) returns nil
	if rl := NewRateLimiter(0); rl != nil {
		t.Fatal("NewRateLimiter(0) should return nil")
	}
	if err := rl.Wait(context.Background()); err != nil {
		t.Fatalf("nil limiter Wait returned error: %v", err)
	}
}

func TestRateLimiterFirstCallImmediate(t *testing.T) {
	rl := NewRateLimiter(60)
	start := time.Now()
	if err := rl.Wait(context.Background()); err != nil {
		t.Fatalf("Wait returned error: %v", err)
	}
	if time.Since(start) > 100*time.Millisecond {
		t.Error("first Wait should consume the initial token without blocking")
	}
}

func TestLastTradingDay(t *testing.T) {
	tests := []struct {
		name string
		in   time.Time
		want time.Time
	}{
		{
			name: "wednesday stays",
			in:   time.Date(2024, 6, 12, 15, 30, 0, 0, time.UTC),
			want: time.Date(2024, 6, 12, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "saturday snaps to friday",
			in:   time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC),
			want: time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "sunday snaps to friday",
			in:   time.Date(2024, 6, 16, 0, 0, 0, 0, time.UTC),
			want: time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LastTradingDay(tt.in); !got.Equal(tt.want) {
				t.Errorf("LastTradingDay(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestPrevTradingDay(t *testing.T) {
	// Monday 2024-06-17 → Friday 2024-06-14.
	monday := time.Date(2024, 6, 17, 0, 0, 0, 0, time.UTC)
	want := time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC)
	if got := PrevTradingDay(monday); !got.Equal(want) {
		t.Errorf("PrevTradingDay(%v) = %v, want %v", monday, got, want)
	}

	// Tuesday → Monday.
	tuesday := time.Date(2024, 6, 18, 0, 0, 0, 0, time.UTC)
	if got := PrevTradingDay(tuesday); !got.Equal(monday) {
		t.Errorf("PrevTradingDay(%v) = %v, want %v", tuesday, got, monday)
	}
}
