package domain

import "testing"

func TestParseTimeframe(t *testing.T) {
	cases := map[string]Timeframe{
		"weekly": TimeframeWeekly,
		"WEEKLY": TimeframeWeekly,
		"W":      TimeframeWeekly,
		"daily":  TimeframeDaily,
		"D":      TimeframeDaily,
		"":       TimeframeDaily,
		"junk":   TimeframeDaily,
	}
	for in, want := range cases {
		if got := ParseTimeframe(in); got != want {
			t.Errorf("ParseTimeframe(%q) = %q, want %q", in, got, want)
		}
	}
}
