package services

import "testing"

func TestParseHours(t *testing.T) {
	cases := []struct {
		raw  string
		want int
	}{
		{"", 6},
		{"12", 12},
		{" 24 ", 24},
		{"0", 6},
		{"-3", 6},
		{"abc", 6},
		{"1.5", 6},
		{"720", 720},
		{"721", 6},
	}
	for _, tc := range cases {
		if got := ParseHours(tc.raw, DefaultHours, 720); got != tc.want {
			t.Errorf("ParseHours(%q): expected %d, got %d", tc.raw, tc.want, got)
		}
	}
	if got := ParseHours("100000", 6, 0); got != 100000 {
		t.Errorf("expected no upper bound when max is 0, got %d", got)
	}
	if got := ParseHours("", 0, 0); got != DefaultHours {
		t.Errorf("expected fallback to DefaultHours, got %d", got)
	}
}

func TestTitle(t *testing.T) {
	got := Title(RequestContext{AquariumID: "Planet_72", Hours: 6})
	if got != "Planet 72 Telemetry (last 6h)" {
		t.Errorf("unexpected title %q", got)
	}
}
