package event

import (
	"testing"
	"time"
)

func TestSlug(t *testing.T) {
	tests := []struct {
		city string
		want string
	}{
		{"Amsterdam", "amsterdam"},
		{"New York", "new-york"},
		{"Malmö", "malmo"},
		{"Düsseldorf", "dusseldorf"},
		{"Kraków", "krakow"},
		{"Łódź", "lodz"},
		{"Val d'Isère", "val-disere"},
		{"St. Petersburg", "st-petersburg"},
		{"  São Paulo  ", "sao-paulo"},
		{"Köln/Cologne", "koln-cologne"},
		{"東京", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.city, func(t *testing.T) {
			if got := Slug(tt.city); got != tt.want {
				t.Errorf("Slug(%q) = %q, want %q", tt.city, got, tt.want)
			}
		})
	}
}

func TestGenerateID(t *testing.T) {
	tests := []struct {
		name string
		city string
		year int
		want string
	}{
		{name: "simple city", city: "Amsterdam", year: 2026, want: "amsterdam-2026"},
		{name: "case and accents folded", city: "MALMÖ", year: 2026, want: "malmo-2026"},
		{name: "multi word", city: "Buenos Aires", year: 2025, want: "buenos-aires-2025"},
		{name: "no ascii slug", city: "東京", year: 2026, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GenerateID(tt.city, tt.year); got != tt.want {
				t.Errorf("GenerateID(%q, %d) = %q, want %q", tt.city, tt.year, got, tt.want)
			}
		})
	}

	t.Run("deterministic", func(t *testing.T) {
		id1 := GenerateID("Amsterdam", 2026)
		id2 := GenerateID("amsterdam", 2026)
		if id1 != id2 {
			t.Errorf("GenerateID should ignore case, got %s vs %s", id1, id2)
		}
	})
}

func TestRecord_Start(t *testing.T) {
	t.Run("timed event", func(t *testing.T) {
		rec := &Record{Date: "2026-04-18", Time: "09:00"}
		start, allDay, err := rec.Start()
		if err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		if allDay {
			t.Error("expected timed event, got all-day")
		}
		want := time.Date(2026, time.April, 18, 9, 0, 0, 0, time.UTC)
		if !start.Equal(want) {
			t.Errorf("Start() = %v, want %v", start, want)
		}
	})

	t.Run("all-day event", func(t *testing.T) {
		rec := &Record{Date: "2026-01-17"}
		start, allDay, err := rec.Start()
		if err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		if !allDay {
			t.Error("expected all-day event")
		}
		if start.Day() != 17 || start.Hour() != 0 {
			t.Errorf("Start() = %v, want midnight on the 17th", start)
		}
	})

	t.Run("invalid date", func(t *testing.T) {
		rec := &Record{Date: "not a date"}
		if _, _, err := rec.Start(); err == nil {
			t.Error("Start() expected error for invalid date")
		}
	})
}

func TestRecord_IsPast(t *testing.T) {
	now := time.Date(2026, time.April, 18, 15, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		date string
		want bool
	}{
		{name: "yesterday", date: "2026-04-17", want: true},
		{name: "same day", date: "2026-04-18", want: false},
		{name: "future", date: "2026-05-01", want: false},
		{name: "unparseable", date: "soon", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &Record{Date: tt.date}
			if got := rec.IsPast(now); got != tt.want {
				t.Errorf("IsPast() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRecord_Year(t *testing.T) {
	if got := (&Record{Date: "2026-04-18"}).Year(); got != 2026 {
		t.Errorf("Year() = %d, want 2026", got)
	}
	if got := (&Record{Date: ""}).Year(); got != 0 {
		t.Errorf("Year() = %d, want 0 for empty date", got)
	}
}

func TestNormalizeNewlines(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"one\r\ntwo", "one\ntwo"},
		{"one\rtwo", "one\ntwo"},
		{"one\ntwo", "one\ntwo"},
		{"one\r\n\r\ntwo\r", "one\n\ntwo\n"},
		{"plain", "plain"},
	}
	for _, tt := range tests {
		if got := NormalizeNewlines(tt.in); got != tt.want {
			t.Errorf("NormalizeNewlines(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
