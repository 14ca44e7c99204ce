package domain

import (
	"reflect"
	"testing"
)

func TestIntervalSubtract(t *testing.T) {
	tests := []struct {
		name string
		base Interval
		sub  Interval
		want []Interval
	}{
		{
			name: "no overlap",
			base: Interval{Start: 540, End: 720},
			sub:  Interval{Start: 720, End: 780},
			want: []Interval{{Start: 540, End: 720}},
		},
		{
			name: "middle split produces two",
			base: Interval{Start: 540, End: 720},
			sub:  Interval{Start: 600, End: 660},
			want: []Interval{{Start: 540, End: 600}, {Start: 660, End: 720}},
		},
		{
			name: "head trim",
			base: Interval{Start: 540, End: 720},
			sub:  Interval{Start: 480, End: 600},
			want: []Interval{{Start: 600, End: 720}},
		},
		{
			name: "tail trim",
			base: Interval{Start: 540, End: 720},
			sub:  Interval{Start: 660, End: 780},
			want: []Interval{{Start: 540, End: 660}},
		},
		{
			name: "full cover yields nothing",
			base: Interval{Start: 540, End: 720},
			sub:  Interval{Start: 540, End: 720},
			want: []Interval{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.base.Subtract(tt.sub)
			if len(got) == 0 && len(tt.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("Subtract = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIntervalOverlapsHalfOpen(t *testing.T) {
	a := Interval{Start: 540, End: 570}
	b := Interval{Start: 570, End: 600}
	if a.Overlaps(b) {
		t.Fatalf("adjacent intervals must not overlap")
	}
	c := Interval{Start: 555, End: 585}
	if !a.Overlaps(c) {
		t.Fatalf("expected overlap between %v and %v", a, c)
	}
}

func TestParseClock(t *testing.T) {
	got, err := ParseClock("09:30")
	if err != nil {
		t.Fatalf("ParseClock error: %v", err)
	}
	if got != 570 {
		t.Fatalf("ParseClock = %d, want 570", got)
	}

	if _, err := ParseClock("25:00"); err == nil {
		t.Fatalf("expected error for 25:00")
	}
	if _, err := ParseClock("9am"); err == nil {
		t.Fatalf("expected error for 9am")
	}
}

func TestFormatClock(t *testing.T) {
	if got := FormatClock(570); got != "09:30" {
		t.Fatalf("FormatClock = %q, want %q", got, "09:30")
	}
	if got := FormatClock(0); got != "00:00" {
		t.Fatalf("FormatClock = %q, want %q", got, "00:00")
	}
}
