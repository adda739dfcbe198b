package dates

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2009, time.November, 12, 14, 30, 0, 0, time.Local)

func TestParseRelativeDates(t *testing.T) {
	tests := []struct {
		raw  string
		want time.Time
	}{
		{"dzisiaj, 21:15", time.Date(2009, time.November, 12, 21, 15, 0, 0, time.Local)},
		{"Dzisiaj 8:03", time.Date(2009, time.November, 12, 8, 3, 0, 0, time.Local)},
		{"wczoraj, 10:02", time.Date(2009, time.November, 11, 10, 2, 0, 0, time.Local)},
		{"wczoraj", time.Date(2009, time.November, 11, 0, 0, 0, 0, time.Local)},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := parseAt(tt.raw, testNow)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseAbsoluteDates(t *testing.T) {
	tests := []struct {
		raw  string
		want time.Time
	}{
		{"12 kwietnia 2008, 21:15", time.Date(2008, time.April, 12, 21, 15, 0, 0, time.Local)},
		{"2 sty 2010 9:05", time.Date(2010, time.January, 2, 9, 5, 0, 0, time.Local)},
		{"07 października 2011", time.Date(2011, time.October, 7, 0, 0, 0, 0, time.Local)},
		{"Pn kwi 07, 2008 21:15", time.Date(2008, time.April, 7, 21, 15, 0, 0, time.Local)},
		{"Czw lis 12, 2009 14:32", time.Date(2009, time.November, 12, 14, 32, 0, 0, time.Local)},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := ParsePolishDate(tt.raw)
			require.True(t, ok, "expected %q to parse", tt.raw)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	for _, raw := range []string{
		"",
		"   ",
		"no date here",
		"32 stycznia 2008",
		"12 foobaria 2008",
		"yesterday 10:00",
	} {
		t.Run(raw, func(t *testing.T) {
			_, ok := ParsePolishDate(raw)
			assert.False(t, ok)
		})
	}
}

func TestNormalizeOrRaw(t *testing.T) {
	assert.Equal(t, "2008-04-12 21:15:00", NormalizeOrRaw("12 kwietnia 2008, 21:15"))
	// Unparseable input survives verbatim so nothing is dropped.
	assert.Equal(t, "w zeszłym tygodniu", NormalizeOrRaw("  w zeszłym tygodniu "))
}
