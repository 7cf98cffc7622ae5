package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatParseRoundTrip(t *testing.T) {
	day, err := ParseDate("2026-08-23")
	require.NoError(t, err)
	assert.Equal(t, "2026-08-23", FormatDate(day))
}

func TestParseDateRejectsGarbage(t *testing.T) {
	_, err := ParseDate("23.08.2026")
	assert.Error(t, err)
}

func TestDaysBetween(t *testing.T) {
	start, _ := ParseDate("2026-08-23")

	tests := []struct {
		name string
		end  time.Time
		want int
	}{
		{"same instant", start, 0},
		{"partial day floors to zero", start.Add(23 * time.Hour), 0},
		{"exactly three days", start.AddDate(0, 0, 3), 3},
		{"mid fourth day floors to three", start.AddDate(0, 0, 3).Add(12 * time.Hour), 3},
		{"end before start is negative", start.AddDate(0, 0, -2), -2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DaysBetween(start, tt.end))
		})
	}
}
