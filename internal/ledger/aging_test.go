package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDaysOverdue(t *testing.T) {
	due := time.Date(2026, 9, 30, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		now  time.Time
		want int
	}{
		{"before due date", due.AddDate(0, 0, -5), 0},
		{"on due date late in the day", due.Add(23 * time.Hour), 0},
		{"one day after", due.AddDate(0, 0, 1), 1},
		{"fifteen days after", time.Date(2026, 10, 15, 18, 30, 0, 0, time.UTC), 15},
		{"across a year", due.AddDate(1, 0, 0), 365},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DaysOverdue(due, tt.now))
		})
	}
}

func TestDaysOverdueUsesUTCDates(t *testing.T) {
	dubai := time.FixedZone("GST", 4*3600)
	due := time.Date(2026, 10, 1, 2, 0, 0, 0, dubai) // 2026-09-30 in UTC
	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, 1, DaysOverdue(due, now))
}

func TestBucket(t *testing.T) {
	assert.Equal(t, BucketCurrent, Bucket(0))
	assert.Equal(t, Bucket1To30, Bucket(1))
	assert.Equal(t, Bucket1To30, Bucket(30))
	assert.Equal(t, Bucket31To60, Bucket(31))
	assert.Equal(t, Bucket61To90, Bucket(90))
	assert.Equal(t, BucketOver90, Bucket(91))
}
