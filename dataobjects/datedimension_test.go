package dataobjects

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDateIDFor(t *testing.T) {
	instant := time.Date(2025, 8, 5, 10, 30, 7, 0, time.UTC)
	assert.Equal(t, int64(20250805103007), DateIDFor(instant))
}

func TestDateIDForTruncatesSubsecond(t *testing.T) {
	a := time.Date(2025, 8, 5, 10, 30, 7, 0, time.UTC)
	b := a.Add(700 * time.Millisecond)
	assert.Equal(t, DateIDFor(a), DateIDFor(b))
}

func TestNewDateDimension(t *testing.T) {
	instant := time.Date(2024, 12, 31, 23, 59, 58, 0, time.UTC)
	d := NewDateDimension(instant)

	assert.Equal(t, int64(20241231235958), d.DateID)
	assert.Equal(t, 2024, d.Year)
	assert.Equal(t, 12, d.Month)
	assert.Equal(t, 31, d.Day)
	assert.Equal(t, 23, d.Hour)
	assert.Equal(t, 59, d.Minute)
	assert.Equal(t, 58, d.Second)
	assert.Equal(t, "2024-12-31", d.FullDate.String())
}
