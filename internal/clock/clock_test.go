package clock

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loanledger/internal/models"
)

func TestManual_SetDatePinsToday(t *testing.T) {
	c := NewManual()
	require.NoError(t, c.SetDate("2025-03-23"))

	assert.Equal(t, "2025-03-23", c.Today().String())
	assert.Equal(t, time.Date(2025, 3, 23, 0, 0, 0, 0, time.UTC), c.Now())

	c.Advance(10)
	assert.Equal(t, "2025-04-02", c.Today().String())
}

func TestManual_InvalidDateKeepsPreviousValue(t *testing.T) {
	c := NewManual()
	require.NoError(t, c.SetDate("2025-01-01"))

	for _, in := range []string{"", "2025/01/02", "01-02-2025", "2025-13-01", "tomorrow"} {
		err := c.SetDate(in)
		require.Error(t, err, in)
		assert.True(t, errors.Is(err, ErrInvalidDateFormat), in)
	}
	assert.Equal(t, "2025-01-01", c.Today().String())
}

func TestManual_ResetFollowsSystemClock(t *testing.T) {
	c := NewManual()
	require.NoError(t, c.SetDate("1999-12-31"))
	c.Reset()

	assert.Equal(t, models.DateOf(time.Now()).String(), c.Today().String())

	c.Advance(3)
	assert.Equal(t, models.DateOf(time.Now()).String(), c.Today().String())
}

func TestSystem_UsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC+14", 14*60*60)
	s := System{Location: loc}

	assert.Equal(t, models.DateOf(time.Now().In(loc)).String(), s.Today().String())
}
