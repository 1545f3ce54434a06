package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2022-08-01")
	require.NoError(t, err)
	assert.Equal(t, Date{Year: 2022, Month: time.August, Day: 1}, d)

	_, err = ParseDate("01/08/2022")
	assert.Error(t, err)
}

func TestDateJSONRoundTrip(t *testing.T) {
	d := Date{Year: 2023, Month: time.February, Day: 9}

	data, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Equal(t, `"2023-02-09"`, string(data))

	var parsed Date
	require.NoError(t, json.Unmarshal(data, &parsed))
	assert.Equal(t, d, parsed)

	assert.Error(t, json.Unmarshal([]byte(`42`), &parsed))
}

func TestDateArithmetic(t *testing.T) {
	d := Date{Year: 2022, Month: time.December, Day: 31}
	assert.Equal(t, Date{Year: 2023, Month: time.January, Day: 1}, d.AddDays(1))

	assert.True(t, d.Before(d.AddDays(1)))
	assert.True(t, d.AddDays(1).After(d))
	assert.False(t, d.Before(d))
}

func TestDaysInMonth(t *testing.T) {
	assert.Equal(t, 31, Date{Year: 2023, Month: time.January, Day: 5}.DaysInMonth())
	assert.Equal(t, 28, Date{Year: 2023, Month: time.February, Day: 5}.DaysInMonth())
	assert.Equal(t, 29, Date{Year: 2024, Month: time.February, Day: 5}.DaysInMonth())
}

func TestDateOf(t *testing.T) {
	instant := time.Date(2023, time.July, 14, 23, 59, 0, 0, time.UTC)
	assert.Equal(t, Date{Year: 2023, Month: time.July, Day: 14}, DateOf(instant))
}
