package relay

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisplayTitle(t *testing.T) {
	assert.Equal(t, "#Warroom", DisplayTitle("Untitled"))
	assert.Equal(t, "#Warroom Foo", DisplayTitle("Foo"))
	assert.Equal(t, "#Warroom untitled", DisplayTitle("untitled"))
	assert.Equal(t, "#Warroom ", DisplayTitle(""))
}

func TestFormatEventTime_UTC(t *testing.T) {
	got, err := FormatEventTime("1700000000", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, "2023-11-14 22:13:20", got)
}

func TestFormatEventTime_Fractional(t *testing.T) {
	got, err := FormatEventTime("1700000000.999900", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, "2023-11-14 22:13:20", got)
}

func TestFormatEventTime_Local(t *testing.T) {
	got, err := FormatEventTime("1700000000", nil)
	require.NoError(t, err)
	assert.Equal(t, time.Unix(1700000000, 0).Local().Format(EventTimeLayout), got)
}

func TestFormatEventTime_Reformat(t *testing.T) {
	loc := time.FixedZone("X", 5*3600+1800)
	first, err := FormatEventTime("1700000000", loc)
	require.NoError(t, err)

	parsed, err := time.ParseInLocation(EventTimeLayout, first, loc)
	require.NoError(t, err)
	assert.Equal(t, first, parsed.Format(EventTimeLayout))
	assert.Equal(t, int64(1700000000), parsed.Unix())
}

func TestFormatEventTime_Invalid(t *testing.T) {
	for _, ts := range []string{"", "abc", "NaN", "Inf"} {
		_, err := FormatEventTime(ts, time.UTC)
		assert.Error(t, err, ts)
	}
}

func TestFormatEventTime_OutOfRange(t *testing.T) {
	for _, ts := range []string{"1e20", "-1e20", "9223372036854775808"} {
		_, err := FormatEventTime(ts, time.UTC)
		assert.ErrorContains(t, err, "out of range", ts)
	}
	_, err := BuildTitle("1e20", "Untitled", time.UTC)
	assert.Error(t, err)
}

func TestBuildTitle(t *testing.T) {
	got, err := BuildTitle("1700000000", "Untitled", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, "2023-11-14 22:13:20 - #Warroom", got)

	got, err = BuildTitle("1700000000", "phish kit", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, "2023-11-14 22:13:20 - #Warroom phish kit", got)
}
