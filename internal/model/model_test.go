package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() SessionConfig {
	return SessionConfig{
		Duration:           10 * time.Second,
		SampleRate:         SampleRate10kHz,
		Voltage:            Voltage5V,
		ElementsPerRequest: 100,
		Channels:           []int{1, 3},
		Averaging:          true,
		PlotWindow:         100,
	}
}

func TestSessionConfig_Validate(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())

	empty := validConfig()
	empty.Channels = nil
	assert.ErrorIs(t, empty.Validate(), ErrNoChannels)
	assert.NoError(t, empty.ValidateRanges())

	cases := map[string]func(c *SessionConfig){
		"duration too short":   func(c *SessionConfig) { c.Duration = 9 * time.Second },
		"duration too long":    func(c *SessionConfig) { c.Duration = time.Hour + time.Second },
		"unsupported rate":     func(c *SessionConfig) { c.SampleRate = 1234 },
		"unknown voltage":      func(c *SessionConfig) { c.Voltage = "Voltage3V" },
		"too few elements":     func(c *SessionConfig) { c.ElementsPerRequest = 9 },
		"too many elements":    func(c *SessionConfig) { c.ElementsPerRequest = 1001 },
		"plot window small":    func(c *SessionConfig) { c.PlotWindow = 5 },
		"plot window large":    func(c *SessionConfig) { c.PlotWindow = 501 },
		"channel out of range": func(c *SessionConfig) { c.Channels = []int{0, 2} },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := validConfig()
			mutate(&c)
			assert.ErrorIs(t, c.Validate(), ErrInvalidConfig)
		})
	}
}

func TestSessionConfig_NormalizeSortsAndDedupes(t *testing.T) {
	cfg := validConfig()
	cfg.Channels = []int{5, 2, 5, 1, 2}

	norm := cfg.Normalize()

	assert.Equal(t, []int{1, 2, 5}, norm.Channels)
	assert.Equal(t, []int{5, 2, 5, 1, 2}, cfg.Channels, "source must not be modified")
}

func TestChannelMask(t *testing.T) {
	m := ChannelMask(0b10000101)
	assert.True(t, m.Has(1))
	assert.True(t, m.Has(3))
	assert.True(t, m.Has(8))
	assert.False(t, m.Has(2))
	assert.False(t, m.Has(9))
	for ch := MinChannel; ch <= MaxChannel; ch++ {
		assert.True(t, AllChannels.Has(ch))
	}
}

func TestKindRoundTrip(t *testing.T) {
	for _, k := range []Kind{KindScalar, KindSequence} {
		parsed, err := ParseKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, parsed)
	}
	_, err := ParseKind("matrix")
	assert.Error(t, err)
}

func TestRecord_AppendKeepsKindAndOrder(t *testing.T) {
	cfg := validConfig()
	rec := NewRecord(NewHeader(cfg))

	require.NoError(t, rec.Append(Point{Channel: 1, Value: ScalarValue(1.5), Elapsed: time.Millisecond}))
	require.NoError(t, rec.Append(Point{Channel: 1, Value: ScalarValue(2.5), Elapsed: 2 * time.Millisecond}))
	require.NoError(t, rec.Append(Point{Channel: 3, Value: ScalarValue(-1), Elapsed: 3 * time.Millisecond}))

	err := rec.Append(Point{Channel: 1, Value: SequenceValue([]float64{1, 2})})
	assert.ErrorIs(t, err, ErrSeriesKind)

	err = rec.Append(Point{Channel: 2, Value: ScalarValue(0)})
	assert.ErrorIs(t, err, ErrUnknownChannel)

	s, ok := rec.Series(1)
	require.True(t, ok)
	assert.Equal(t, KindScalar, s.Kind)
	assert.Equal(t, []float64{1.5, 2.5}, s.Scalars)
	assert.Equal(t, []time.Duration{time.Millisecond, 2 * time.Millisecond}, s.Elapsed)
	assert.Equal(t, map[int]int{1: 2, 3: 1}, rec.Count())
	assert.Equal(t, 3, rec.Total())
}

func TestRecord_SeriesIsACopy(t *testing.T) {
	cfg := validConfig()
	cfg.Averaging = false
	rec := NewRecord(NewHeader(cfg))

	burst := []float64{1, 2, 3}
	require.NoError(t, rec.Append(Point{Channel: 3, Value: SequenceValue(burst)}))
	burst[0] = 99

	s, _ := rec.Series(3)
	assert.Equal(t, [][]float64{{1, 2, 3}}, s.Sequences)

	s.Sequences[0][1] = 42
	again, _ := rec.Series(3)
	assert.Equal(t, 2.0, again.Sequences[0][1])
}

func TestRecord_MarkFinishedOnce(t *testing.T) {
	rec := NewRecord(NewHeader(validConfig()))
	assert.False(t, rec.Finished())
	assert.True(t, rec.MarkFinished())
	assert.False(t, rec.MarkFinished())
	assert.True(t, rec.Finished())
}

func TestNewHeader(t *testing.T) {
	cfg := validConfig()
	h1 := NewHeader(cfg)
	h2 := NewHeader(cfg)

	assert.NotEmpty(t, h1.ID)
	assert.NotEqual(t, h1.ID, h2.ID)
	assert.Equal(t, time.UTC, h1.CreatedAt.Location())
	assert.Equal(t, KindScalar, h1.Kind())

	cfg.Channels[0] = 7
	assert.Equal(t, []int{1, 3}, h1.Channels)
}
