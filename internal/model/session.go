package model

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

var (
	// ErrNoChannels is returned when a session is started without any selected channel.
	ErrNoChannels = errors.New("no channels selected")
	// ErrInvalidConfig wraps every range violation in a SessionConfig.
	ErrInvalidConfig = errors.New("invalid session config")
)

// Limits of the session settings, matching what the acquisition front panel accepts.
const (
	MinChannel = 1
	MaxChannel = 8

	MinDuration = 10 * time.Second
	MaxDuration = 3600 * time.Second

	MinElementsPerRequest = 10
	MaxElementsPerRequest = 1000

	MinPlotWindow = 10
	MaxPlotWindow = 500
)

// SampleRate is an ADC sample rate in Hz. Only the enumerated rates are accepted by the device.
type SampleRate int

const (
	SampleRate500Hz  SampleRate = 500
	SampleRate1kHz   SampleRate = 1000
	SampleRate2kHz   SampleRate = 2000
	SampleRate5kHz   SampleRate = 5000
	SampleRate10kHz  SampleRate = 10000
	SampleRate20kHz  SampleRate = 20000
	SampleRate50kHz  SampleRate = 50000
	SampleRate100kHz SampleRate = 100000
)

// SampleRates lists the accepted rates in ascending order.
var SampleRates = []SampleRate{
	SampleRate500Hz, SampleRate1kHz, SampleRate2kHz, SampleRate5kHz,
	SampleRate10kHz, SampleRate20kHz, SampleRate50kHz, SampleRate100kHz,
}

// Valid reports whether r is one of the enumerated rates.
func (r SampleRate) Valid() bool {
	for _, rate := range SampleRates {
		if rate == r {
			return true
		}
	}
	return false
}

// Voltage is an enumerated input range.
type Voltage string

const (
	Voltage5V  Voltage = "Voltage5V"
	Voltage10V Voltage = "Voltage10V"
)

// Valid reports whether v is a known input range.
func (v Voltage) Valid() bool {
	return v == Voltage5V || v == Voltage10V
}

// Volts returns the symmetric full-scale value of the range.
func (v Voltage) Volts() float64 {
	switch v {
	case Voltage10V:
		return 10
	default:
		return 5
	}
}

// ChannelMask selects device channels; bit 0 is channel 1.
type ChannelMask uint8

// AllChannels enables every analog input.
const AllChannels ChannelMask = 0xFF

// Has reports whether the 1-based channel is enabled in the mask.
func (m ChannelMask) Has(channel int) bool {
	if channel < MinChannel || channel > MaxChannel {
		return false
	}
	return m&(1<<uint(channel-1)) != 0
}

// SessionConfig is the immutable snapshot a measurement runs with.
type SessionConfig struct {
	Duration           time.Duration `json:"duration"`
	SampleRate         SampleRate    `json:"sample_rate"`
	Voltage            Voltage       `json:"voltage"`
	ElementsPerRequest int           `json:"elements_per_request"`
	Channels           []int         `json:"channels"`
	Averaging          bool          `json:"averaging"`
	PlotWindow         int           `json:"plot_window"`
}

// Clone returns a deep copy so later edits of the source never reach a running session.
func (c SessionConfig) Clone() SessionConfig {
	c.Channels = append([]int(nil), c.Channels...)
	return c
}

// Normalize returns a copy with channels sorted ascending and de-duplicated.
func (c SessionConfig) Normalize() SessionConfig {
	out := c.Clone()
	sort.Ints(out.Channels)
	uniq := out.Channels[:0]
	for i, ch := range out.Channels {
		if i > 0 && ch == out.Channels[i-1] {
			continue
		}
		uniq = append(uniq, ch)
	}
	out.Channels = uniq
	return out
}

// Validate checks the channel selection and every range.
func (c SessionConfig) Validate() error {
	if len(c.Channels) == 0 {
		return ErrNoChannels
	}
	return c.ValidateRanges()
}

// ValidateRanges checks everything except the emptiness of the channel
// selection; an empty selection is a legal setting between sessions.
func (c SessionConfig) ValidateRanges() error {
	if c.Duration < MinDuration || c.Duration > MaxDuration {
		return fmt.Errorf("%w: duration %s outside [%s, %s]", ErrInvalidConfig, c.Duration, MinDuration, MaxDuration)
	}
	if !c.SampleRate.Valid() {
		return fmt.Errorf("%w: unsupported sample rate %d", ErrInvalidConfig, c.SampleRate)
	}
	if !c.Voltage.Valid() {
		return fmt.Errorf("%w: unsupported voltage range %q", ErrInvalidConfig, c.Voltage)
	}
	if c.ElementsPerRequest < MinElementsPerRequest || c.ElementsPerRequest > MaxElementsPerRequest {
		return fmt.Errorf("%w: elements per request %d outside [%d, %d]",
			ErrInvalidConfig, c.ElementsPerRequest, MinElementsPerRequest, MaxElementsPerRequest)
	}
	if c.PlotWindow < MinPlotWindow || c.PlotWindow > MaxPlotWindow {
		return fmt.Errorf("%w: plot window %d outside [%d, %d]", ErrInvalidConfig, c.PlotWindow, MinPlotWindow, MaxPlotWindow)
	}
	for _, ch := range c.Channels {
		if ch < MinChannel || ch > MaxChannel {
			return fmt.Errorf("%w: channel %d outside [%d, %d]", ErrInvalidConfig, ch, MinChannel, MaxChannel)
		}
	}
	return nil
}
