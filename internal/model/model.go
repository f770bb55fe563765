package model

import (
	"fmt"
	"time"
)

// Kind tags how an aggregated value is represented.
type Kind uint8

const (
	// KindScalar is one averaged reading per burst.
	KindScalar Kind = iota
	// KindSequence is the full burst of readings, passed through unchanged.
	KindSequence
)

// String returns the name used in persisted headers and on the wire.
func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindSequence:
		return "sequence"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "scalar":
		return KindScalar, nil
	case "sequence":
		return KindSequence, nil
	default:
		return 0, fmt.Errorf("unknown value kind %q", s)
	}
}

// KindFor returns the series kind produced by a session with the given averaging flag.
func KindFor(averaging bool) Kind {
	if averaging {
		return KindScalar
	}
	return KindSequence
}

// Value is either a scalar or a sequence, depending on Kind.
type Value struct {
	Kind     Kind
	Scalar   float64
	Sequence []float64
}

// ScalarValue wraps a single averaged reading.
func ScalarValue(v float64) Value {
	return Value{Kind: KindScalar, Scalar: v}
}

// SequenceValue wraps a full burst of readings.
func SequenceValue(v []float64) Value {
	return Value{Kind: KindSequence, Sequence: v}
}

// Burst holds the raw readings returned by one device read for one channel.
type Burst struct {
	Channel  int
	Readings []float64
	// Elapsed is measured from the start of acquisition, not from session start.
	Elapsed time.Duration
}

// Point is the aggregated form of a Burst.
type Point struct {
	Channel int
	Value   Value
	Elapsed time.Duration
}
