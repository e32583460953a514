// Package model holds the shared data types that flow between subsystems:
// bars, candidates, signals, microstructure snapshots, confluence scores,
// scalp cards and backtest trades. Every published value here is immutable
// once constructed — subsystems hand off copies, never pointers into their
// own mutable state.
package model

import "fmt"

// Timeframe is a bar width in seconds.
type Timeframe int64

const (
	TF1s  Timeframe = 1
	TF5s  Timeframe = 5
	TF1m  Timeframe = 60
	TF5m  Timeframe = 5 * 60
	TF15m Timeframe = 15 * 60
	TF1h  Timeframe = 60 * 60
	TF4h  Timeframe = 4 * 60 * 60
	TF1d  Timeframe = 24 * 60 * 60
)

// AllTimeframes lists the enumeration in ascending order.
var AllTimeframes = []Timeframe{TF1s, TF5s, TF1m, TF5m, TF15m, TF1h, TF4h, TF1d}

func (tf Timeframe) String() string {
	switch tf {
	case TF1s:
		return "1s"
	case TF5s:
		return "5s"
	case TF1m:
		return "1m"
	case TF5m:
		return "5m"
	case TF15m:
		return "15m"
	case TF1h:
		return "1h"
	case TF4h:
		return "4h"
	case TF1d:
		return "1d"
	default:
		return fmt.Sprintf("tf(%ds)", int64(tf))
	}
}

// Seconds returns the bucket width in seconds.
func (tf Timeframe) Seconds() int64 { return int64(tf) }

// BucketStart returns the aligned epoch-second bucket start containing epochMicros.
func (tf Timeframe) BucketStart(epochMicros int64) int64 {
	epochSec := epochMicros / 1_000_000
	width := tf.Seconds()
	return (epochSec / width) * width
}
