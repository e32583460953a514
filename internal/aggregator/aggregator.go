// Package aggregator folds price ticks into OHLCV bars per timeframe (spec
// §4.2). One Aggregator instance owns one timeframe's bucket; the engine
// runs one goroutine per configured timeframe (spec §5), each reading off
// its own tick channel — the single-writer-per-timeframe discipline the
// CandleStore's locking assumes.
package aggregator

import (
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/sentinel/internal/candle"
	"github.com/sawpanic/sentinel/internal/model"
)

// Tick is one incoming price observation. Size is optional (0 if the feed
// doesn't carry trade size).
type Tick struct {
	EpochMicros int64
	Price       float64
	Size        float64
}

// Aggregator folds a tick stream into closed bars for one timeframe.
type Aggregator struct {
	tf    model.Timeframe
	store *candle.Store

	haveOpen    bool
	bucketStart int64
	open        model.Bar
	lastPrice   float64

	droppedLate int64
}

// New creates an Aggregator for timeframe tf, publishing closed bars into store.
func New(tf model.Timeframe, store *candle.Store) *Aggregator {
	return &Aggregator{tf: tf, store: store}
}

// DroppedLate returns the count of ticks dropped for arriving before the
// current bucket's start.
func (a *Aggregator) DroppedLate() int64 { return a.droppedLate }

// Ingest folds one tick into the current bucket, finalizing and publishing
// any bucket(s) the tick rolls past. Gap buckets are filled synthetically
// with open=close=last_price, volume=0, Synthetic=true.
func (a *Aggregator) Ingest(t Tick) {
	bucket := a.tf.BucketStart(t.EpochMicros)

	if a.haveOpen && bucket < a.bucketStart {
		a.droppedLate++
		log.Debug().Int64("epoch_micros", t.EpochMicros).Str("tf", a.tf.String()).Msg("dropped late tick")
		return
	}

	if !a.haveOpen {
		a.startBucket(bucket, t.Price, t.Size)
		a.lastPrice = t.Price
		return
	}

	if bucket == a.bucketStart {
		a.fold(t)
		a.lastPrice = t.Price
		return
	}

	// The tick belongs to a later bucket: close the current one, gap-fill any
	// skipped buckets, then open the tick's bucket.
	a.closeAndPublish()
	width := a.tf.Seconds()
	for next := a.bucketStart + width; next < bucket; next += width {
		a.publishSynthetic(next)
	}
	a.startBucket(bucket, t.Price, t.Size)
	a.lastPrice = t.Price
}

func (a *Aggregator) startBucket(bucket int64, price, size float64) {
	a.haveOpen = true
	a.bucketStart = bucket
	a.open = model.Bar{EpochStart: bucket, Open: price, High: price, Low: price, Close: price, Volume: size}
	a.store.SetOpen(a.tf, a.open)
}

func (a *Aggregator) fold(t Tick) {
	if t.Price > a.open.High {
		a.open.High = t.Price
	}
	if t.Price < a.open.Low {
		a.open.Low = t.Price
	}
	a.open.Close = t.Price
	a.open.Volume += t.Size
	a.store.SetOpen(a.tf, a.open)
}

func (a *Aggregator) closeAndPublish() {
	if err := a.store.Append(a.tf, a.open); err != nil {
		log.Warn().Err(err).Str("tf", a.tf.String()).Msg("failed to publish closed bar")
	}
}

func (a *Aggregator) publishSynthetic(bucket int64) {
	bar := model.Bar{EpochStart: bucket, Open: a.lastPrice, High: a.lastPrice, Low: a.lastPrice,
		Close: a.lastPrice, Volume: 0, Synthetic: true}
	if err := a.store.Append(a.tf, bar); err != nil {
		log.Warn().Err(err).Str("tf", a.tf.String()).Msg("failed to publish synthetic gap bar")
	}
}

// FlushOpen force-closes the current in-progress bucket (used at shutdown or
// when replaying a finite batch of ticks to completion).
func (a *Aggregator) FlushOpen() {
	if a.haveOpen {
		a.closeAndPublish()
		a.haveOpen = false
	}
}
