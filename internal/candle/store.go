// Package candle implements the CandleStore (spec §4.1): a bounded ring of
// closed bars per timeframe, plus the mutable in-progress bucket. Locking
// mirrors the teacher's TTL cache (internal/data/cache/ttl.go) — RLock for
// reads, Lock for writes, never upgraded mid-call.
package candle

import (
	"sync"

	"github.com/sawpanic/sentinel/internal/model"
	"github.com/sawpanic/sentinel/internal/sentinelerr"
)

// slot is one timeframe's bounded history plus its open bucket.
type slot struct {
	mu                sync.RWMutex
	bars              []model.Bar // oldest-first, len <= cap
	cap               int
	open              *model.Bar
	openOK            bool
	droppedOutOfOrder int64
}

func (sl *slot) lastEpoch() (int64, bool) {
	if len(sl.bars) == 0 {
		return 0, false
	}
	return sl.bars[len(sl.bars)-1].EpochStart, true
}

func (sl *slot) append(bar model.Bar) {
	sl.bars = append(sl.bars, bar)
	if len(sl.bars) > sl.cap {
		// Evict oldest. Copying down keeps the backing array bounded instead
		// of growing unboundedly via repeated sl.bars[1:] reslicing.
		copy(sl.bars, sl.bars[1:])
		sl.bars = sl.bars[:sl.cap]
	}
}

// Store is the typed, bounded-history in-memory store of bars, one slot per
// configured timeframe.
type Store struct {
	capacity int
	mu       sync.RWMutex
	slots    map[model.Timeframe]*slot
}

// New creates a Store where every timeframe's history holds up to capacity
// closed bars (spec default 5000).
func New(capacity int) *Store {
	if capacity <= 0 {
		capacity = 5000
	}
	return &Store{capacity: capacity, slots: make(map[model.Timeframe]*slot)}
}

func (s *Store) slotFor(tf model.Timeframe) *slot {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl, ok := s.slots[tf]
	if !ok {
		sl = &slot{bars: make([]model.Bar, 0, s.capacity), cap: s.capacity}
		s.slots[tf] = sl
	}
	return sl
}

// Append adds a closed bar to tf's history. Rejects bars that are not
// strictly increasing in epoch_start, or not aligned to tf's width. Evicts
// the oldest bar when full.
func (s *Store) Append(tf model.Timeframe, bar model.Bar) error {
	if bar.EpochStart%tf.Seconds() != 0 {
		return sentinelerr.New(sentinelerr.KindBadInput, "bar epoch_start not aligned to timeframe", map[string]any{
			"epoch_start": bar.EpochStart, "timeframe": tf.String(),
		})
	}
	if err := bar.Validate(); err != nil {
		return sentinelerr.Wrap(sentinelerr.KindBadInput, err, "bar OHLCV invariant")
	}
	sl := s.slotFor(tf)
	sl.mu.Lock()
	defer sl.mu.Unlock()

	if last, ok := sl.lastEpoch(); ok && bar.EpochStart <= last {
		sl.droppedOutOfOrder++
		return sentinelerr.New(sentinelerr.KindBadInput, "bar epoch_start not strictly increasing", map[string]any{
			"last": last, "got": bar.EpochStart,
		})
	}
	sl.append(bar)
	return nil
}

// Latest returns up to n most recent closed bars for tf, oldest-first. n<=0
// returns every retained bar.
func (s *Store) Latest(tf model.Timeframe, n int) []model.Bar {
	sl := s.slotFor(tf)
	sl.mu.RLock()
	defer sl.mu.RUnlock()
	if n <= 0 || n > len(sl.bars) {
		n = len(sl.bars)
	}
	out := make([]model.Bar, n)
	copy(out, sl.bars[len(sl.bars)-n:])
	return out
}

// All returns every closed bar currently retained for tf, oldest-first.
func (s *Store) All(tf model.Timeframe) []model.Bar {
	return s.Latest(tf, -1)
}

// Size returns the number of closed bars currently retained for tf.
func (s *Store) Size(tf model.Timeframe) int {
	sl := s.slotFor(tf)
	sl.mu.RLock()
	defer sl.mu.RUnlock()
	return len(sl.bars)
}

// GetOpen returns the in-progress bucket for tf, if any.
func (s *Store) GetOpen(tf model.Timeframe) (model.Bar, bool) {
	sl := s.slotFor(tf)
	sl.mu.RLock()
	defer sl.mu.RUnlock()
	if !sl.openOK {
		return model.Bar{}, false
	}
	return *sl.open, true
}

// SetOpen replaces the in-progress bucket for tf.
func (s *Store) SetOpen(tf model.Timeframe, bar model.Bar) {
	sl := s.slotFor(tf)
	sl.mu.Lock()
	defer sl.mu.Unlock()
	b := bar
	sl.open = &b
	sl.openOK = true
}

// DroppedOutOfOrder returns the count of Append calls rejected for
// non-increasing epoch_start on tf.
func (s *Store) DroppedOutOfOrder(tf model.Timeframe) int64 {
	sl := s.slotFor(tf)
	sl.mu.RLock()
	defer sl.mu.RUnlock()
	return sl.droppedOutOfOrder
}

// Reset clears all stored bars across all timeframes (used by
// service.ResetData before a CSV re-import).
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slots = make(map[model.Timeframe]*slot)
}
