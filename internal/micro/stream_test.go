package micro

import "testing"

func TestSnapshotUnavailableBeforeFirstEvent(t *testing.T) {
	s := New(10, 5000)
	snap := s.Snapshot(1_000_000)
	if snap.Available {
		t.Fatal("expected Available=false before any event")
	}
}

func TestOnTradeAccumulatesCVD(t *testing.T) {
	s := New(10, 5000)
	s.OnTrade(TradeEvent{EpochMicros: 1_000_000, Price: 100, Size: 5, Side: SideBuy})
	s.OnTrade(TradeEvent{EpochMicros: 1_100_000, Price: 100, Size: 2, Side: SideSell})
	snap := s.Snapshot(1_100_000)
	if !snap.Available {
		t.Fatal("expected Available=true after an event")
	}
	if snap.CVD != 3 {
		t.Fatalf("expected CVD=3, got %v", snap.CVD)
	}
}

func TestOnBookComputesSpreadAndImbalance(t *testing.T) {
	s := New(2, 5000)
	s.OnBook(BookEvent{
		EpochMicros: 2_000_000,
		Bids:        []Level{{Price: 99.9, Size: 10}, {Price: 99.8, Size: 5}},
		Asks:        []Level{{Price: 100.1, Size: 4}, {Price: 100.2, Size: 1}},
	})
	snap := s.Snapshot(2_000_000)
	if snap.BidDepth != 15 || snap.AskDepth != 5 {
		t.Fatalf("unexpected depths: bid=%v ask=%v", snap.BidDepth, snap.AskDepth)
	}
	if snap.LadderImbalance <= 0 {
		t.Fatalf("expected positive imbalance favoring bid side, got %v", snap.LadderImbalance)
	}
	if snap.SpreadBPS <= 0 {
		t.Fatalf("expected positive spread bps, got %v", snap.SpreadBPS)
	}
}

func TestSnapshotGoesStale(t *testing.T) {
	s := New(10, 1000)
	s.OnTrade(TradeEvent{EpochMicros: 0, Price: 100, Size: 1, Side: SideBuy})
	fresh := s.Snapshot(500_000) // 500ms later
	if !fresh.Available {
		t.Fatal("expected still available within staleness window")
	}
	stale := s.Snapshot(2_000_000) // 2s later, staleness is 1000ms
	if stale.Available {
		t.Fatal("expected Available=false after staleness window elapses")
	}
}

func TestCVDSlopePositiveOnSustainedBuying(t *testing.T) {
	s := New(10, 5000)
	for i := 0; i < 10; i++ {
		s.OnTrade(TradeEvent{EpochMicros: int64(i) * 100_000, Price: 100, Size: 1, Side: SideBuy})
	}
	snap := s.Snapshot(900_000)
	if snap.CVDSlope <= 0 {
		t.Fatalf("expected positive CVD slope under sustained buying, got %v", snap.CVDSlope)
	}
}
