package eventbus

import "testing"

func TestPublishDeliversInFIFOOrder(t *testing.T) {
	b := New(4)
	sub := b.Subscribe(TopicSignals)
	b.Publish(TopicSignals, 1)
	b.Publish(TopicSignals, 2)
	b.Publish(TopicSignals, 3)

	for _, want := range []int{1, 2, 3} {
		env := <-sub.C()
		if env.Payload.(int) != want {
			t.Fatalf("expected %d, got %v", want, env.Payload)
		}
	}
}

func TestDropOldestUnderBackpressure(t *testing.T) {
	b := New(2)
	sub := b.Subscribe(TopicSnapshots)
	b.Publish(TopicSnapshots, 1)
	b.Publish(TopicSnapshots, 2)
	b.Publish(TopicSnapshots, 3) // buffer full at 2: drops "1", keeps 2,3

	first := <-sub.C()
	if first.Payload.(int) != 2 {
		t.Fatalf("expected oldest-dropped delivery to start at 2, got %v", first.Payload)
	}
	if first.LagCount != 1 {
		t.Fatalf("expected lag_count=1 after one drop, got %d", first.LagCount)
	}
}

func TestUnsubscribeIdempotent(t *testing.T) {
	b := New(4)
	sub := b.Subscribe(TopicState)
	b.Unsubscribe(sub)
	b.Unsubscribe(sub) // must not panic or double-remove
	b.Publish(TopicState, "x")
	select {
	case <-sub.C():
		t.Fatal("expected no delivery after unsubscribe")
	default:
	}
}

func TestSeparateTopicsIsolated(t *testing.T) {
	b := New(4)
	signalsSub := b.Subscribe(TopicSignals)
	stateSub := b.Subscribe(TopicState)
	b.Publish(TopicSignals, "sig")

	select {
	case env := <-signalsSub.C():
		if env.Payload != "sig" {
			t.Fatalf("unexpected payload: %v", env.Payload)
		}
	default:
		t.Fatal("expected delivery on signals topic")
	}
	select {
	case <-stateSub.C():
		t.Fatal("state subscriber should not receive a signals-topic publish")
	default:
	}
}
