package persistence

import (
	"context"
	"testing"
)

func TestMemSinkPutGetRoundTrip(t *testing.T) {
	s := NewMemSink()
	ctx := context.Background()
	if err := s.Put(ctx, "signal:1", []byte("hello")); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, ok, err := s.Get(ctx, "signal:1")
	if err != nil || !ok || string(got) != "hello" {
		t.Fatalf("get: got=%q ok=%v err=%v", got, ok, err)
	}
}

func TestMemSinkMissingKey(t *testing.T) {
	s := NewMemSink()
	_, ok, err := s.Get(context.Background(), "missing")
	if err != nil || ok {
		t.Fatalf("expected ok=false for missing key, got ok=%v err=%v", ok, err)
	}
}

func TestMemSinkCopiesOnPut(t *testing.T) {
	s := NewMemSink()
	ctx := context.Background()
	buf := []byte("abc")
	_ = s.Put(ctx, "k", buf)
	buf[0] = 'z'
	got, _, _ := s.Get(ctx, "k")
	if string(got) != "abc" {
		t.Fatalf("expected stored value isolated from caller's buffer mutation, got %q", got)
	}
}
