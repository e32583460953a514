// Package wsfeed is an illustrative gorilla/websocket push-feed adapter for
// internal/micro.Stream. Live exchange connectivity is an external
// collaborator; this adapter demonstrates the reconnect/backoff/circuit
// breaker/rate-limit wiring the engine expects from a real feed, grounded on
// the teacher's internal/providers/kraken/websocket.go reconnect-trigger
// shape and internal/net/ratelimit's token-bucket dial pacing.
package wsfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/sawpanic/sentinel/internal/metrics"
	"github.com/sawpanic/sentinel/internal/micro"
)

// Backoff parameters from spec §5: base 1s, cap 30s, multiplier 1.5, reset
// on successful connect.
const (
	backoffBase       = 1 * time.Second
	backoffCap        = 30 * time.Second
	backoffMultiplier = 1.5

	// dialRPS caps outbound dial attempts independent of the backoff delay,
	// so a breaker reset can't itself trigger a reconnect burst.
	dialRPS   = 1
	dialBurst = 1
)

// WireMessage is the illustrative on-wire shape: a tagged union of trade and
// book-level updates. Real feeds vary; a deployment swaps this decoder for
// the venue's own framing.
type WireMessage struct {
	Type  string     `json:"type"` // "trade" or "book"
	Trade *wireTrade `json:"trade,omitempty"`
	Book  *wireBook  `json:"book,omitempty"`
}

type wireTrade struct {
	EpochMicros int64   `json:"epoch_micros"`
	Price       float64 `json:"price"`
	Size        float64 `json:"size"`
	Side        string  `json:"side"` // "buy" or "sell"
}

type wireBook struct {
	EpochMicros int64         `json:"epoch_micros"`
	Bids        []micro.Level `json:"bids"`
	Asks        []micro.Level `json:"asks"`
}

// Feed connects to a single venue WebSocket endpoint and folds every
// message into a micro.Stream, reconnecting with exponential backoff and
// tripping a circuit breaker after repeated failures.
type Feed struct {
	name    string
	url     string
	stream  *micro.Stream
	log     zerolog.Logger
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter

	connected atomic.Bool
}

// New builds a Feed. name identifies the venue in the breaker and logs.
func New(name, feedURL string, stream *micro.Stream, log zerolog.Logger) *Feed {
	st := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}
	return &Feed{
		name:    name,
		url:     feedURL,
		stream:  stream,
		log:     log.With().Str("feed", name).Logger(),
		breaker: gobreaker.NewCircuitBreaker(st),
		limiter: rate.NewLimiter(rate.Limit(dialRPS), dialBurst),
	}
}

// Connected reports whether the feed currently holds a live connection.
func (f *Feed) Connected() bool { return f.connected.Load() }

// Run drives the connect/read/reconnect loop until ctx is cancelled. Each
// connection attempt goes through the circuit breaker; a tripped breaker
// short-circuits attempts until its timeout elapses, and the backoff delay
// still advances between attempts so the two policies compose rather than
// race each other.
func (f *Feed) Run(ctx context.Context) error {
	delay := backoffBase
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		_, err := f.breaker.Execute(func() (any, error) {
			return nil, f.connectAndRead(ctx)
		})
		wasConnected := f.connected.Swap(false)
		f.reportBreakerState()

		if err == nil || wasConnected {
			delay = backoffBase // reset once a connect has succeeded
		}
		if err == nil {
			continue
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		f.log.Warn().Err(err).Dur("backoff", delay).Msg("feed disconnected, backing off")
		if !sleepWithJitter(ctx, delay) {
			return ctx.Err()
		}
		delay = nextBackoff(delay)
	}
}

func (f *Feed) reportBreakerState() {
	v := 0.0
	if f.breaker.State() == gobreaker.StateOpen {
		v = 1
	}
	metrics.IngestorCircuitOpen.WithLabelValues(f.name).Set(v)
}

func nextBackoff(d time.Duration) time.Duration {
	next := time.Duration(float64(d) * backoffMultiplier)
	if next > backoffCap {
		next = backoffCap
	}
	return next
}

// sleepWithJitter waits d plus up to 20% jitter, or returns false if ctx is
// cancelled first.
func sleepWithJitter(ctx context.Context, d time.Duration) bool {
	jitter := time.Duration(rand.Int63n(int64(d) / 5))
	t := time.NewTimer(d + jitter)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (f *Feed) connectAndRead(ctx context.Context) error {
	if err := f.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("wsfeed: rate limiter: %w", err)
	}

	u, err := url.Parse(f.url)
	if err != nil {
		return fmt.Errorf("wsfeed: invalid url: %w", err)
	}

	dialer := websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second

	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("wsfeed: dial: %w", err)
	}
	defer conn.Close()

	f.connected.Store(true)
	f.log.Info().Str("url", f.url).Msg("feed connected")

	closeCh := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-closeCh:
		}
	}()
	defer close(closeCh)

	for {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("wsfeed: read: %w", err)
		}
		if err := f.handle(data); err != nil {
			f.log.Warn().Err(err).Msg("feed message dropped")
		}
	}
}

func (f *Feed) handle(data []byte) error {
	var msg WireMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	switch msg.Type {
	case "trade":
		if msg.Trade == nil {
			return fmt.Errorf("trade message missing payload")
		}
		side := micro.SideBuy
		if msg.Trade.Side == "sell" {
			side = micro.SideSell
		}
		f.stream.OnTrade(micro.TradeEvent{
			EpochMicros: msg.Trade.EpochMicros,
			Price:       msg.Trade.Price,
			Size:        msg.Trade.Size,
			Side:        side,
		})
	case "book":
		if msg.Book == nil {
			return fmt.Errorf("book message missing payload")
		}
		f.stream.OnBook(micro.BookEvent{
			EpochMicros: msg.Book.EpochMicros,
			Bids:        msg.Book.Bids,
			Asks:        msg.Book.Asks,
		})
	default:
		return fmt.Errorf("unknown message type %q", msg.Type)
	}
	return nil
}
