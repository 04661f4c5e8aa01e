package radio

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/StarshatterWars/SSW-UE55-sub001/internal/geom"
)

// Message is one radio transmission between ships, elements or the whole theatre.
type Message struct {
	Sequence    uint64
	Action      Action
	Sender      string
	SenderIFF   int
	Recipient   string
	Element     string
	Target      string
	Location    geom.Vec3
	Info        string
	MissionTime time.Duration
}

// Broadcast reports whether the message is addressed to nobody in particular.
func (m Message) Broadcast() bool { return m.Recipient == "" && m.Element == "" }

// Config controls the retention policy for the traffic log and subscriber buffers.
type Config struct {
	Retain int
}

// Default retention keeps the last 512 transmissions if no explicit value is provided.
const defaultRetention = 512

// Traffic sequences radio messages and fans them out with at-least-once semantics per subscriber.
type Traffic struct {
	mu          sync.Mutex
	nextSeq     uint64
	retention   int
	logOrder    []uint64
	logPayloads map[uint64]Message
	subscribers map[string]*subscriberState
}

// subscriberState persists acknowledgement state between transient connections.
type subscriberState struct {
	id      string
	pending []uint64
	lastAck uint64
	ch      chan Message
	active  bool
}

// Subscription exposes the message channel and acknowledgement helpers for a subscriber.
type Subscription struct {
	id      string
	traffic *Traffic
	events  <-chan Message
	once    sync.Once
}

// ErrOutOfOrderAck signals that a subscriber attempted to acknowledge future sequences.
var ErrOutOfOrderAck = errors.New("ack sequence must match the next pending message")

// ErrNilTraffic is returned when a nil bus is used.
var ErrNilTraffic = errors.New("nil radio traffic")

// NewTraffic constructs a radio bus using the provided configuration.
func NewTraffic(cfg Config) *Traffic {
	retention := cfg.Retain
	if retention <= 0 {
		retention = defaultRetention
	}
	return &Traffic{
		retention:   retention,
		logPayloads: make(map[uint64]Message),
		subscribers: make(map[string]*subscriberState),
	}
}

// Subscribe attaches the logical subscriber and replays any transmissions it has not acknowledged.
func (t *Traffic) Subscribe(ctx context.Context, subscriberID string, buffer int) (*Subscription, error) {
	if t == nil {
		return nil, ErrNilTraffic
	}
	if subscriberID == "" {
		return nil, errors.New("subscriber id must be provided")
	}
	if buffer <= 0 {
		buffer = 32
	}

	t.mu.Lock()
	state, ok := t.subscribers[subscriberID]
	if !ok {
		state = &subscriberState{id: subscriberID}
		t.subscribers[subscriberID] = state
	}
	var replay []Message
	state.pending = state.pending[:0]
	for _, seq := range t.logOrder {
		if seq > state.lastAck {
			state.pending = append(state.pending, seq)
			replay = append(replay, t.logPayloads[seq])
		}
	}
	ch := make(chan Message, buffer)
	state.ch = ch
	state.active = true
	t.mu.Unlock()

	go func() {
		//1.- Replay outstanding transmissions right after subscription.
		for _, msg := range replay {
			select {
			case <-ctx.Done():
				return
			case ch <- msg:
			}
		}
	}()

	return &Subscription{id: subscriberID, traffic: t, events: ch}, nil
}

// Events exposes the ordered delivery channel for the subscriber.
func (s *Subscription) Events() <-chan Message {
	if s == nil {
		return nil
	}
	return s.events
}

// Ack informs the bus that the subscriber processed the given sequence.
func (s *Subscription) Ack(sequence uint64) error {
	if s == nil || s.traffic == nil {
		return errors.New("subscription closed")
	}
	return s.traffic.ack(s.id, sequence)
}

// Close marks the subscription as inactive while preserving acknowledgement state.
func (s *Subscription) Close() {
	if s == nil || s.traffic == nil {
		return
	}
	s.once.Do(func() {
		s.traffic.deactivate(s.id)
	})
}

// Transmit sequences the message and enqueues it for every subscriber without blocking the caller.
func (t *Traffic) Transmit(msg Message) (uint64, error) {
	if t == nil {
		return 0, ErrNilTraffic
	}
	if msg.Action == ActionNone && msg.Info == "" {
		return 0, errors.New("radio message carries no action")
	}

	t.mu.Lock()
	t.nextSeq++
	msg.Sequence = t.nextSeq
	t.logPayloads[msg.Sequence] = msg
	t.logOrder = append(t.logOrder, msg.Sequence)

	targets := make([]chan Message, 0, len(t.subscribers))
	for _, state := range t.subscribers {
		state.pending = append(state.pending, msg.Sequence)
		if state.active && state.ch != nil {
			targets = append(targets, state.ch)
		}
	}
	t.enforceRetentionLocked()
	t.mu.Unlock()

	for _, ch := range targets {
		//1.- A full buffer drops the live copy; the message is replayed on resubscribe.
		select {
		case ch <- msg:
		default:
		}
	}
	return msg.Sequence, nil
}

// Sent returns how many messages have been sequenced so far.
func (t *Traffic) Sent() uint64 {
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.nextSeq
}

// Recent returns up to n retained messages, oldest first.
func (t *Traffic) Recent(n int) []Message {
	if t == nil || n <= 0 {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	start := len(t.logOrder) - n
	if start < 0 {
		start = 0
	}
	out := make([]Message, 0, len(t.logOrder)-start)
	for _, seq := range t.logOrder[start:] {
		out = append(out, t.logPayloads[seq])
	}
	return out
}

func (t *Traffic) enforceRetentionLocked() {
	//1.- Keep history that any subscriber still needs, bounded by the retention window.
	if len(t.logOrder) <= t.retention {
		return
	}
	minAck := t.nextSeq
	for _, state := range t.subscribers {
		if state.lastAck < minAck {
			minAck = state.lastAck
		}
	}
	cutoff := t.logOrder[len(t.logOrder)-t.retention]
	pruneBefore := minAck
	if cutoff < pruneBefore {
		pruneBefore = cutoff
	}
	if pruneBefore == 0 {
		return
	}
	idx := sort.Search(len(t.logOrder), func(i int) bool { return t.logOrder[i] > pruneBefore })
	for _, seq := range t.logOrder[:idx] {
		delete(t.logPayloads, seq)
	}
	t.logOrder = append([]uint64(nil), t.logOrder[idx:]...)
}

func (t *Traffic) ack(subscriberID string, sequence uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	state, ok := t.subscribers[subscriberID]
	if !ok {
		return fmt.Errorf("unknown subscriber %q", subscriberID)
	}
	if len(state.pending) == 0 {
		if sequence <= state.lastAck {
			return nil
		}
		return ErrOutOfOrderAck
	}
	if sequence != state.pending[0] {
		return ErrOutOfOrderAck
	}
	state.pending = state.pending[1:]
	state.lastAck = sequence
	t.enforceRetentionLocked()
	return nil
}

func (t *Traffic) deactivate(subscriberID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if state, ok := t.subscribers[subscriberID]; ok {
		state.active = false
		if state.ch != nil {
			close(state.ch)
			state.ch = nil
		}
	}
}
