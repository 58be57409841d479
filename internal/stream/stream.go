// Package stream fan-outs marketplace lifecycle events to live subscribers
// (the SSE endpoint). Slow subscribers drop events instead of blocking
// publishers.
package stream

import (
	"context"
	"sync"
	"time"
)

// Event types published by the API.
const (
	TypePropertyListed  = "property.listed"
	TypeOfferSubmitted  = "offer.submitted"
	TypeOfferCountered  = "offer.countered"
	TypeOfferAccepted   = "offer.accepted"
	TypeOfferRejected   = "offer.rejected"
	TypeAgreementSigned = "agreement.signed"
)

// Event is one marketplace lifecycle notification.
type Event struct {
	Type        string    `json:"type"`
	PropertyID  int64     `json:"propertyId,omitempty"`
	OfferID     int64     `json:"offerId,omitempty"`
	AgreementID int64     `json:"agreementId,omitempty"`
	Amount      int64     `json:"amount,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Stream fan-outs events to all active subscribers.
type Stream struct {
	mu   sync.RWMutex
	subs map[int]chan Event
	next int
}

func New() *Stream {
	return &Stream{subs: make(map[int]chan Event)}
}

// Subscribe registers a subscriber and returns a channel which will receive
// events. The channel is closed when the provided context ends.
func (s *Stream) Subscribe(ctx context.Context) <-chan Event {
	ch := make(chan Event, 16)

	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = ch
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, id)
		close(ch)
		s.mu.Unlock()
	}()

	return ch
}

// Publish fan-outs the event to all subscribers. A zero Timestamp is filled
// in.
func (s *Stream) Publish(evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subs {
		select {
		case ch <- evt:
		default:
			// Drop when subscriber is slow to avoid blocking.
		}
	}
}

// Subscribers reports the current subscriber count.
func (s *Stream) Subscribers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}
