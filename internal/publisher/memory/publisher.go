// Package memory records render notifications in-process for tests and dry runs.
// Payloads are JSON-encoded exactly as the Pub/Sub publisher would send them.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Message is one recorded notification.
type Message struct {
	ID      string
	Topic   string
	Payload any
	Data    []byte
}

// Publisher stores published notifications for inspection.
type Publisher struct {
	mu       sync.RWMutex
	messages []Message
	failNext error
}

// New returns an empty Publisher.
func New() *Publisher {
	return &Publisher{}
}

// FailNext makes the next Publish call return err without recording anything.
func (p *Publisher) FailNext(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failNext = err
}

// Publish encodes the payload, records it, and returns a sequential ID.
func (p *Publisher) Publish(_ context.Context, topic string, payload any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.failNext; err != nil {
		p.failNext = nil
		return "", err
	}
	id := fmt.Sprintf("memory-%d", len(p.messages)+1)
	p.messages = append(p.messages, Message{ID: id, Topic: topic, Payload: payload, Data: data})
	return id, nil
}

// Messages returns the recorded notifications in publish order.
func (p *Publisher) Messages() []Message {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Message, len(p.messages))
	copy(out, p.messages)
	return out
}
