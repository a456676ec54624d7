package mq

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
)

var ErrClosed = errors.New("mq: backend closed")

// memoryHistory bounds the messages retained per topic.
const memoryHistory = 1024

// Memory is an in-process backend for tests and single-process development.
// It keeps the last memoryHistory messages per topic and fans each one out to
// the subscribers attached at publish time; a slow subscriber drops messages.
type Memory struct {
	mu       sync.Mutex
	messages map[string][]Message
	subs     map[string][]chan Message
	closed   bool
}

func NewMemory() *Memory {
	return &Memory{
		messages: make(map[string][]Message),
		subs:     make(map[string][]chan Message),
	}
}

func (m *Memory) Publish(ctx context.Context, topic string, data []byte, attrs map[string]string) (string, error) {
	if strings.TrimSpace(topic) == "" {
		return "", errors.New("memory topic is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return "", ErrClosed
	}

	msg := Message{ID: uuid.NewString(), Data: append([]byte(nil), data...), Attributes: attrs}
	history := append(m.messages[topic], msg)
	if len(history) > memoryHistory {
		history = append([]Message(nil), history[len(history)-memoryHistory:]...)
	}
	m.messages[topic] = history
	for _, ch := range m.subs[topic] {
		select {
		case ch <- msg:
		default:
		}
	}
	return msg.ID, nil
}

func (m *Memory) Subscribe(ctx context.Context, topic string, handler Handler) error {
	ch := make(chan Message, 64)
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	m.subs[topic] = append(m.subs[topic], ch)
	m.mu.Unlock()
	defer m.detach(topic, ch)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return ErrClosed
			}
			_ = handler(ctx, msg)
		}
	}
}

func (m *Memory) detach(topic string, ch chan Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	subs := m.subs[topic]
	for i, c := range subs {
		if c == ch {
			m.subs[topic] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(m.subs[topic]) == 0 {
		delete(m.subs, topic)
	}
}

// Messages returns a copy of everything published to topic.
func (m *Memory) Messages(topic string) []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.messages[topic]...)
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	for _, chans := range m.subs {
		for _, ch := range chans {
			close(ch)
		}
	}
	m.subs = nil
	return nil
}
