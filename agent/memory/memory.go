package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	contractx "github.com/tanpawarit/foodiespot-agent/agent/contract"
)

const (
	defaultNamespace = "chat"
	defaultMaxLines  = 20
)

// Noop remembers nothing.
type Noop struct{}

var _ contractx.MemoryStore = Noop{}

func (Noop) ReadSummary(context.Context, string) (string, error) {
	return "", nil
}

func (Noop) WriteSummary(context.Context, string, string) error {
	return nil
}

// RedisMemory keeps a per-customer list of short notes ("prefers Italian",
// "usually books for 4") and returns them joined as the summary.
type RedisMemory struct {
	client    redis.UniversalClient
	namespace string
	maxLines  int64
	ttl       time.Duration
}

var _ contractx.MemoryStore = (*RedisMemory)(nil)

type Option func(*RedisMemory)

func WithNamespace(ns string) Option {
	return func(m *RedisMemory) {
		if trimmed := strings.Trim(strings.TrimSpace(ns), ":"); trimmed != "" {
			m.namespace = trimmed
		}
	}
}

// WithMaxLines caps how many notes are kept per customer.
func WithMaxLines(n int) Option {
	return func(m *RedisMemory) {
		if n > 0 {
			m.maxLines = int64(n)
		}
	}
}

// WithTTL expires a customer's notes after ttl of inactivity; 0 keeps them.
func WithTTL(ttl time.Duration) Option {
	return func(m *RedisMemory) {
		if ttl >= 0 {
			m.ttl = ttl
		}
	}
}

func NewRedisMemory(client redis.UniversalClient, opts ...Option) (*RedisMemory, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	m := &RedisMemory{
		client:    client,
		namespace: defaultNamespace,
		maxLines:  defaultMaxLines,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m, nil
}

func (m *RedisMemory) key(customerID string) (string, error) {
	id := strings.TrimSpace(customerID)
	if id == "" {
		return "", fmt.Errorf("%w: customer id is empty", contractx.ErrValidation)
	}
	return fmt.Sprintf("%s:%s:agent:memory", m.namespace, id), nil
}

func (m *RedisMemory) ReadSummary(ctx context.Context, customerID string) (string, error) {
	key, err := m.key(customerID)
	if err != nil {
		return "", err
	}
	lines, err := m.client.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return "", fmt.Errorf("read memory: %w", err)
	}
	return strings.Join(lines, "\n"), nil
}

// WriteSummary appends update as a note; an empty update is ignored.
func (m *RedisMemory) WriteSummary(ctx context.Context, customerID string, update string) error {
	update = strings.TrimSpace(update)
	if update == "" {
		return nil
	}
	key, err := m.key(customerID)
	if err != nil {
		return err
	}

	_, err = m.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, update)
		pipe.LTrim(ctx, key, -m.maxLines, -1)
		if m.ttl > 0 {
			pipe.Expire(ctx, key, m.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("write memory: %w", err)
	}
	return nil
}
