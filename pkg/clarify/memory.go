package clarify

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/oceanbase/trinity-go/pkg/knowledge"
	"github.com/oceanbase/trinity-go/pkg/metrics"
)

type memoryKey struct {
	uid   string
	topic string
}

// Memory is an in-process Store. Expired entries are invisible to Take and
// are dropped by Sweep.
type Memory struct {
	ttl    time.Duration
	now    func() time.Time
	logger zerolog.Logger

	mu      sync.Mutex
	pending map[memoryKey]*Pending
}

// MemoryConfig configures a Memory store.
type MemoryConfig struct {
	TTL    time.Duration
	Now    func() time.Time
	Logger zerolog.Logger
}

// NewMemory creates an in-process store.
func NewMemory(cfg MemoryConfig) *Memory {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Memory{
		ttl:     cfg.TTL,
		now:     cfg.Now,
		logger:  cfg.Logger,
		pending: make(map[memoryKey]*Pending),
	}
}

// Put implements Store.
func (m *Memory) Put(ctx context.Context, uid string, c *knowledge.Clarification) (*Pending, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p := &Pending{ID: uuid.NewString(), UID: uid, Clarification: *c, CreatedAt: m.now()}

	m.mu.Lock()
	m.pending[memoryKey{uid, c.Topic}] = p
	n := len(m.pending)
	m.mu.Unlock()

	metrics.PendingClarifications.Set(float64(n))
	return p, nil
}

// Take implements Store.
func (m *Memory) Take(ctx context.Context, uid, topic string) (*Pending, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key := memoryKey{uid, topic}

	m.mu.Lock()
	p, ok := m.pending[key]
	if ok {
		delete(m.pending, key)
	}
	n := len(m.pending)
	m.mu.Unlock()

	metrics.PendingClarifications.Set(float64(n))
	if !ok || m.expired(p) {
		return nil, ErrNotFound
	}
	return p, nil
}

// Sweep drops expired clarifications and returns how many were removed.
func (m *Memory) Sweep() int {
	m.mu.Lock()
	removed := 0
	for key, p := range m.pending {
		if m.expired(p) {
			delete(m.pending, key)
			removed++
		}
	}
	n := len(m.pending)
	m.mu.Unlock()

	metrics.PendingClarifications.Set(float64(n))
	if removed > 0 {
		m.logger.Debug().Int("removed", removed).Int("pending", n).Msg("swept expired clarifications")
	}
	return removed
}

// Schedule registers Sweep on c with the given cron spec, e.g. "@every 5m".
func (m *Memory) Schedule(c *cron.Cron, spec string) error {
	_, err := c.AddFunc(spec, func() { m.Sweep() })
	return err
}

// Len returns the number of stored clarifications, expired ones included.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// Close implements Store.
func (m *Memory) Close() error {
	return nil
}

func (m *Memory) expired(p *Pending) bool {
	return m.now().Sub(p.CreatedAt) > m.ttl
}
