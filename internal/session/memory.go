package session

import (
	"context"
	"sync"
	"time"

	"github.com/spec-kit/portal-auth/internal/domain"
)

type partition struct {
	mu      sync.RWMutex
	records map[string]*domain.Session
}

// MemoryStore keeps sessions in process memory. Each domain owns a separate
// partition with its own lock.
type MemoryStore struct {
	partitions map[domain.Domain]*partition
	opts       options
}

// NewMemoryStore builds an empty store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	parts := make(map[domain.Domain]*partition, len(domain.Domains()))
	for _, d := range domain.Domains() {
		parts[d] = &partition{records: make(map[string]*domain.Session)}
	}
	return &MemoryStore{partitions: parts, opts: buildOptions(opts)}
}

func (s *MemoryStore) partition(d domain.Domain) (*partition, error) {
	p, ok := s.partitions[d]
	if !ok {
		return nil, ErrInvalidDomain
	}
	return p, nil
}

// Create stores a new session in the domain's partition.
func (s *MemoryStore) Create(_ context.Context, d domain.Domain, identityID, role, organizationID string) (domain.Session, error) {
	p, err := s.partition(d)
	if err != nil {
		return domain.Session{}, err
	}

	for {
		rec, err := newRecord(d, identityID, role, organizationID, s.opts.now())
		if err != nil {
			return domain.Session{}, err
		}
		p.mu.Lock()
		if _, taken := p.records[rec.ID]; taken {
			p.mu.Unlock()
			continue
		}
		stored := rec
		p.records[rec.ID] = &stored
		p.mu.Unlock()
		return rec, nil
	}
}

// Find resolves id within the domain and refreshes its last-seen time.
func (s *MemoryStore) Find(_ context.Context, d domain.Domain, id string) (domain.Session, error) {
	p, err := s.partition(d)
	if err != nil {
		return domain.Session{}, err
	}
	if id == "" {
		return domain.Session{}, ErrSessionNotFound
	}

	now := s.opts.now().UTC()
	p.mu.Lock()
	defer p.mu.Unlock()

	rec, ok := p.records[id]
	if !ok {
		return domain.Session{}, ErrSessionNotFound
	}
	if s.opts.idle(*rec, now) {
		delete(p.records, id)
		return domain.Session{}, ErrSessionNotFound
	}
	// Touch in place: reassigning the entry would swap in the caller's key string.
	rec.LastSeenAt = now
	return *rec, nil
}

// Destroy removes the session. Unknown ids are not an error.
func (s *MemoryStore) Destroy(_ context.Context, d domain.Domain, id string) error {
	p, err := s.partition(d)
	if err != nil {
		return err
	}
	p.mu.Lock()
	delete(p.records, id)
	p.mu.Unlock()
	return nil
}

// SweepExpired drops sessions not seen within maxAge and reports how many were removed.
func (s *MemoryStore) SweepExpired(ctx context.Context, maxAge time.Duration) (int, error) {
	cutoff := s.opts.now().UTC().Add(-maxAge)
	removed := 0
	for _, d := range domain.Domains() {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		p := s.partitions[d]
		p.mu.Lock()
		for id, rec := range p.records {
			if rec.LastSeenAt.Before(cutoff) {
				delete(p.records, id)
				removed++
			}
		}
		p.mu.Unlock()
	}
	return removed, nil
}

// Len reports the number of sessions held for d.
func (s *MemoryStore) Len(d domain.Domain) int {
	p, err := s.partition(d)
	if err != nil {
		return 0
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.records)
}
