// Package memory holds in-process store implementations used when no
// database is configured and in tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"labdesk/internal/port"
)

type ledgerStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewLedgerStore creates an empty in-memory LedgerStore.
func NewLedgerStore() port.LedgerStore {
	return &ledgerStore{data: make(map[string][]byte)}
}

func (s *ledgerStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

func (s *ledgerStore) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := make([]byte, len(value))
	copy(v, value)
	s.data[key] = v
	return nil
}

func (s *ledgerStore) Update(_ context.Context, key string, fn port.UpdateFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.data[key]
	var in []byte
	if ok {
		in = make([]byte, len(cur))
		copy(in, cur)
	}
	next, err := fn(in, ok)
	if err != nil {
		return err
	}
	v := make([]byte, len(next))
	copy(v, next)
	s.data[key] = v
	return nil
}

func (s *ledgerStore) Keys(_ context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0)
	for k := range s.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}
