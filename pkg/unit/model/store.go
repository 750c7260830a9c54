package model

import (
	"context"
	"sort"
	"sync"
)

// ProfileStore persists user-added profiles.
type ProfileStore interface {
	Create(ctx context.Context, profile *Profile) error
	Get(ctx context.Context, id string) (*Profile, error)
	List(ctx context.Context, filter ProfileFilter) ([]Profile, int, error)
	Delete(ctx context.Context, id string) error
}

// MemoryStore is an in-memory implementation of ProfileStore.
type MemoryStore struct {
	profiles map[string]*Profile
	mu       sync.RWMutex
}

// NewMemoryStore creates a new MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		profiles: make(map[string]*Profile),
	}
}

func (s *MemoryStore) Create(ctx context.Context, profile *Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.profiles[profile.ID]; exists {
		return ErrModelAlreadyExists.WithDetails("id", profile.ID)
	}
	for _, p := range s.profiles {
		if p.Name == profile.Name {
			return ErrModelAlreadyExists.WithDetails("name", profile.Name)
		}
	}

	c := profile.Clone()
	s.profiles[profile.ID] = &c
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, exists := s.profiles[id]
	if !exists {
		return nil, ErrModelNotFound.WithDetails("id", id)
	}
	c := p.Clone()
	return &c, nil
}

func (s *MemoryStore) List(ctx context.Context, filter ProfileFilter) ([]Profile, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []Profile
	for _, p := range s.profiles {
		if filter.Provider != "" && p.Provider != filter.Provider {
			continue
		}
		result = append(result, p.Clone())
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })

	total := len(result)
	return Paginate(result, filter.Offset, filter.Limit), total, nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.profiles[id]; !exists {
		return ErrModelNotFound.WithDetails("id", id)
	}

	delete(s.profiles, id)
	return nil
}

// Paginate applies offset and limit to an already filtered slice. A limit
// of zero or less means no limit.
func Paginate(profiles []Profile, offset, limit int) []Profile {
	if offset < 0 {
		offset = 0
	}
	if offset > len(profiles) {
		offset = len(profiles)
	}

	end := len(profiles)
	if limit > 0 {
		end = offset + limit
		if end > len(profiles) {
			end = len(profiles)
		}
	}

	return profiles[offset:end]
}
