package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/jguan/llmfit/pkg/unit/model"
)

const profilesFile = "profiles.json"

// FileStore implements model.ProfileStore as a single JSON file.
type FileStore struct {
	dataDir  string
	profiles map[string]*model.Profile
	mu       sync.RWMutex
}

// NewFileStore creates a file-backed store under dataDir, loading any
// profiles saved there before.
func NewFileStore(dataDir string) (*FileStore, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	s := &FileStore{
		dataDir:  dataDir,
		profiles: make(map[string]*model.Profile),
	}

	if err := s.load(); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	return s, nil
}

func (s *FileStore) filePath() string {
	return filepath.Join(s.dataDir, profilesFile)
}

func (s *FileStore) load() error {
	data, err := os.ReadFile(s.filePath())
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := json.Unmarshal(data, &s.profiles); err != nil {
		return fmt.Errorf("parse %s: %w", s.filePath(), err)
	}
	return nil
}

// save writes through a temp file and rename. Caller must hold s.mu.
func (s *FileStore) save() error {
	data, err := json.MarshalIndent(s.profiles, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal profiles: %w", err)
	}

	tmp := s.filePath() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write profiles: %w", err)
	}
	return os.Rename(tmp, s.filePath())
}

// Create implements model.ProfileStore.Create
func (s *FileStore) Create(ctx context.Context, p *model.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.profiles[p.ID]; exists {
		return model.ErrModelAlreadyExists.WithDetails("id", p.ID)
	}
	for _, existing := range s.profiles {
		if existing.Name == p.Name {
			return model.ErrModelAlreadyExists.WithDetails("name", p.Name)
		}
	}

	c := p.Clone()
	s.profiles[p.ID] = &c
	if err := s.save(); err != nil {
		delete(s.profiles, p.ID)
		return err
	}
	return nil
}

// Get implements model.ProfileStore.Get
func (s *FileStore) Get(ctx context.Context, id string) (*model.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, exists := s.profiles[id]
	if !exists {
		return nil, model.ErrModelNotFound.WithDetails("id", id)
	}

	c := p.Clone()
	return &c, nil
}

// List implements model.ProfileStore.List
func (s *FileStore) List(ctx context.Context, filter model.ProfileFilter) ([]model.Profile, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.Profile
	for _, p := range s.profiles {
		if filter.Provider != "" && p.Provider != filter.Provider {
			continue
		}
		result = append(result, p.Clone())
	}
	slices.SortFunc(result, func(a, b model.Profile) int {
		return strings.Compare(a.Name, b.Name)
	})

	return model.Paginate(result, filter.Offset, filter.Limit), len(result), nil
}

// Delete implements model.ProfileStore.Delete
func (s *FileStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, exists := s.profiles[id]
	if !exists {
		return model.ErrModelNotFound.WithDetails("id", id)
	}

	delete(s.profiles, id)
	if err := s.save(); err != nil {
		s.profiles[id] = p
		return err
	}
	return nil
}

var _ model.ProfileStore = (*FileStore)(nil)
