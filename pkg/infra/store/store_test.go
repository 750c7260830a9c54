package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jguan/llmfit/pkg/unit/model"
	"github.com/jguan/llmfit/pkg/unit/ptrs"
)

func customProfile(id, name, provider string) *model.Profile {
	return &model.Profile{
		ID:               id,
		Name:             name,
		Provider:         provider,
		ParameterCount:   "7B",
		MinRAMGB:         6,
		RecommendedRAMGB: 10,
		MinVRAMGB:        ptrs.Float64(5),
		Quantization:     model.QuantQ4KM,
		ContextLength:    8192,
	}
}

func moeCustomProfile() *model.Profile {
	p := customProfile("custom-moe00001", "Local-MoE-16x2B", "Local")
	p.IsMoE = true
	p.NumExperts = ptrs.Uint32(16)
	p.ActiveExperts = ptrs.Uint32(2)
	p.ActiveParameters = ptrs.Uint64(4_000_000_000)
	p.TotalParametersRaw = ptrs.Uint64(32_000_000_000)
	return p
}

// profileStores lists every ProfileStore implementation so the same
// behaviour is checked against each.
func profileStores(t *testing.T) map[string]func(t *testing.T) model.ProfileStore {
	t.Helper()
	return map[string]func(t *testing.T) model.ProfileStore{
		"memory": func(t *testing.T) model.ProfileStore {
			return model.NewMemoryStore()
		},
		"file": func(t *testing.T) model.ProfileStore {
			s, err := NewFileStore(t.TempDir())
			require.NoError(t, err)
			return s
		},
		"sqlite": func(t *testing.T) model.ProfileStore {
			s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "llmfit.db"))
			require.NoError(t, err)
			t.Cleanup(func() { s.Close() })
			return s
		},
	}
}

func TestProfileStore_CreateAndGet(t *testing.T) {
	for name, newStore := range profileStores(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)
			ctx := context.Background()

			want := moeCustomProfile()
			require.NoError(t, s.Create(ctx, want))

			got, err := s.Get(ctx, want.ID)
			require.NoError(t, err)
			assert.Equal(t, *want, *got)
			assert.True(t, got.HasMoEParams())

			*got.MinVRAMGB = 99
			again, err := s.Get(ctx, want.ID)
			require.NoError(t, err)
			assert.Equal(t, 5.0, *again.MinVRAMGB)
		})
	}
}

func TestProfileStore_Duplicates(t *testing.T) {
	for name, newStore := range profileStores(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)
			ctx := context.Background()
			require.NoError(t, s.Create(ctx, customProfile("custom-00000001", "Local-7B", "Local")))

			err := s.Create(ctx, customProfile("custom-00000001", "Other-7B", "Local"))
			assert.ErrorIs(t, err, model.ErrModelAlreadyExists)

			err = s.Create(ctx, customProfile("custom-00000002", "Local-7B", "Local"))
			assert.ErrorIs(t, err, model.ErrModelAlreadyExists)
		})
	}
}

func TestProfileStore_NotFound(t *testing.T) {
	for name, newStore := range profileStores(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)
			ctx := context.Background()

			_, err := s.Get(ctx, "custom-missing")
			assert.ErrorIs(t, err, model.ErrModelNotFound)
			assert.ErrorIs(t, s.Delete(ctx, "custom-missing"), model.ErrModelNotFound)
		})
	}
}

func TestProfileStore_ListAndDelete(t *testing.T) {
	for name, newStore := range profileStores(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)
			ctx := context.Background()

			require.NoError(t, s.Create(ctx, customProfile("custom-c", "Gamma-3B", "Lab")))
			require.NoError(t, s.Create(ctx, customProfile("custom-a", "Alpha-7B", "Local")))
			require.NoError(t, s.Create(ctx, customProfile("custom-b", "Beta-13B", "Local")))

			all, total, err := s.List(ctx, model.ProfileFilter{})
			require.NoError(t, err)
			assert.Equal(t, 3, total)
			assert.Equal(t, []string{"Alpha-7B", "Beta-13B", "Gamma-3B"}, profileNames(all))

			local, total, err := s.List(ctx, model.ProfileFilter{Provider: "Local"})
			require.NoError(t, err)
			assert.Equal(t, 2, total)
			assert.Equal(t, []string{"Alpha-7B", "Beta-13B"}, profileNames(local))

			page, total, err := s.List(ctx, model.ProfileFilter{Limit: 1, Offset: 1})
			require.NoError(t, err)
			assert.Equal(t, 3, total)
			assert.Equal(t, []string{"Beta-13B"}, profileNames(page))

			require.NoError(t, s.Delete(ctx, "custom-b"))
			all, total, err = s.List(ctx, model.ProfileFilter{})
			require.NoError(t, err)
			assert.Equal(t, 2, total)
			assert.Equal(t, []string{"Alpha-7B", "Gamma-3B"}, profileNames(all))
		})
	}
}

func TestFileStore_Persists(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := NewFileStore(dir)
	require.NoError(t, err)
	require.NoError(t, s.Create(ctx, moeCustomProfile()))

	reopened, err := NewFileStore(dir)
	require.NoError(t, err)
	got, err := reopened.Get(ctx, "custom-moe00001")
	require.NoError(t, err)
	assert.Equal(t, "Local-MoE-16x2B", got.Name)

	_, err = os.Stat(filepath.Join(dir, profilesFile+".tmp"))
	assert.True(t, os.IsNotExist(err), "temp file should be renamed away")
}

func TestFileStore_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, profilesFile), []byte("{not json"), 0o644))

	_, err := NewFileStore(dir)
	assert.Error(t, err)
}

func TestSQLiteStore_Persists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "llmfit.db")
	ctx := context.Background()

	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Create(ctx, customProfile("custom-00000001", "Local-7B", "Local")))
	require.NoError(t, s.Close())

	reopened, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get(ctx, "custom-00000001")
	require.NoError(t, err)
	assert.Equal(t, "Local-7B", got.Name)
	assert.Equal(t, model.QuantQ4KM, got.Quantization)
}

func profileNames(profiles []model.Profile) []string {
	names := make([]string, len(profiles))
	for i, p := range profiles {
		names[i] = p.Name
	}
	return names
}
