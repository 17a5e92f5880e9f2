package rules

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/quotelearn/internal/dna"
	"github.com/fyrsmithlabs/quotelearn/internal/profile"
	"github.com/fyrsmithlabs/quotelearn/internal/quality"
)

const customRules = `
[[quality.anti_patterns]]
name = "vibes"
pattern = '(?i)\bvibes?\b'

[[dna.rules]]
name = "rush_fee"
pattern = '(?i)rush fee'
transferability = "universal"

[dna.groups]
water = ["plumbing", "irrigation"]
`

func TestDefaults(t *testing.T) {
	s := Defaults()
	require.NoError(t, s.Validate())
	assert.Equal(t, quality.DefaultRules(), s.Quality)
	assert.Len(t, s.DNARules, len(dna.DefaultRules()))
	assert.NotEmpty(t, s.Groups)
}

func TestParse_Empty(t *testing.T) {
	s, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Defaults(), s)
}

func TestParse_OverridesOnlyGivenTables(t *testing.T) {
	s, err := Parse([]byte(customRules))
	require.NoError(t, err)

	require.Len(t, s.Quality.AntiPatterns, 1)
	assert.Equal(t, "vibes", s.Quality.AntiPatterns[0].Name)
	assert.Equal(t, quality.DefaultRules().Specificity, s.Quality.Specificity)

	require.Len(t, s.DNARules, 1)
	assert.Equal(t, profile.TransferUniversal, s.DNARules[0].Transferability)
	assert.Equal(t, dna.Groups{"water": {"plumbing", "irrigation"}}, s.Groups)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
		want error
	}{
		{"syntax", `[[quality.specificity`, ErrInvalidTOML},
		{"unknown key", "[quality]\nweights = 1\n", ErrInvalidTOML},
		{"bad regex", "[[quality.specificity]]\nname = \"x\"\npattern = '('\n", ErrInvalidRules},
		{"bad transferability", "[[dna.rules]]\nname = \"x\"\npattern = 'x'\ntransferability = \"sometimes\"\n", ErrInvalidRules},
		{"empty group", "[dna.groups]\nwater = []\n", ErrInvalidRules},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.toml")
	require.NoError(t, os.WriteFile(path, []byte(customRules), 0o600))

	s, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, s.DNARules, 1)

	_, err = Load(filepath.Join(dir, "missing.toml"))
	assert.Error(t, err)
}

func TestWatcher_Reloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.toml")
	require.NoError(t, os.WriteFile(path, []byte(""), 0o600))

	applied := make(chan Set, 4)
	reloads := make(chan error, 4)
	w, err := NewWatcher(path, func(s Set) { applied <- s }, nil)
	require.NoError(t, err)
	w.SetDebounce(20 * time.Millisecond)
	w.OnReload = func(err error) { reloads <- err }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	// A broken file is reported but not applied.
	replaceFile(t, path, "[[dna.rules")
	select {
	case err := <-reloads:
		assert.ErrorIs(t, err, ErrInvalidTOML)
	case <-time.After(3 * time.Second):
		t.Fatal("no reload after invalid write")
	}
	assert.Empty(t, applied)

	replaceFile(t, path, customRules)
	select {
	case s := <-applied:
		assert.Len(t, s.DNARules, 1)
	case <-time.After(3 * time.Second):
		t.Fatal("valid rules were not applied")
	}
}

// replaceFile swaps contents in with a rename so the watcher sees a single
// event.
func replaceFile(t *testing.T, path, contents string) {
	t.Helper()
	tmp := filepath.Join(t.TempDir(), "next.toml")
	require.NoError(t, os.WriteFile(tmp, []byte(contents), 0o600))
	require.NoError(t, os.Rename(tmp, path))
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	w, err := NewWatcher(filepath.Join(t.TempDir(), "rules.toml"), func(Set) {}, nil)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	w.Stop()
	w.Stop()
}

func TestNewWatcher_RequiresApply(t *testing.T) {
	_, err := NewWatcher("rules.toml", nil, nil)
	assert.Error(t, err)
}
