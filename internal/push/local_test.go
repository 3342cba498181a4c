package push

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Unix(1_700_000_000, 0)

func writeFile(t *testing.T, path, content string, mtime time.Time) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	require.NoError(t, os.Chtimes(path, mtime, mtime))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func newLocal(t *testing.T) (*Local, string, string) {
	t.Helper()
	src, dst := t.TempDir(), t.TempDir()
	mapper, err := NewMapper(src, dst)
	require.NoError(t, err)
	l, err := NewLocal(Options{Mapper: mapper, Logger: zerolog.Nop()})
	require.NoError(t, err)
	return l, src, dst
}

func TestLocal_AddCreatesParents(t *testing.T) {
	l, src, dst := newLocal(t)
	path := filepath.Join(src, "a", "b", "c.txt")
	writeFile(t, path, "hello", baseTime)
	require.NoError(t, os.Chmod(path, 0o600))

	require.NoError(t, l.Add(context.Background(), path))

	dest := filepath.Join(dst, "a", "b", "c.txt")
	assert.Equal(t, "hello", readFile(t, dest))
	info, err := os.Stat(dest)
	require.NoError(t, err)
	assert.True(t, info.ModTime().Equal(baseTime), "mtime is preserved")
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestLocal_AddRefusesExisting(t *testing.T) {
	l, src, dst := newLocal(t)
	path := filepath.Join(src, "a.txt")
	writeFile(t, path, "new", baseTime)
	writeFile(t, filepath.Join(dst, "a.txt"), "old", baseTime)

	err := l.Add(context.Background(), path)
	assert.ErrorIs(t, err, ErrDestinationExists)
	assert.Equal(t, "old", readFile(t, filepath.Join(dst, "a.txt")))
}

func TestLocal_AddDirectory(t *testing.T) {
	l, src, dst := newLocal(t)
	dir := filepath.Join(src, "nested", "dir")
	require.NoError(t, os.MkdirAll(dir, 0o755))

	require.NoError(t, l.Add(context.Background(), dir))

	info, err := os.Stat(filepath.Join(dst, "nested", "dir"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestLocal_AddMissingSource(t *testing.T) {
	l, src, _ := newLocal(t)
	err := l.Add(context.Background(), filepath.Join(src, "gone.txt"))
	assert.ErrorIs(t, err, ErrSourceMissing)
	assert.True(t, IsSkip(err))
}

func TestLocal_UpdateAbsentDestinationActsAsAdd(t *testing.T) {
	l, src, dst := newLocal(t)
	path := filepath.Join(src, "sub", "a.txt")
	writeFile(t, path, "v1", baseTime)

	require.NoError(t, l.Update(context.Background(), path))
	assert.Equal(t, "v1", readFile(t, filepath.Join(dst, "sub", "a.txt")))
}

func TestLocal_UpdateConflictRule(t *testing.T) {
	tests := []struct {
		name      string
		destMtime time.Time
		wantErr   error
		wantBody  string
	}{
		{"destination older", baseTime.Add(-time.Minute), nil, "source"},
		{"destination equal", baseTime, ErrDestinationConflict, "dest"},
		{"destination newer", baseTime.Add(time.Minute), ErrDestinationConflict, "dest"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, src, dst := newLocal(t)
			path := filepath.Join(src, "a.txt")
			dest := filepath.Join(dst, "a.txt")
			writeFile(t, path, "source", baseTime)
			writeFile(t, dest, "dest", tt.destMtime)

			err := l.Update(context.Background(), path)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.True(t, IsSkip(err))
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantBody, readFile(t, dest))
		})
	}
}

func TestLocal_Remove(t *testing.T) {
	l, src, dst := newLocal(t)
	ctx := context.Background()

	writeFile(t, filepath.Join(dst, "a.txt"), "x", baseTime)
	require.NoError(t, l.Remove(ctx, filepath.Join(src, "a.txt")))
	assert.NoFileExists(t, filepath.Join(dst, "a.txt"))

	writeFile(t, filepath.Join(dst, "dir", "inner.txt"), "x", baseTime)
	require.NoError(t, l.Remove(ctx, filepath.Join(src, "dir")))
	assert.NoDirExists(t, filepath.Join(dst, "dir"))

	assert.NoError(t, l.Remove(ctx, filepath.Join(src, "never-existed")), "absent destination is a no-op")
}

func TestLocal_RejectsPathsOutsideSource(t *testing.T) {
	l, _, _ := newLocal(t)
	outside := filepath.Join(t.TempDir(), "x.txt")
	writeFile(t, outside, "x", baseTime)

	assert.ErrorIs(t, l.Add(context.Background(), outside), ErrOutsideSource)
}
