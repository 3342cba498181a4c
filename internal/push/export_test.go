package push

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
}

func newExport(t *testing.T) (*Export, string, string) {
	t.Helper()
	requireGit(t)

	src := t.TempDir()
	repo := filepath.Join(t.TempDir(), "export")
	mapper, err := NewMapper(src, repo)
	require.NoError(t, err)

	e, err := NewExport(Options{Mapper: mapper, Timeout: 10 * time.Second, Logger: zerolog.Nop()})
	require.NoError(t, err)
	return e, src, repo
}

func gitLog(t *testing.T, repo string) []string {
	t.Helper()
	out, err := exec.Command("git", "-C", repo, "log", "--format=%s").Output()
	require.NoError(t, err)
	return strings.Split(strings.TrimSpace(string(out)), "\n")
}

func TestExport_InitializesRepository(t *testing.T) {
	e, _, repo := newExport(t)
	assert.DirExists(t, filepath.Join(repo, ".git"))
	assert.Equal(t, repo, e.RepoRoot())
	assert.Equal(t, "export", e.Name())
}

func TestExport_CommitsEachChange(t *testing.T) {
	e, src, repo := newExport(t)
	ctx := context.Background()
	path := filepath.Join(src, "docs", "readme.md")

	writeFile(t, path, "v1", baseTime)
	require.NoError(t, e.Add(ctx, path))

	writeFile(t, path, "v2", baseTime.Add(time.Minute))
	require.NoError(t, e.Update(ctx, path))

	require.NoError(t, os.Remove(path))
	require.NoError(t, e.Remove(ctx, path))

	assert.Equal(t, []string{
		"pushy: remove docs/readme.md",
		"pushy: update docs/readme.md",
		"pushy: add docs/readme.md",
	}, gitLog(t, repo))
	assert.NoFileExists(t, filepath.Join(repo, "docs", "readme.md"))
}

func TestExport_ConflictMakesNoCommit(t *testing.T) {
	e, src, repo := newExport(t)
	ctx := context.Background()
	path := filepath.Join(src, "a.txt")

	writeFile(t, path, "v1", baseTime)
	require.NoError(t, e.Add(ctx, path))

	err := e.Update(ctx, path)
	assert.ErrorIs(t, err, ErrDestinationConflict)
	assert.Len(t, gitLog(t, repo), 1)
}

func TestExport_EmptyDirectoryMakesNoCommit(t *testing.T) {
	e, src, repo := newExport(t)
	ctx := context.Background()
	path := filepath.Join(src, "a.txt")
	writeFile(t, path, "v1", baseTime)
	require.NoError(t, e.Add(ctx, path))

	dir := filepath.Join(src, "empty")
	require.NoError(t, os.Mkdir(dir, 0o755))
	require.NoError(t, e.Add(ctx, dir))

	assert.DirExists(t, filepath.Join(repo, "empty"))
	assert.Len(t, gitLog(t, repo), 1)
}

func TestExport_RemoveAbsentIsNoop(t *testing.T) {
	e, src, _ := newExport(t)
	assert.NoError(t, e.Remove(context.Background(), filepath.Join(src, "missing.txt")))
}
