package push

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

// Mapper maps source paths onto the target root.
type Mapper struct {
	Source string
	Target string
}

// NewMapper returns a mapper with an absolute, cleaned source root. The
// target is kept as given because it may name a remote location.
func NewMapper(source, target string) (Mapper, error) {
	abs, err := filepath.Abs(source)
	if err != nil {
		return Mapper{}, fmt.Errorf("failed to resolve source %s: %w", source, err)
	}
	if target == "" {
		return Mapper{}, fmt.Errorf("target cannot be empty")
	}
	return Mapper{Source: abs, Target: target}, nil
}

// Rel returns p relative to the source root.
func (m Mapper) Rel(p string) (string, error) {
	rel, err := filepath.Rel(m.Source, filepath.Clean(p))
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideSource, p)
	}
	return rel, nil
}

// Destination returns the local destination of p.
func (m Mapper) Destination(p string) (string, error) {
	rel, err := m.Rel(p)
	if err != nil {
		return "", err
	}
	return filepath.Join(m.Target, rel), nil
}

// RemoteDestination returns the destination of p using forward slashes,
// as expected by scp and ssh.
func (m Mapper) RemoteDestination(p string) (string, error) {
	rel, err := m.Rel(p)
	if err != nil {
		return "", err
	}
	return path.Join(m.Target, filepath.ToSlash(rel)), nil
}
