package monitor

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
	ignore "github.com/sabhiram/go-gitignore"
)

const (
	// DefaultIgnoredDirs matches version-control metadata directories.
	DefaultIgnoredDirs = `(^|/)\.(git|svn|hg|jj)(/|$)`

	// DefaultIgnoredFiles matches editor swap and backup files.
	DefaultIgnoredFiles = `\.(swp|swo|swx)$|~$`

	// DefaultIgnoreFile is the gitignore-style pattern file read from the root.
	DefaultIgnoreFile = ".pushyignore"
)

// Rules holds the two independent ignore patterns. Both are compiled
// case-insensitive. The directory rule is matched against the full absolute
// path; the file rule is matched against the base name.
type Rules struct {
	Dirs  *regexp.Regexp
	Files *regexp.Regexp
}

// CompileRules compiles the directory and file patterns. An empty pattern
// falls back to the corresponding default.
func CompileRules(dirPattern, filePattern string) (Rules, error) {
	if dirPattern == "" {
		dirPattern = DefaultIgnoredDirs
	}
	if filePattern == "" {
		filePattern = DefaultIgnoredFiles
	}

	dirs, err := regexp.Compile("(?i)" + dirPattern)
	if err != nil {
		return Rules{}, fmt.Errorf("invalid ignored-dirs pattern %q: %w", dirPattern, err)
	}
	files, err := regexp.Compile("(?i)" + filePattern)
	if err != nil {
		return Rules{}, fmt.Errorf("invalid ignored-files pattern %q: %w", filePattern, err)
	}
	return Rules{Dirs: dirs, Files: files}, nil
}

// DefaultRules returns the compiled default rules.
func DefaultRules() Rules {
	rules, err := CompileRules(DefaultIgnoredDirs, DefaultIgnoredFiles)
	if err != nil {
		panic(fmt.Sprintf("monitor: default ignore rules do not compile: %v", err))
	}
	return rules
}

// Filter answers whether a path should be excluded from tracking.
type Filter struct {
	rules    Rules
	root     string
	patterns *ignore.GitIgnore
	logger   zerolog.Logger
}

// NewFilter returns a filter applying rules.
func NewFilter(rules Rules, logger zerolog.Logger) *Filter {
	return &Filter{rules: rules, logger: logger}
}

// SetRules replaces the regex rules.
func (f *Filter) SetRules(rules Rules) {
	f.rules = rules
}

// LoadPatternFile reads gitignore-style patterns from name inside root.
// A missing file is not an error.
func (f *Filter) LoadPatternFile(root, name string) error {
	if name == "" {
		return nil
	}
	path := filepath.Join(root, name)
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	} else if err != nil {
		return fmt.Errorf("failed to check %s: %w", path, err)
	}

	patterns, err := ignore.CompileIgnoreFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	f.root = root
	f.patterns = patterns
	f.logger.Debug().Str("file", path).Msg("loaded ignore patterns")
	return nil
}

// ShouldIgnore reports whether path must be left out of tracking. Vanished
// paths are ignorable rather than errors. It never mutates state.
func (f *Filter) ShouldIgnore(path string) bool {
	path = filepath.Clean(path)
	info, err := os.Stat(path)
	if err != nil {
		return true
	}

	// The directory rule sees every full path, so a .git file left by a
	// worktree or submodule is ignored like the directory.
	if f.rules.Dirs != nil && f.rules.Dirs.MatchString(filepath.ToSlash(path)) {
		f.logger.Debug().Str("path", path).Bool("dir", info.IsDir()).Msg("ignoring path under directory rule")
		return true
	}
	if info.IsDir() {
		return f.matchesPatterns(path, true)
	}

	if f.rules.Files != nil && f.rules.Files.MatchString(filepath.Base(path)) {
		f.logger.Debug().Str("path", path).Msg("ignoring file")
		return true
	}
	return f.matchesPatterns(path, false)
}

func (f *Filter) matchesPatterns(path string, isDir bool) bool {
	if f.patterns == nil {
		return false
	}
	rel, err := filepath.Rel(f.root, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return false
	}
	rel = filepath.ToSlash(rel)
	if isDir {
		rel += "/"
	}
	if f.patterns.MatchesPath(rel) {
		f.logger.Debug().Str("path", path).Msg("ignoring path from pattern file")
		return true
	}
	return false
}
