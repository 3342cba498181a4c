// Package events defines the change events produced by the monitor and the
// synchronous bus that fans them out to subscribers.
package events

import "fmt"

// Action is the kind of change that was detected.
type Action int

const (
	// Added indicates a path entered tracking after the initial scan.
	Added Action = iota
	// Updated indicates a tracked file's modification time changed.
	Updated
	// Deleted indicates a tracked path no longer exists.
	Deleted
)

// String returns a human-readable representation of the action.
func (a Action) String() string {
	switch a {
	case Added:
		return "added"
	case Updated:
		return "updated"
	case Deleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// Kind distinguishes directories from files.
type Kind int

const (
	// File is a regular (non-directory) entry.
	File Kind = iota
	// Dir is a directory.
	Dir
)

// String returns a human-readable representation of the kind.
func (k Kind) String() string {
	switch k {
	case File:
		return "file"
	case Dir:
		return "dir"
	default:
		return "unknown"
	}
}

// Event is a single detected change. It is a value type and is never mutated
// after creation, so it can be handed to other goroutines as-is.
type Event struct {
	// Path is the absolute, cleaned path of the entry that changed.
	Path string
	// Kind is File or Dir.
	Kind Kind
	// Action is Added, Updated or Deleted.
	Action Action
}

// String implements fmt.Stringer.
func (e Event) String() string {
	return fmt.Sprintf("%s %s %s", e.Action, e.Kind, e.Path)
}
