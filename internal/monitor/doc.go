// Package monitor detects changes in a directory tree by polling.
//
// # Snapshot
//
// A Registry records every tracked directory and file with the modification
// time seen at its last observation. Track walks a root once and fills the
// registry without firing events. After that, each scan cycle compares the
// registry against the live filesystem:
//
//   - a tracked file that vanished fires Deleted and leaves the registry
//   - a tracked file whose mtime changed fires Updated
//   - a tracked directory that vanished fires Deleted
//   - a tracked directory is listed, and untracked children fire Added
//
// Directories are processed before files. A new subdirectory's own children
// are found the next time a cycle lists it, so a freshly created tree is
// discovered one level per cycle.
//
// # Hot and cold scans
//
// Files that changed recently go into a bounded HotSet. Most cycles only
// re-stat the hot files; every Hotness+1 cycles (or whenever the hot set is
// empty) a full scan covers everything:
//
//	cycle:  1    2    3    4    5     6 ...
//	scan:   hot  hot  hot  hot  full  hot ...
//
// # Events
//
// Changes are published on an events.Bus. The monitor subscribes its own
// hot-set bookkeeping; push backends, the journal and the dashboard subscribe
// alongside it. Handler failures are logged and never stop a cycle.
//
// # Threading
//
// Track, Cycle and Run must be called from a single goroutine, which owns the
// registry and hot set. Reload and Stats are safe from any goroutine.
package monitor
