package fieldbus

import (
	"context"
	"fmt"
	"slices"
)

// SetupFunc configures a slave through its parameter channel before the process image is mapped,
// typically by writing process data assignments.
type SetupFunc func(ctx context.Context, ch ParamChannel, slave SlaveInfo) error

// DirectoryEntry describes the device expected at one bus position.
type DirectoryEntry struct {
	Position int
	// Kind is a free form device kind, e.g. "coupler" or "wheel".
	Kind string
	// Name is the expected device name. Empty matches any name.
	Name string
	// MinRevision is the lowest accepted firmware revision. Zero accepts any revision.
	MinRevision uint32
	// Setup is invoked only when the position is the calibration target.
	Setup SetupFunc
}

// Directory is the immutable bus layout: bus position to expected device kind and optional setup hook.
type Directory struct {
	entries []DirectoryEntry
}

// NewDirectory creates a directory from entries.
// It returns an error when a position is negative or appears twice.
func NewDirectory(entries ...DirectoryEntry) (*Directory, error) {
	seen := make(map[int]struct{}, len(entries))
	for _, e := range entries {
		if e.Position < 0 {
			return nil, fmt.Errorf("directory: negative position %d", e.Position)
		}
		if _, ok := seen[e.Position]; ok {
			return nil, fmt.Errorf("directory: duplicate position %d", e.Position)
		}
		seen[e.Position] = struct{}{}
	}

	sorted := slices.Clone(entries)
	slices.SortFunc(sorted, func(a, b DirectoryEntry) int { return a.Position - b.Position })

	return &Directory{entries: sorted}, nil
}

// Len returns the number of positions in the directory.
func (d *Directory) Len() int { return len(d.entries) }

// Entries returns a copy of the entries ordered by position.
func (d *Directory) Entries() []DirectoryEntry { return slices.Clone(d.entries) }

// Lookup returns the entry at position.
func (d *Directory) Lookup(position int) (DirectoryEntry, bool) {
	i, ok := slices.BinarySearchFunc(d.entries, position, func(e DirectoryEntry, pos int) int {
		return e.Position - pos
	})
	if !ok {
		return DirectoryEntry{}, false
	}

	return d.entries[i], true
}

// Check validates one discovered slave against the directory.
// The returned error wraps ErrSlaveMismatch.
func (d *Directory) Check(info SlaveInfo) (DirectoryEntry, error) {
	entry, ok := d.Lookup(info.Position)
	if !ok {
		return entry, fmt.Errorf("%w: position %d (%q) is not in the directory", ErrSlaveMismatch, info.Position, info.Name)
	}

	if entry.Name != "" && entry.Name != info.Name {
		return entry, fmt.Errorf("%w: position %d expected %q, found %q", ErrSlaveMismatch, info.Position, entry.Name, info.Name)
	}

	if info.Revision < entry.MinRevision {
		return entry, fmt.Errorf("%w: position %d %q firmware revision %d is older than %d",
			ErrSlaveMismatch, info.Position, info.Name, info.Revision, entry.MinRevision)
	}

	return entry, nil
}
