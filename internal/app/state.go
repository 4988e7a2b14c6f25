package app

import (
	"errors"
	"io/fs"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/dshills/fragments/internal/project/vfs"
)

// StateFile is the name of the per-workspace state file, kept inside the
// storage folder.
const StateFile = "state.toml"

// State is what the workspace remembers between runs.
type State struct {
	// Variant is the active variant after the last apply or toggle.
	Variant string `toml:"variant"`

	UpdatedAt time.Time `toml:"updated_at"`
}

// LoadState reads the state file. A missing file yields the zero State.
func LoadState(fsys vfs.VFS, path string) (State, error) {
	var st State
	data, err := fsys.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return st, nil
	}
	if err != nil {
		return st, NewOperationError("read state", path, err)
	}
	if err := toml.Unmarshal(data, &st); err != nil {
		return State{}, NewOperationError("parse state", path, err)
	}
	return st, nil
}

// SaveState writes the state file atomically, creating its directory.
func SaveState(fsys vfs.VFS, path string, st State) error {
	data, err := toml.Marshal(st)
	if err != nil {
		return NewOperationError("encode state", path, err)
	}
	if err := fsys.MkdirAll(fsys.Dir(path), 0o755); err != nil {
		return NewOperationError("write state", path, err)
	}
	if err := fsys.WriteFileAtomic(path, data, 0o644); err != nil {
		return NewOperationError("write state", path, err)
	}
	return nil
}
