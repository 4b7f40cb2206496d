// Package store holds the authoritative in-memory mirror of the
// environment population: a map from path to Environment, mutated
// exclusively by the stream supervisor's single goroutine.
package store

import (
	"sort"

	"github.com/tarqd/ldactl/internal/autoconfig"
)

// ChangeKind describes what kind of mutation a Store method actually
// performed, so the caller can decide what side effects (materialize, hook
// dispatch) to run and with what hook "kind".
type ChangeKind string

const (
	ChangeInsert = ChangeKind("insert")
	ChangeUpdate = ChangeKind("update")
	ChangeDelete = ChangeKind("delete")
	ChangeNoop   = ChangeKind("noop")
)

// Store is the in-memory mirror. It is not safe for concurrent use; the
// supervisor serializes every mutation onto one goroutine (I4).
type Store struct {
	envs map[string]autoconfig.Environment
}

// New creates an empty Store.
func New() *Store {
	return &Store{envs: make(map[string]autoconfig.Environment)}
}

// Replace swaps in an entirely new snapshot, discarding whatever was there
// before. It returns the new snapshot's paths in sorted order, since a
// "put" triggers one hook invocation per environment in deterministic
// path-sorted order (spec.md 4.F).
func (s *Store) Replace(envs map[string]autoconfig.Environment) []string {
	s.envs = make(map[string]autoconfig.Environment, len(envs))
	paths := make([]string, 0, len(envs))
	for path, env := range envs {
		s.envs[path] = env
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// ApplyPatch upserts env at path unconditionally: version is not consulted
// for patches (only for deletes), per spec.md's resolution of the
// out-of-order-patch question. It returns ChangeInsert if the path was new,
// ChangeUpdate otherwise.
func (s *Store) ApplyPatch(path string, env autoconfig.Environment) ChangeKind {
	_, existed := s.envs[path]
	s.envs[path] = env
	if existed {
		return ChangeUpdate
	}
	return ChangeInsert
}

// ApplyDelete removes path if it is present and version is not less than
// the stored version (I2). It returns ChangeDelete if a removal happened,
// ChangeNoop otherwise (including when path isn't present at all).
func (s *Store) ApplyDelete(path string, version int) ChangeKind {
	current, ok := s.envs[path]
	if !ok {
		return ChangeNoop
	}
	if version < current.Version {
		return ChangeNoop
	}
	delete(s.envs, path)
	return ChangeDelete
}

// Get returns the environment at path, and whether it was present. Used by
// the supervisor to recover the last-known values for a delete's hook
// dispatch before removing the entry.
func (s *Store) Get(path string) (autoconfig.Environment, bool) {
	env, ok := s.envs[path]
	return env, ok
}

// Snapshot returns a copy of the current contents, safe for the
// materializer to serialize without racing further mutation (mutation
// never happens concurrently with this call in practice, since both run on
// the same goroutine, but the copy also means the materializer can't
// observe a mutation that happens while it's serializing).
func (s *Store) Snapshot() map[string]autoconfig.Environment {
	out := make(map[string]autoconfig.Environment, len(s.envs))
	for k, v := range s.envs {
		out[k] = v
	}
	return out
}

// Len returns the number of environments currently stored.
func (s *Store) Len() int {
	return len(s.envs)
}
