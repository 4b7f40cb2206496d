// Package materializer writes the store's snapshot to a target file with
// atomic same-filesystem rename semantics: a reader opening the file at any
// instant sees either the complete previous content or the complete new
// content, never a partial or empty file.
package materializer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/google/uuid"
	"github.com/tarqd/ldactl/internal/autoconfig"
	"github.com/tarqd/ldactl/internal/ldacerrors"
)

// Materializer writes snapshots to a single target path.
type Materializer struct {
	targetPath string
}

// New creates a Materializer for the given target path. The target's
// directory must exist; it is used as the location for the temporary file
// so the final rename is guaranteed to be same-filesystem.
func New(targetPath string) *Materializer {
	return &Materializer{targetPath: targetPath}
}

// Write serializes snapshot as a JSON object keyed by environment path and
// atomically replaces the target file's content with it. On any failure the
// temporary file is removed and a *ldacerrors.MaterializeError is returned;
// callers should treat this as non-fatal.
func (m *Materializer) Write(snapshot map[string]autoconfig.Environment) error {
	buf, err := json.Marshal(snapshot)
	if err != nil {
		return &ldacerrors.MaterializeError{Cause: fmt.Errorf("serializing snapshot: %w", err)}
	}

	dir := filepath.Dir(m.targetPath)
	tempName := fmt.Sprintf(".%s.tmp-%s", filepath.Base(m.targetPath), uuid.New().String())
	tempPath, err := securejoin.SecureJoin(dir, tempName)
	if err != nil {
		return &ldacerrors.MaterializeError{Cause: fmt.Errorf("resolving temp file path: %w", err)}
	}

	if err := m.writeAndRename(tempPath, buf); err != nil {
		os.Remove(tempPath) //nolint:errcheck // best-effort cleanup, original error is what matters
		return &ldacerrors.MaterializeError{Cause: err}
	}
	return nil
}

func (m *Materializer) writeAndRename(tempPath string, buf []byte) error {
	f, err := os.OpenFile(tempPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}

	if _, err := f.Write(buf); err != nil {
		f.Close() //nolint:errcheck
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close() //nolint:errcheck
		return fmt.Errorf("fsyncing temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tempPath, m.targetPath); err != nil {
		return fmt.Errorf("renaming temp file into place: %w", err)
	}
	return nil
}
