package delivery

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/google/uuid"
)

var unsafePathChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// Staging owns the directory where documents are materialized between fetch
// and send. Paths are unique per attempt, so concurrent attempts never read
// or delete each other's files.
type Staging struct {
	root string
}

// NewStaging creates the staging directory if needed.
func NewStaging(root string) (*Staging, error) {
	root = filepath.Clean(root)
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("creating staging dir %s: %w", root, err)
	}
	return &Staging{root: root}, nil
}

// Path derives a collision-safe local path for one attempt: namespaced by
// user ID, made unique by a fresh attempt token, with the original file name
// sanitized down to a safe character set.
func (s *Staging) Path(userID int64, fileName string) string {
	name := unsafePathChars.ReplaceAllString(fileName, "_")
	if name == "" || allUnderscores(name) {
		name = "attachment"
	}
	token := uuid.New().String()
	return filepath.Join(s.root, fmt.Sprintf("%d_%s_%s", userID, token, name))
}

// Remove deletes a staged file. Removing a file that was never created is a
// no-op.
func (s *Staging) Remove(path string) error {
	err := os.Remove(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func allUnderscores(s string) bool {
	for _, r := range s {
		if r != '_' {
			return false
		}
	}
	return true
}
