// Package session tracks the ephemeral pending-upload slot per user. At most
// one document is pending per user; a new upload overwrites the old one.
// Nothing here survives a restart.
package session

import (
	"sync"

	"github.com/telepost-io/telepost/internal/models"
)

// State holds one PendingUpload slot per user ID.
type State struct {
	mu      sync.Mutex
	pending map[int64]models.PendingUpload
}

func NewState() *State {
	return &State{
		pending: make(map[int64]models.PendingUpload),
	}
}

// SetPending stores the upload for the user, unconditionally replacing any
// prior pending upload (last-write-wins).
func (s *State) SetPending(userID int64, fileID, fileName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[userID] = models.PendingUpload{FileID: fileID, FileName: fileName}
}

// Pending returns the user's pending upload, if any.
func (s *State) Pending(userID int64) (models.PendingUpload, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	up, ok := s.pending[userID]
	return up, ok
}

// TakePending returns and clears the user's pending upload in one step, so
// two concurrent send attempts can never both consume the same document.
func (s *State) TakePending(userID int64) (models.PendingUpload, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	up, ok := s.pending[userID]
	if ok {
		delete(s.pending, userID)
	}
	return up, ok
}

// ClearPending removes the user's pending upload. Clearing an absent slot is
// a no-op.
func (s *State) ClearPending(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, userID)
}
