package models

// UserSettings is the durable per-user settings bag. A zero value is a valid
// empty bag; absence of a stored bag is not an error anywhere in the system.
type UserSettings struct {
	// SenderAddress is the From address for outbound mail. Empty means unset,
	// in which case the process-wide default sender applies.
	SenderAddress string
	// Receivers maps a lowercase alphanumeric label to an email address.
	Receivers map[string]string
}

// Clone returns a deep copy so callers can mutate the bag without aliasing
// store-internal state.
func (s *UserSettings) Clone() *UserSettings {
	out := &UserSettings{
		SenderAddress: s.SenderAddress,
		Receivers:     make(map[string]string, len(s.Receivers)),
	}
	for label, addr := range s.Receivers {
		out.Receivers[label] = addr
	}
	return out
}

// PendingUpload is the most recently uploaded, not-yet-sent document for a
// user. It is transient and never persisted across restarts.
type PendingUpload struct {
	// FileID is an opaque handle usable to fetch the document bytes from the
	// messaging gateway.
	FileID string
	// FileName is the original file name as uploaded, used as the outbound
	// attachment's display name.
	FileName string
}
