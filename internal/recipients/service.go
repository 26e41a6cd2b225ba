// Package recipients manages the labeled recipient registry layered on the
// settings store.
package recipients

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/telepost-io/telepost/internal/settings"
)

// DefaultLabel resolves to the process-wide default recipient when the user
// has no explicit mapping for it.
const DefaultLabel = "default"

// Sentinel errors returned by Service methods.
var (
	ErrNotFound       = errors.New("no receiver saved under that label")
	ErrInvalidLabel   = errors.New("label must be alphanumeric")
	ErrInvalidAddress = errors.New("invalid email address")
)

var labelPattern = regexp.MustCompile(`^[a-z0-9]+$`)

// ValidAddress reports whether addr passes the minimal syntactic check:
// exactly one @ with at least one dot in the domain part. Deliberately
// permissive; full RFC validation is not the goal.
func ValidAddress(addr string) bool {
	at := strings.Index(addr, "@")
	if at <= 0 || at != strings.LastIndex(addr, "@") {
		return false
	}
	domain := addr[at+1:]
	return strings.Contains(domain, ".")
}

// Receiver is one labeled recipient address.
type Receiver struct {
	Label   string
	Address string
}

// Service provides recipient registry CRUD over the settings service.
type Service struct {
	settings         *settings.Service
	defaultRecipient string
}

func NewService(s *settings.Service, defaultRecipient string) *Service {
	return &Service{
		settings:         s,
		defaultRecipient: defaultRecipient,
	}
}

// AddOrUpdate validates label and address, then stores the mapping,
// overwriting any existing address under the same label. The normalized
// (lowercase) label is returned.
func (s *Service) AddOrUpdate(ctx context.Context, userID int64, label, address string) (string, error) {
	label = strings.ToLower(label)
	if !labelPattern.MatchString(label) {
		return "", ErrInvalidLabel
	}
	if !ValidAddress(address) {
		return "", ErrInvalidAddress
	}

	bag, err := s.settings.Get(ctx, userID)
	if err != nil {
		return "", err
	}
	if bag.Receivers == nil {
		bag.Receivers = make(map[string]string)
	}
	bag.Receivers[label] = address

	if err := s.settings.Put(ctx, userID, bag); err != nil {
		return label, err
	}
	return label, nil
}

// Remove deletes the mapping for label and returns the removed address.
// An unknown label yields ErrNotFound without touching stored state.
func (s *Service) Remove(ctx context.Context, userID int64, label string) (string, error) {
	label = strings.ToLower(label)

	bag, err := s.settings.Get(ctx, userID)
	if err != nil {
		return "", err
	}
	address, ok := bag.Receivers[label]
	if !ok {
		return "", fmt.Errorf("removing %q: %w", label, ErrNotFound)
	}
	delete(bag.Receivers, label)

	if err := s.settings.Put(ctx, userID, bag); err != nil {
		return address, err
	}
	return address, nil
}

// List returns the user's receivers sorted by label for deterministic
// display. No receivers is an empty list, not an error.
func (s *Service) List(ctx context.Context, userID int64) ([]Receiver, error) {
	bag, err := s.settings.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make([]Receiver, 0, len(bag.Receivers))
	for label, address := range bag.Receivers {
		out = append(out, Receiver{Label: label, Address: address})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out, nil
}

// Resolve looks up the address for label, case-insensitively. The literal
// label "default" falls back to the process-wide default recipient when no
// explicit mapping exists and a default is configured.
func (s *Service) Resolve(ctx context.Context, userID int64, label string) (string, error) {
	label = strings.ToLower(label)

	bag, err := s.settings.Get(ctx, userID)
	if err != nil {
		return "", err
	}
	if address, ok := bag.Receivers[label]; ok {
		return address, nil
	}
	if label == DefaultLabel && s.defaultRecipient != "" {
		return s.defaultRecipient, nil
	}
	return "", fmt.Errorf("resolving %q: %w", label, ErrNotFound)
}
