package session

import (
	"errors"
	"strings"

	"github.com/medlife-ai/medassist/internal/providers"
)

// ErrNoCredentials is returned when a credential save carries no usable key.
var ErrNoCredentials = errors.New("no provider credentials were given")

// Credential returns the stored secret for a provider, verbatim.
func (s *Session) Credential(provider string) string {
	return s.store.Get(s.keyFor(apiKeyPrefix + provider))
}

// IsSelectable reports whether a provider has a usable credential:
// non-empty after trimming whitespace.
func (s *Session) IsSelectable(provider string) bool {
	return strings.TrimSpace(s.Credential(provider)) != ""
}

// AvailableProviders returns the selectable providers in catalog order,
// never insertion order.
func (s *Session) AvailableProviders() []string {
	var available []string
	for _, p := range providers.Order {
		if s.IsSelectable(p) {
			available = append(available, p)
		}
	}
	return available
}

// SetCredential stores a secret verbatim (no format validation) and
// reconciles the selection, so removing the active provider's key never
// leaves a dangling selection.
func (s *Session) SetCredential(provider, secret string) {
	s.store.Set(s.keyFor(apiKeyPrefix+provider), secret)
	s.Reconcile()
}

// SaveCredentials is the settings/first-run save action: it writes the
// non-blank provider fields verbatim, marks the first-run prompt as
// completed, and reconciles the selection. A blank field leaves that
// provider's stored credential alone, so saving one key never erases
// another. Saving when every field is blank and nothing is stored is
// rejected and does NOT mark the prompt completed.
func (s *Session) SaveCredentials(keys map[string]string) error {
	any := false
	for _, p := range providers.Order {
		if strings.TrimSpace(keys[p]) != "" || s.IsSelectable(p) {
			any = true
			break
		}
	}
	if !any {
		return ErrNoCredentials
	}

	for _, p := range providers.Order {
		if strings.TrimSpace(keys[p]) != "" {
			s.store.Set(s.keyFor(apiKeyPrefix+p), keys[p])
		}
	}
	// The save action is the only path that sets the first-run flag.
	s.store.Set(s.keyFor(firstRunFlagKey), "true")
	s.Reconcile()
	return nil
}

// SelectedProvider returns the persisted selection ("" when none).
func (s *Session) SelectedProvider() string {
	return s.store.Get(s.keyFor(selectedAPIKey))
}

// SelectProvider records an explicit user choice, then reconciles. Choosing
// a provider without a credential falls through to the first available one.
func (s *Session) SelectProvider(provider string) string {
	s.store.Set(s.keyFor(selectedAPIKey), provider)
	return s.Reconcile()
}

// Reconcile enforces the selection invariant: the selected provider always
// has a usable credential, or the selection is empty. It is a pure function
// of (stored selection, credential set), idempotent, and re-run after every
// credential or selection change.
func (s *Session) Reconcile() string {
	selected := s.SelectedProvider()
	if selected != "" && s.IsSelectable(selected) {
		s.store.Set(s.keyFor(selectedAPIKey), selected)
		return selected
	}
	if available := s.AvailableProviders(); len(available) > 0 {
		s.store.Set(s.keyFor(selectedAPIKey), available[0])
		return available[0]
	}
	s.store.Delete(s.keyFor(selectedAPIKey))
	return ""
}

// HasCompletedFirstRun reports whether this user ever saved credentials.
func (s *Session) HasCompletedFirstRun() bool {
	return s.store.Get(s.keyFor(firstRunFlagKey)) == "true"
}

// ShouldPromptOnEntry decides the one-time credential prompt on chat screen
// entry: shown only while the user has no usable credential and has never
// completed a save, and auto-shown at most once per session. Declining the
// prompt never sets the persisted flag; it can still resurface when a send
// is attempted (the caller reacts to ErrNoProvider), just not on re-entry.
func (s *Session) ShouldPromptOnEntry() bool {
	if s.promptShown {
		return false
	}
	if len(s.AvailableProviders()) == 0 && !s.HasCompletedFirstRun() {
		s.promptShown = true
		return true
	}
	return false
}
