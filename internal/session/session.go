// Package session owns the signed-in user's client-side state: identity,
// per-user key namespacing, provider credentials, the selected provider, and
// the first-run prompt gate. All of it lives in an injected localstore.Store
// so tests can run against an in-memory fake.
package session

import "github.com/medlife-ai/medassist/internal/localstore"

// Store keys. Identity keys are global; everything else is namespaced per
// user via keyFor, so two accounts on one machine never see each other's
// credentials or selections.
const (
	userEmailKey     = "userEmail"
	accessTokenKey   = "accessToken"
	selectedAPIKey   = "selectedAPI"
	currentMemberKey = "currentMember"
	firstRunFlagKey  = "hasShownApiKeyPopup"
	apiKeyPrefix     = "api_key_"
)

// Session is the active user's view of the local store. An empty email is a
// valid anonymous session; its keys all share the bare "_" namespace.
type Session struct {
	store localstore.Store
	email string

	// promptShown is deliberately not persisted: the first-run prompt may
	// auto-show at most once per process session, but a fresh session for
	// the same never-saved user is allowed to show it again.
	promptShown bool
}

// New derives the session from the store's persisted identity.
func New(store localstore.Store) *Session {
	return &Session{store: store, email: store.Get(userEmailKey)}
}

// Login records the signed-in identity and session token, and returns the
// session for that identity.
func Login(store localstore.Store, email, accessToken string) *Session {
	store.Set(userEmailKey, email)
	store.Set(accessTokenKey, accessToken)
	return &Session{store: store, email: email}
}

// Email returns the session identifier ("" when anonymous).
func (s *Session) Email() string { return s.email }

// Anonymous reports whether no user is signed in.
func (s *Session) Anonymous() bool { return s.email == "" }

// Token returns the stored access token for the backend API.
func (s *Session) Token() string { return s.store.Get(accessTokenKey) }

// keyFor namespaces a key by the session identifier.
func (s *Session) keyFor(key string) string { return key + "_" + s.email }

// Logout clears the transient session state. Provider credentials and the
// first-run flag are deliberately preserved so a returning user is never
// re-prompted for keys.
func (s *Session) Logout() {
	s.store.Delete(s.keyFor(selectedAPIKey))
	s.store.Delete(s.keyFor(currentMemberKey))
	s.store.Delete(userEmailKey)
	s.store.Delete(accessTokenKey)
	s.email = ""
}

// SetMemberSnapshot persists the last-selected member as raw JSON.
func (s *Session) SetMemberSnapshot(raw string) {
	s.store.Set(s.keyFor(currentMemberKey), raw)
}

// MemberSnapshot returns the persisted member JSON, "" when none.
func (s *Session) MemberSnapshot() string {
	return s.store.Get(s.keyFor(currentMemberKey))
}
