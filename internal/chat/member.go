package chat

import (
	"encoding/json"

	"github.com/medlife-ai/medassist/internal/session"
)

// Member is the client-side snapshot of a patient profile, as returned by
// the member endpoints and as sent along with AI queries.
type Member struct {
	Slot          int    `json:"memberIndex,omitempty"`
	FirstName     string `json:"firstName"`
	LastName      string `json:"lastName"`
	FullName      string `json:"fullName,omitempty"`
	DOB           string `json:"dob"`
	Race          string `json:"race"`
	Gender        string `json:"gender"`
	Height        string `json:"height"`
	Weight        string `json:"weight"`
	A1C           string `json:"a1c"`
	BloodPressure string `json:"bloodPressure"`
	Medicine      string `json:"medicine"`
	Tokens        int    `json:"tokens"`
}

// DisplayName returns the name shown in the chat header and used to key the
// persisted transcript.
func (m *Member) DisplayName() string {
	if m.FullName != "" {
		return m.FullName
	}
	return m.FirstName + " " + m.LastName
}

// StorageName is the member identifier in transcript save/fetch calls.
func (m *Member) StorageName() string {
	return m.FirstName + "_" + m.LastName
}

// ResolveMember picks the member the chat is scoped to: an explicitly passed
// member wins, otherwise the last persisted snapshot for the session. When
// the explicit member is used it becomes the new persisted snapshot.
func ResolveMember(sess *session.Session, explicit *Member) *Member {
	if explicit != nil {
		if raw, err := json.Marshal(explicit); err == nil {
			sess.SetMemberSnapshot(string(raw))
		}
		return explicit
	}

	raw := sess.MemberSnapshot()
	if raw == "" {
		return nil
	}
	var m Member
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil
	}
	return &m
}
