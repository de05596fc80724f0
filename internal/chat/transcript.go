package chat

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/medlife-ai/medassist/internal/session"
)

// PlaceholderID is the reserved message id for the in-flight "Analyzing..."
// entry. It never survives into a finished transcript: the placeholder is
// always removed before the terminal message is appended.
const PlaceholderID = "loading-message"

const (
	// RoleUser and RoleAssistant are the two message senders.
	RoleUser      = "user"
	RoleAssistant = "ai"

	// AssistantName labels assistant messages; UserName labels the user's.
	AssistantName = "Medlife.ai"
	UserName      = "You"

	placeholderText = "Analyzing..."

	invalidKeyReply  = "Please provide a valid API key to continue."
	quotaReply       = "Your API key has exceeded its quota."
	backendErrPrefix = "Error from backend: "
	transportReply   = "Sorry, I couldn't get a response. Please try again."
)

var (
	// ErrEmptyQuery: nothing to send, nothing is appended.
	ErrEmptyQuery = errors.New("query text is empty")
	// ErrNoMember: the chat has no member context.
	ErrNoMember = errors.New("no member selected")
	// ErrNoProvider: the selection is empty or lacks a credential; the
	// caller should surface the credential prompt.
	ErrNoProvider = errors.New("no provider with a saved API key is selected")
	// ErrBusy: a query is already in flight on this transcript.
	ErrBusy = errors.New("a query is already in flight")
	// ErrCredentialRejected: the remote rejected the stored key; a reply
	// was appended and the credential prompt should be surfaced.
	ErrCredentialRejected = errors.New("the provider rejected the API key")
)

// Message is one transcript entry.
type Message struct {
	Sender string `json:"sender"`
	Name   string `json:"name"`
	Text   string `json:"text"`
	ID     string `json:"id"`
}

// Conversation is the chat transcript for one (session, member) pair: an
// append-only message sequence whose single exception is the removal of the
// in-flight placeholder. All methods are meant for a single goroutine, the
// event loop of whatever frontend drives it.
type Conversation struct {
	sess    *session.Session
	ai      AIGateway
	storage TranscriptGateway

	member   *Member
	messages []Message
	inFlight bool
}

// NewConversation builds a transcript bound to the session's member context.
func NewConversation(sess *session.Session, ai AIGateway, storage TranscriptGateway, explicit *Member) *Conversation {
	return &Conversation{
		sess:    sess,
		ai:      ai,
		storage: storage,
		member:  ResolveMember(sess, explicit),
	}
}

// Member returns the member the chat is currently scoped to.
func (c *Conversation) Member() *Member { return c.member }

// Messages returns the transcript in append order.
func (c *Conversation) Messages() []Message {
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// SwitchMember scopes the chat to a different member, replacing the
// transcript wholesale. Stale messages, including any in-flight
// placeholder, never survive into the new member's context.
func (c *Conversation) SwitchMember(m *Member) {
	c.member = ResolveMember(c.sess, m)
	c.messages = nil
	c.inFlight = false
}

// AppendUserMessage appends a user-role message with normalized text.
func (c *Conversation) AppendUserMessage(text string) {
	c.append(RoleUser, UserName, text)
}

func (c *Conversation) append(sender, name, text string) {
	c.messages = append(c.messages, Message{
		Sender: sender,
		Name:   name,
		Text:   normalizeText(text),
		ID:     uuid.NewString(),
	})
}

// normalizeText first unescapes literal "\n" sequences, then converts real
// newlines to the display break marker. The order matters and both passes
// are required.
func normalizeText(text string) string {
	text = strings.ReplaceAll(text, `\n`, "\n")
	return strings.ReplaceAll(text, "\n", "<br>")
}

// SendQuery runs one full ask cycle: append the user message and a
// placeholder, call the gateway, then replace the placeholder with exactly
// one terminal message. Precondition failures append nothing.
//
// Failure payloads are classified by substring: "api key" asks for a valid
// credential (and the ErrNoProvider-style prompt should be surfaced),
// "quota" reports exhaustion, anything else is shown as backend error text.
// A transport failure with no response at all gets a generic retry message.
func (c *Conversation) SendQuery(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyQuery
	}
	if c.member == nil {
		return ErrNoMember
	}

	provider := c.sess.Reconcile()
	if provider == "" || !c.sess.IsSelectable(provider) {
		return ErrNoProvider
	}

	if c.inFlight {
		return ErrBusy
	}
	c.inFlight = true
	defer func() { c.inFlight = false }()

	c.AppendUserMessage(text)
	c.messages = append(c.messages, Message{
		Sender: RoleAssistant,
		Name:   AssistantName,
		Text:   placeholderText,
		ID:     PlaceholderID,
	})

	reply, err := c.ai.Ask(ctx, Query{
		Text:     text,
		APIKey:   c.sess.Credential(provider),
		Provider: provider,
		Email:    c.sess.Email(),
		Member:   c.member,
	})

	c.removePlaceholder()

	if err != nil {
		var gwErr *GatewayError
		if errors.As(err, &gwErr) {
			body := strings.ToLower(gwErr.Body)
			switch {
			case strings.Contains(body, "api key"):
				c.append(RoleAssistant, AssistantName, invalidKeyReply)
				return ErrCredentialRejected
			case strings.Contains(body, "quota"):
				c.append(RoleAssistant, AssistantName, quotaReply)
			default:
				c.append(RoleAssistant, AssistantName, backendErrPrefix+gwErr.Body)
			}
			return nil
		}
		c.append(RoleAssistant, AssistantName, transportReply)
		return nil
	}

	c.append(RoleAssistant, AssistantName, reply)
	return nil
}

// removePlaceholder drops the in-flight entry, keeping relative order of
// everything around it.
func (c *Conversation) removePlaceholder() {
	filtered := c.messages[:0]
	for _, m := range c.messages {
		if m.ID != PlaceholderID {
			filtered = append(filtered, m)
		}
	}
	c.messages = filtered
}

// Save persists the whole transcript for the current member.
func (c *Conversation) Save(ctx context.Context) error {
	if c.sess.Anonymous() || c.member == nil {
		return ErrNoMember
	}
	return c.storage.Save(ctx, c.sess.Email(), c.member.StorageName(), c.messages)
}

// Load replaces the in-memory transcript with the persisted one.
func (c *Conversation) Load(ctx context.Context) error {
	if c.sess.Anonymous() || c.member == nil {
		return ErrNoMember
	}
	messages, err := c.storage.Fetch(ctx, c.sess.Email(), c.member.StorageName())
	if err != nil {
		return err
	}
	c.messages = messages
	return nil
}
