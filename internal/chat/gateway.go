package chat

import "context"

// Query is one AI request: the question plus the credential, provider, and
// member context it should be answered against.
type Query struct {
	Text     string
	APIKey   string
	Provider string
	Email    string
	Member   *Member
}

// AIGateway is the remote inference endpoint.
type AIGateway interface {
	Ask(ctx context.Context, q Query) (string, error)
}

// TranscriptGateway persists transcripts per (user, member) pair.
type TranscriptGateway interface {
	Save(ctx context.Context, email, memberName string, messages []Message) error
	Fetch(ctx context.Context, email, memberName string) ([]Message, error)
}

// GatewayError is a remote rejection that carried a response body. The body
// text is what gets classified (and, unclassified, shown verbatim).
type GatewayError struct {
	StatusCode int
	Body       string
}

func (e *GatewayError) Error() string { return e.Body }
