package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HTTPGateway talks to the MedAssist backend. It implements both AIGateway
// and TranscriptGateway.
type HTTPGateway struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewHTTPGateway builds a gateway for the backend at baseURL. token is the
// session access token attached as a bearer credential.
func NewHTTPGateway(baseURL, token string) *HTTPGateway {
	return &HTTPGateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 90 * time.Second,
		},
	}
}

// Ask proxies a question through the backend's AI endpoint and returns the
// assistant text. Non-2xx responses become GatewayErrors carrying the body.
func (g *HTTPGateway) Ask(ctx context.Context, q Query) (string, error) {
	params := url.Values{}
	params.Set("query", q.Text)
	params.Set("api_key", q.APIKey)
	params.Set("provider", q.Provider)
	params.Set("email", q.Email)
	if q.Member != nil {
		memberData, err := json.Marshal(q.Member)
		if err != nil {
			return "", fmt.Errorf("encoding member context: %w", err)
		}
		params.Set("member_data", string(memberData))
	}

	body, err := g.do(ctx, http.MethodGet, "/medlife/ask_ai/?"+params.Encode(), nil)
	if err != nil {
		return "", err
	}

	// The endpoint returns the assistant text as a JSON string.
	var reply string
	if err := json.Unmarshal(body, &reply); err != nil {
		return string(body), nil
	}
	return reply, nil
}

// Save stores the full message list for a (user, member) pair.
func (g *HTTPGateway) Save(ctx context.Context, email, memberName string, messages []Message) error {
	params := url.Values{}
	params.Set("email", email)
	params.Set("member_name", memberName)

	payload, err := json.Marshal(map[string][]Message{"chat": messages})
	if err != nil {
		return fmt.Errorf("encoding transcript: %w", err)
	}

	_, err = g.do(ctx, http.MethodPost, "/medlife/saveChat/?"+params.Encode(), payload)
	return err
}

// Fetch retrieves the stored message list, empty when none was saved.
func (g *HTTPGateway) Fetch(ctx context.Context, email, memberName string) ([]Message, error) {
	params := url.Values{}
	params.Set("email", email)
	params.Set("member_name", memberName)

	body, err := g.do(ctx, http.MethodGet, "/medlife/fetchChat/?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var result struct {
		Chat []Message `json:"chat"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decoding transcript: %w", err)
	}
	return result.Chat, nil
}

// Members lists the account's member profiles.
func (g *HTTPGateway) Members(ctx context.Context, email string) ([]Member, error) {
	params := url.Values{}
	params.Set("email", email)

	body, err := g.do(ctx, http.MethodGet, "/medlife/getmember?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var result struct {
		Members []Member `json:"members"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decoding member list: %w", err)
	}
	return result.Members, nil
}

// SignIn authenticates against the backend and returns (email, accessToken).
// The token is also adopted for subsequent requests on this gateway.
func (g *HTTPGateway) SignIn(ctx context.Context, login, password string) (string, string, error) {
	payload, err := json.Marshal(map[string]string{
		"login":    login,
		"password": password,
	})
	if err != nil {
		return "", "", fmt.Errorf("encoding credentials: %w", err)
	}

	body, err := g.do(ctx, http.MethodPost, "/signin", payload)
	if err != nil {
		return "", "", err
	}

	var result struct {
		Email       string `json:"email"`
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", "", fmt.Errorf("decoding sign-in response: %w", err)
	}

	g.token = result.AccessToken
	return result.Email, result.AccessToken, nil
}

// SignUp registers a new account.
func (g *HTTPGateway) SignUp(ctx context.Context, username, email, password string) error {
	payload, err := json.Marshal(map[string]string{
		"username": username,
		"email":    email,
		"password": password,
	})
	if err != nil {
		return fmt.Errorf("encoding signup request: %w", err)
	}

	_, err = g.do(ctx, http.MethodPost, "/signup", payload)
	return err
}

func (g *HTTPGateway) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &GatewayError{StatusCode: resp.StatusCode, Body: detailText(body)}
	}
	return body, nil
}

// detailText unwraps {"detail": "..."} error bodies, falling back to the
// raw text. The substring classification runs over the result.
func detailText(body []byte) string {
	var wrapped struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &wrapped); err == nil && wrapped.Detail != "" {
		return wrapped.Detail
	}
	return string(body)
}
