package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/go-chi/chi/v5"
	"github.com/medlife-ai/medassist/internal/auth"
	"github.com/medlife-ai/medassist/internal/db"
	"github.com/medlife-ai/medassist/internal/db/models"
	"github.com/medlife-ai/medassist/internal/providers"
	"github.com/medlife-ai/medassist/internal/upstream"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	database, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	if err := database.AutoMigrate(
		&models.User{},
		&models.Member{},
		&models.ChatRecord{},
		&models.Setting{},
	); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	if err := database.Create(&models.Setting{Key: "jwt_secret", Value: "test-secret"}).Error; err != nil {
		t.Fatalf("seed secret: %v", err)
	}
	return database
}

func doJSON(t *testing.T, handler http.HandlerFunc, method, target string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	raw := ""
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		raw = string(encoded)
	}

	req := httptest.NewRequest(method, target, strings.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func registerUser(t *testing.T, database *gorm.DB, username, email string) {
	t.Helper()
	hash, err := auth.HashPassword("Abcdef1!")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if err := db.CreateUser(database, username, email, hash); err != nil {
		t.Fatalf("create user: %v", err)
	}
}

func TestSignupHandler_Flow(t *testing.T) {
	database := newTestDB(t)
	handler := SignupHandler(database)

	rec := doJSON(t, handler, http.MethodPost, "/signup", map[string]string{
		"username": "alice",
		"email":    "alice@example.com",
		"password": "Abcdef1!",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("signup status = %d body = %s", rec.Code, rec.Body.String())
	}
	if got := decodeBody(t, rec)["email"]; got != "alice@example.com" {
		t.Errorf("email = %v", got)
	}

	// Weak password.
	rec = doJSON(t, handler, http.MethodPost, "/signup", map[string]string{
		"username": "bob",
		"email":    "bob@example.com",
		"password": "short",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("weak password status = %d", rec.Code)
	}

	// Duplicate email.
	rec = doJSON(t, handler, http.MethodPost, "/signup", map[string]string{
		"username": "alice2",
		"email":    "alice@example.com",
		"password": "Abcdef1!",
	})
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate email status = %d", rec.Code)
	}
	if got := decodeBody(t, rec)["detail"]; got != "Email already registered" {
		t.Errorf("detail = %v", got)
	}
}

func TestSigninHandler_EmailOrUsername(t *testing.T) {
	database := newTestDB(t)
	registerUser(t, database, "carol", "carol@example.com")
	handler := SigninHandler(database)

	for _, login := range []string{"carol@example.com", "carol"} {
		rec := doJSON(t, handler, http.MethodPost, "/signin", map[string]string{
			"login":    login,
			"password": "Abcdef1!",
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("signin(%s) status = %d body = %s", login, rec.Code, rec.Body.String())
		}
		body := decodeBody(t, rec)
		if body["email"] != "carol@example.com" {
			t.Errorf("email = %v", body["email"])
		}

		token, _ := body["access_token"].(string)
		email, err := auth.ParseAccessToken("test-secret", token)
		if err != nil || email != "carol@example.com" {
			t.Errorf("token does not validate: %v (email %q)", err, email)
		}
	}
}

func TestSigninHandler_WrongPassword(t *testing.T) {
	database := newTestDB(t)
	registerUser(t, database, "dave", "dave@example.com")

	rec := doJSON(t, SigninHandler(database), http.MethodPost, "/signin", map[string]string{
		"login":    "dave@example.com",
		"password": "Wrong1!pass",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := decodeBody(t, rec)["detail"]; got != "Incorrect email/username or password" {
		t.Errorf("detail = %v", got)
	}
}

func TestMemberEndpoints_AddLimitDelete(t *testing.T) {
	database := newTestDB(t)
	email := "erin@example.com"
	add := AddMemberHandler(database)

	for i := 1; i <= models.MaxMembersPerUser; i++ {
		rec := doJSON(t, add, http.MethodPost, "/medlife/addmember", map[string]string{
			"email":     email,
			"firstName": fmt.Sprintf("Kid%d", i),
			"lastName":  "Doe",
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("add %d status = %d body = %s", i, rec.Code, rec.Body.String())
		}
		want := fmt.Sprintf("member%d added successfully", i)
		if got := decodeBody(t, rec)["message"]; got != want {
			t.Errorf("message = %v, want %q", got, want)
		}
	}

	// Fifth member is rejected.
	rec := doJSON(t, add, http.MethodPost, "/medlife/addmember", map[string]string{
		"email":     email,
		"firstName": "Extra",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("over-limit status = %d", rec.Code)
	}
	if got := decodeBody(t, rec)["detail"]; got != "Maximum of 4 members allowed per user." {
		t.Errorf("detail = %v", got)
	}

	// Delete slot 2 and confirm the shift through the list endpoint.
	rec = doJSON(t, DeleteMemberHandler(database), http.MethodDelete,
		"/medlife/deletemember?email="+email+"&member_index=2", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d body = %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, GetMembersHandler(database), http.MethodGet, "/medlife/getmember?email="+email, nil)
	var listing struct {
		Members []models.Member `json:"members"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &listing); err != nil {
		t.Fatalf("decode listing: %v", err)
	}
	if len(listing.Members) != 3 {
		t.Fatalf("got %d members, want 3", len(listing.Members))
	}
	wantNames := []string{"Kid1", "Kid3", "Kid4"}
	for i, m := range listing.Members {
		if m.Slot != i+1 || m.FirstName != wantNames[i] {
			t.Errorf("slot %d holds %s (slot field %d), want %s", i+1, m.FirstName, m.Slot, wantNames[i])
		}
	}
}

func TestMemberDetailsHandler_IncludesFullName(t *testing.T) {
	database := newTestDB(t)
	email := "frank@example.com"
	if _, err := db.AddMember(database, email, &models.Member{FirstName: "Junior", LastName: "Doe"}); err != nil {
		t.Fatalf("add member: %v", err)
	}

	r := chi.NewRouter()
	r.Get("/api/member-details/{email}/{memberIndex}", MemberDetailsHandler(database))

	req := httptest.NewRequest(http.MethodGet, "/api/member-details/"+email+"/1", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Member struct {
			FullName  string `json:"fullName"`
			FirstName string `json:"firstName"`
		} `json:"member"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Member.FullName != "Junior Doe" {
		t.Errorf("fullName = %q", body.Member.FullName)
	}
}

func TestTokensHandler_Limit(t *testing.T) {
	database := newTestDB(t)
	email := "gina@example.com"
	if _, err := db.AddMember(database, email, &models.Member{FirstName: "Junior", Tokens: db.QuestionTokenLimit}); err != nil {
		t.Fatalf("add member: %v", err)
	}

	rec := doJSON(t, TokensHandler(database), http.MethodGet,
		"/medlife/tokens/?email="+email+"&member_name=Junior", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := decodeBody(t, rec)["detail"]; got != "Question limit exceeded." {
		t.Errorf("detail = %v", got)
	}

	rec = doJSON(t, TokensCountHandler(database), http.MethodGet,
		"/medlife/tokensCount/?email="+email+"&member_name=Junior", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("count status = %d", rec.Code)
	}
	if got := decodeBody(t, rec)["message"]; got != fmt.Sprintf("%d", db.QuestionTokenLimit) {
		t.Errorf("count = %v", got)
	}
}

func TestSaveAndFetchChat(t *testing.T) {
	database := newTestDB(t)
	email := "hank@example.com"
	member := "Junior_Doe"

	rec := doJSON(t, SaveChatHandler(database), http.MethodPost,
		"/medlife/saveChat/?email="+email+"&member_name="+member,
		map[string]interface{}{
			"chat": []map[string]string{{"sender": "user", "text": "hi"}},
		})
	if rec.Code != http.StatusOK {
		t.Fatalf("save status = %d body = %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, FetchChatHandler(database), http.MethodGet,
		"/medlife/fetchChat/?email="+email+"&member_name="+member, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("fetch status = %d", rec.Code)
	}
	var body struct {
		Chat []map[string]string `json:"chat"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Chat) != 1 || body.Chat[0]["text"] != "hi" {
		t.Errorf("chat = %v", body.Chat)
	}
}

func TestFetchChat_EmptyList(t *testing.T) {
	database := newTestDB(t)

	rec := doJSON(t, FetchChatHandler(database), http.MethodGet,
		"/medlife/fetchChat/?email=x@example.com&member_name=Nobody", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != `{"chat":[]}` {
		t.Errorf("body = %q", got)
	}
}

// scriptedAsker returns a fixed answer or error and records the question.
type scriptedAsker struct {
	answer   string
	err      error
	question string
}

func (s *scriptedAsker) Ask(ctx context.Context, cfg providers.Config, apiKey, model, question string) (string, error) {
	s.question = question
	return s.answer, s.err
}

func TestAskAIHandler_Success(t *testing.T) {
	asker := &scriptedAsker{answer: "Rest and fluids."}
	handler := AskAIHandler(asker)

	memberData := `{"firstName":"Junior","lastName":"Doe","a1c":"5.9"}`
	target := "/medlife/ask_ai/?query=what+helps&api_key=sk-test&provider=openai&email=u@example.com&member_data=" +
		strings.ReplaceAll(memberData, `"`, "%22")
	rec := doJSON(t, handler, http.MethodGet, target, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}

	var answer string
	if err := json.Unmarshal(rec.Body.Bytes(), &answer); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if answer != "Rest and fluids." {
		t.Errorf("answer = %q", answer)
	}

	if !strings.Contains(asker.question, "Junior Doe") || !strings.Contains(asker.question, "A1C: 5.9") {
		t.Errorf("patient details missing from question:\n%s", asker.question)
	}
	if !strings.Contains(asker.question, "what helps") {
		t.Errorf("query missing from question:\n%s", asker.question)
	}
}

func TestAskAIHandler_MissingKey(t *testing.T) {
	rec := doJSON(t, AskAIHandler(&scriptedAsker{}), http.MethodGet,
		"/medlife/ask_ai/?query=hello&provider=openai", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := decodeBody(t, rec)["detail"]; got != "Please provide a valid API key to continue." {
		t.Errorf("detail = %v", got)
	}
}

func TestAskAIHandler_UpstreamErrorBecomesDetail(t *testing.T) {
	asker := &scriptedAsker{err: fmt.Errorf("invalid OpenAI API key. Please check your API key and try again")}
	rec := doJSON(t, AskAIHandler(asker), http.MethodGet,
		"/medlife/ask_ai/?query=hello&api_key=bad&provider=openai", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	detail, _ := decodeBody(t, rec)["detail"].(string)
	if !strings.Contains(detail, "API key") {
		t.Errorf("detail = %q", detail)
	}
}

// askerFunc lets a test script answers per provider.
type askerFunc func(ctx context.Context, cfg providers.Config, apiKey, model, question string) (string, error)

func (f askerFunc) Ask(ctx context.Context, cfg providers.Config, apiKey, model, question string) (string, error) {
	return f(ctx, cfg, apiKey, model, question)
}

func TestAskAIHandler_FallbackOnInsufficientCredits(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-env-openai")

	asker := askerFunc(func(ctx context.Context, cfg providers.Config, apiKey, model, question string) (string, error) {
		switch cfg.ID {
		case providers.Claude:
			return "", fmt.Errorf("Claude is unavailable for this account right now (%w)", upstream.ErrInsufficientCredits)
		case providers.OpenAI:
			if apiKey != "sk-env-openai" {
				return "", fmt.Errorf("unexpected key %q", apiKey)
			}
			return "Fallback answer.", nil
		}
		return "", fmt.Errorf("unexpected provider %s", cfg.ID)
	})

	rec := doJSON(t, AskAIHandler(asker), http.MethodGet,
		"/medlife/ask_ai/?query=hello&api_key=sk-claude&provider=claude&fallback_provider=openai", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	var answer string
	if err := json.Unmarshal(rec.Body.Bytes(), &answer); err != nil || answer != "Fallback answer." {
		t.Errorf("answer = %q (err %v)", answer, err)
	}
}

func TestAskAIHandler_FallbackNeedsServerKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	asker := askerFunc(func(ctx context.Context, cfg providers.Config, apiKey, model, question string) (string, error) {
		return "", fmt.Errorf("Claude is unavailable for this account right now (%w)", upstream.ErrInsufficientCredits)
	})

	rec := doJSON(t, AskAIHandler(asker), http.MethodGet,
		"/medlife/ask_ai/?query=hello&api_key=sk-claude&provider=claude&fallback_provider=openai", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if detail, _ := decodeBody(t, rec)["detail"].(string); !strings.Contains(detail, "insufficient credits") {
		t.Errorf("detail = %q", detail)
	}
}

func TestPromptHandler(t *testing.T) {
	asker := &scriptedAsker{answer: "Drink water."}
	rec := doJSON(t, PromptHandler(asker), http.MethodGet,
		"/medlife/prompt/?query=is+coffee+ok&api_key=sk-test", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(asker.question, "health related") {
		t.Errorf("assistant framing missing from question:\n%s", asker.question)
	}
	if !strings.Contains(asker.question, "is coffee ok") {
		t.Errorf("query missing from question:\n%s", asker.question)
	}
}

func TestPromptHandler_MissingKey(t *testing.T) {
	rec := doJSON(t, PromptHandler(&scriptedAsker{}), http.MethodGet,
		"/medlife/prompt/?query=hello", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := decodeBody(t, rec)["detail"]; got != "OpenAI API key is required" {
		t.Errorf("detail = %v", got)
	}
}

func TestUserGenderHandler(t *testing.T) {
	database := newTestDB(t)
	if _, err := db.AddMember(database, "ann@example.com", &models.Member{
		FirstName: "Ann", LastName: "Wu", Gender: "Female",
	}); err != nil {
		t.Fatalf("add member: %v", err)
	}

	rec := doJSON(t, UserGenderHandler(database), http.MethodGet,
		"/api/get-user-gender?email=ann@example.com", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := decodeBody(t, rec)["gender"]; got != "Female" {
		t.Errorf("gender = %v", got)
	}

	// Accounts without a slot 1 profile report null, not an error.
	rec = doJSON(t, UserGenderHandler(database), http.MethodGet,
		"/api/get-user-gender?email=ghost@example.com", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got, present := decodeBody(t, rec)["gender"]; got != nil || !present {
		t.Errorf("gender = %v (present %v), want null", got, present)
	}
}

func TestExportChatHandler(t *testing.T) {
	rec := doJSON(t, ExportChatHandler(), http.MethodPost, "/medlife/exportChat/",
		map[string]interface{}{
			"subject": "Junior Doe",
			"chat": []map[string]string{
				{"role": "user", "name": "You", "text": "hi"},
				{"role": "ai", "name": "Medlife.ai", "text": "hello"},
			},
		})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("content type = %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "Junior_Doe_transcript.html") {
		t.Errorf("content disposition = %q", cd)
	}
	if !strings.Contains(rec.Body.String(), "Junior Doe") {
		t.Error("subject missing from document")
	}
}

func TestExportChatHandler_EmptyTranscript(t *testing.T) {
	rec := doJSON(t, ExportChatHandler(), http.MethodPost, "/medlife/exportChat/",
		map[string]interface{}{"subject": "X", "chat": []map[string]string{}})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}
