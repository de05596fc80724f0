// assist - terminal client for the MedAssist backend.
// Signs in, manages provider API keys and member profiles, and runs the
// chat loop against the server.

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/medlife-ai/medassist/internal/chat"
	"github.com/medlife-ai/medassist/internal/export"
	"github.com/medlife-ai/medassist/internal/localstore"
	"github.com/medlife-ai/medassist/internal/providers"
	"github.com/medlife-ai/medassist/internal/session"
)

func main() {
	godotenv.Load()

	if err := providers.Init(); err != nil {
		log.Fatalf("Failed to load provider catalog: %v", err)
	}

	baseURL := os.Getenv("MEDASSIST_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8000"
	}

	statePath, err := localstore.DefaultPath()
	if err != nil {
		log.Fatalf("Cannot determine state path: %v", err)
	}
	store, err := localstore.OpenFileStore(statePath)
	if err != nil {
		log.Fatalf("Cannot open local state: %v", err)
	}

	ctx := context.Background()
	in := bufio.NewScanner(os.Stdin)

	sess := session.New(store)
	gateway := chat.NewHTTPGateway(baseURL, sess.Token())

	if sess.Anonymous() {
		sess = signIn(ctx, in, store, gateway)
	} else {
		fmt.Printf("Welcome back, %s\n", sess.Email())
	}

	if sess.ShouldPromptOnEntry() {
		fmt.Println("\nBefore you start, add an API key for at least one provider.")
		promptForKeys(in, sess)
	}

	member := chooseMember(ctx, in, gateway, sess)
	conv := chat.NewConversation(sess, gateway, gateway, member)
	if err := conv.Load(ctx); err == nil {
		replay(conv)
	}

	fmt.Println("\nType a question, or /help for commands.")
	runLoop(ctx, in, sess, gateway, conv)
}

func signIn(ctx context.Context, in *bufio.Scanner, store localstore.Store, gateway *chat.HTTPGateway) *session.Session {
	for {
		login := ask(in, "Email or username: ")
		password := ask(in, "Password: ")

		email, token, err := gateway.SignIn(ctx, login, password)
		if err != nil {
			fmt.Printf("Sign-in failed: %v\n", err)
			continue
		}

		fmt.Printf("Signed in as %s\n", email)
		return session.Login(store, email, token)
	}
}

// promptForKeys collects one key per provider. A blank entry keeps whatever
// key is already stored; saving nothing at all leaves the prompt armed for
// next time.
func promptForKeys(in *bufio.Scanner, sess *session.Session) {
	keys := make(map[string]string)
	for _, id := range providers.Order {
		label := fmt.Sprintf("%s API key (blank to skip): ", providers.DisplayName(id))
		if sess.IsSelectable(id) {
			label = fmt.Sprintf("%s API key (blank to keep current): ", providers.DisplayName(id))
		}
		keys[id] = ask(in, label)
	}

	if err := sess.SaveCredentials(keys); err != nil {
		if errors.Is(err, session.ErrNoCredentials) {
			fmt.Println("No keys entered. You can add them later with /keys.")
			return
		}
		fmt.Printf("Could not save keys: %v\n", err)
		return
	}

	fmt.Printf("Keys saved. Active provider: %s\n", providers.DisplayName(sess.SelectedProvider()))
}

func chooseMember(ctx context.Context, in *bufio.Scanner, gateway *chat.HTTPGateway, sess *session.Session) *chat.Member {
	members, err := gateway.Members(ctx, sess.Email())
	if err != nil || len(members) == 0 {
		fmt.Println("No member profiles found. Add one on the web app first.")
		return nil
	}

	fmt.Println("\nMembers:")
	for i, m := range members {
		fmt.Printf("  %d. %s\n", i+1, m.DisplayName())
	}

	choice := ask(in, "Chat about which member? ")
	idx, err := strconv.Atoi(strings.TrimSpace(choice))
	if err != nil || idx < 1 || idx > len(members) {
		idx = 1
	}
	return &members[idx-1]
}

func runLoop(ctx context.Context, in *bufio.Scanner, sess *session.Session, gateway *chat.HTTPGateway, conv *chat.Conversation) {
	for {
		fmt.Print("> ")
		if !in.Scan() {
			return
		}
		line := strings.TrimSpace(in.Text())

		if strings.HasPrefix(line, "/") {
			if quit := runCommand(ctx, in, line, sess, gateway, conv); quit {
				return
			}
			continue
		}

		err := conv.SendQuery(ctx, line)
		switch {
		case errors.Is(err, chat.ErrEmptyQuery):
			continue
		case errors.Is(err, chat.ErrNoMember):
			fmt.Println("Pick a member first with /members.")
			continue
		case errors.Is(err, chat.ErrNoProvider):
			fmt.Println("No usable provider. Add an API key with /keys.")
			promptForKeys(in, sess)
			continue
		case errors.Is(err, chat.ErrBusy):
			fmt.Println("Still waiting on the previous question.")
			continue
		case errors.Is(err, chat.ErrCredentialRejected):
			printLatest(conv)
			promptForKeys(in, sess)
			continue
		}

		printLatest(conv)
		if err := conv.Save(ctx); err != nil {
			fmt.Printf("Warning: chat not saved: %v\n", err)
		}
	}
}

func runCommand(ctx context.Context, in *bufio.Scanner, line string, sess *session.Session, gateway *chat.HTTPGateway, conv *chat.Conversation) bool {
	cmd, arg, _ := strings.Cut(line, " ")
	switch cmd {
	case "/help":
		fmt.Println("/providers  list providers and which have keys")
		fmt.Println("/keys       enter or update API keys")
		fmt.Println("/use NAME   switch the active provider")
		fmt.Println("/members    switch the member being discussed")
		fmt.Println("/export     write the transcript to an HTML file")
		fmt.Println("/logout     sign out (keys are kept)")
		fmt.Println("/quit       exit")

	case "/providers":
		selected := sess.Reconcile()
		for _, id := range providers.Order {
			marker := " "
			if id == selected {
				marker = "*"
			}
			state := "no key"
			if sess.IsSelectable(id) {
				state = "ready"
			}
			fmt.Printf("%s %-10s %s\n", marker, providers.DisplayName(id), state)
		}

	case "/keys":
		promptForKeys(in, sess)

	case "/use":
		id := strings.ToLower(strings.TrimSpace(arg))
		if !providers.IsKnown(id) {
			fmt.Printf("Unknown provider %q\n", arg)
			break
		}
		if got := sess.SelectProvider(id); got != id {
			fmt.Printf("%s has no key; using %s instead\n", providers.DisplayName(id), providers.DisplayName(got))
		} else {
			fmt.Printf("Active provider: %s\n", providers.DisplayName(id))
		}

	case "/members":
		if m := chooseMember(ctx, in, gateway, sess); m != nil {
			conv.SwitchMember(m)
			if err := conv.Load(ctx); err == nil {
				replay(conv)
			}
		}

	case "/export":
		if err := exportTranscript(conv); err != nil {
			fmt.Printf("Export failed: %v\n", err)
		}

	case "/logout":
		sess.Logout()
		fmt.Println("Signed out.")
		return true

	case "/quit":
		return true

	default:
		fmt.Printf("Unknown command %q (try /help)\n", cmd)
	}
	return false
}

func exportTranscript(conv *chat.Conversation) error {
	member := conv.Member()
	if member == nil {
		return errors.New("no member selected")
	}

	entries := make([]export.Entry, 0, len(conv.Messages()))
	for _, m := range conv.Messages() {
		entries = append(entries, export.Entry{Role: m.Sender, Name: m.Name, Text: m.Text})
	}

	name := strings.ReplaceAll(member.DisplayName(), " ", "_") + "_transcript.html"
	if err := os.WriteFile(name, export.Render(member.DisplayName(), entries), 0o644); err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", name)
	return nil
}

// replay prints the stored transcript so a resumed session reads naturally.
func replay(conv *chat.Conversation) {
	for _, m := range conv.Messages() {
		printMessage(m)
	}
}

func printLatest(conv *chat.Conversation) {
	msgs := conv.Messages()
	if len(msgs) == 0 {
		return
	}
	printMessage(msgs[len(msgs)-1])
}

func printMessage(m chat.Message) {
	text := strings.ReplaceAll(m.Text, "<br>", "\n")
	fmt.Printf("\n%s: %s\n", m.Name, text)
}

func ask(in *bufio.Scanner, prompt string) string {
	fmt.Print(prompt)
	if !in.Scan() {
		os.Exit(0)
	}
	return strings.TrimSpace(in.Text())
}
