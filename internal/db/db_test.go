package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/medlife-ai/medassist/internal/db/models"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	if err := db.AutoMigrate(
		&models.User{},
		&models.Member{},
		&models.ChatRecord{},
		&models.Setting{},
	); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func addTestMember(t *testing.T, db *gorm.DB, email, firstName string) int {
	t.Helper()
	slot, err := AddMember(db, email, &models.Member{
		FirstName: firstName,
		LastName:  "Doe",
	})
	if err != nil {
		t.Fatalf("add member %s: %v", firstName, err)
	}
	return slot
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	db := newTestDB(t)

	if err := CreateUser(db, "alice", "alice@example.com", "hash1"); err != nil {
		t.Fatalf("first create: %v", err)
	}
	err := CreateUser(db, "alice2", "alice@example.com", "hash2")
	if !errors.Is(err, ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
}

func TestFindUserByLogin_EmailOrUsername(t *testing.T) {
	db := newTestDB(t)

	if err := CreateUser(db, "bob", "bob@example.com", "hash"); err != nil {
		t.Fatalf("create: %v", err)
	}

	byEmail, err := FindUserByLogin(db, "bob@example.com")
	if err != nil {
		t.Fatalf("lookup by email: %v", err)
	}
	byName, err := FindUserByLogin(db, "bob")
	if err != nil {
		t.Fatalf("lookup by username: %v", err)
	}
	if byEmail.ID != byName.ID {
		t.Errorf("email and username lookups found different users")
	}

	if _, err := FindUserByLogin(db, "nobody"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}

func TestAddMember_FillsLowestFreeSlot(t *testing.T) {
	db := newTestDB(t)
	email := "carol@example.com"

	for i, name := range []string{"One", "Two", "Three"} {
		slot := addTestMember(t, db, email, name)
		if slot != i+1 {
			t.Fatalf("member %s landed in slot %d, want %d", name, slot, i+1)
		}
	}

	// Free slot 2, then verify the next add reclaims it.
	if err := DeleteMember(db, email, 2); err != nil {
		t.Fatalf("delete slot 2: %v", err)
	}
	// After the shift, Three sits in slot 2, so slot 3 is the lowest free.
	slot := addTestMember(t, db, email, "Four")
	if slot != 3 {
		t.Errorf("new member landed in slot %d, want 3", slot)
	}
}

func TestAddMember_LimitOfFour(t *testing.T) {
	db := newTestDB(t)
	email := "dave@example.com"

	for i := 1; i <= models.MaxMembersPerUser; i++ {
		addTestMember(t, db, email, fmt.Sprintf("Kid%d", i))
	}

	_, err := AddMember(db, email, &models.Member{FirstName: "Extra"})
	if !errors.Is(err, ErrMemberLimit) {
		t.Fatalf("expected ErrMemberLimit, got %v", err)
	}
}

func TestDeleteMember_ShiftsLaterSlotsDown(t *testing.T) {
	db := newTestDB(t)
	email := "erin@example.com"

	for _, name := range []string{"A", "B", "C", "D"} {
		addTestMember(t, db, email, name)
	}

	if err := DeleteMember(db, email, 2); err != nil {
		t.Fatalf("delete: %v", err)
	}

	members, err := ListMembers(db, email)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(members) != 3 {
		t.Fatalf("got %d members, want 3", len(members))
	}

	wantOrder := []string{"A", "C", "D"}
	for i, m := range members {
		if m.Slot != i+1 {
			t.Errorf("member %s in slot %d, want %d", m.FirstName, m.Slot, i+1)
		}
		if m.FirstName != wantOrder[i] {
			t.Errorf("slot %d holds %s, want %s", i+1, m.FirstName, wantOrder[i])
		}
	}
}

func TestDeleteMember_NotFound(t *testing.T) {
	db := newTestDB(t)

	err := DeleteMember(db, "nobody@example.com", 1)
	if !errors.Is(err, ErrMemberNotFound) {
		t.Fatalf("expected ErrMemberNotFound, got %v", err)
	}
}

func TestGetMember_InvalidSlot(t *testing.T) {
	db := newTestDB(t)

	if _, err := GetMember(db, "x@example.com", 0); !errors.Is(err, ErrInvalidSlot) {
		t.Errorf("slot 0: expected ErrInvalidSlot, got %v", err)
	}
	if _, err := GetMember(db, "x@example.com", 5); !errors.Is(err, ErrInvalidSlot) {
		t.Errorf("slot 5: expected ErrInvalidSlot, got %v", err)
	}
}

func TestIncrementTokens_StopsAtLimit(t *testing.T) {
	db := newTestDB(t)
	email := "frank@example.com"
	addTestMember(t, db, email, "Junior")

	// Pre-load the counter to one below the cap.
	if err := db.Model(&models.Member{}).
		Where("email = ? AND first_name = ?", email, "Junior").
		Update("tokens", QuestionTokenLimit-1).Error; err != nil {
		t.Fatalf("preload tokens: %v", err)
	}

	count, err := IncrementTokens(db, email, "Junior")
	if err != nil {
		t.Fatalf("increment at limit-1: %v", err)
	}
	if count != QuestionTokenLimit {
		t.Errorf("count = %d, want %d", count, QuestionTokenLimit)
	}

	if _, err := IncrementTokens(db, email, "Junior"); !errors.Is(err, ErrQuestionLimit) {
		t.Fatalf("expected ErrQuestionLimit, got %v", err)
	}

	got, err := GetTokens(db, email, "Junior")
	if err != nil {
		t.Fatalf("get tokens: %v", err)
	}
	if got != QuestionTokenLimit {
		t.Errorf("tokens = %d after rejected increment, want %d", got, QuestionTokenLimit)
	}
}

func TestSaveChat_ReplacesWholesale(t *testing.T) {
	db := newTestDB(t)
	email := "gina@example.com"
	member := "Junior_Doe"

	if err := SaveChat(db, email, member, `[{"text":"hi"}]`); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if err := SaveChat(db, email, member, `[{"text":"hi"},{"text":"there"}]`); err != nil {
		t.Fatalf("second save: %v", err)
	}

	stored, err := FetchChat(db, email, member)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if stored != `[{"text":"hi"},{"text":"there"}]` {
		t.Errorf("stored = %q", stored)
	}
}

func TestFetchChat_EmptyWhenAbsent(t *testing.T) {
	db := newTestDB(t)

	stored, err := FetchChat(db, "nobody@example.com", "Nobody")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if stored != "" {
		t.Errorf("stored = %q, want empty", stored)
	}
}

func TestEnsureJWTSecret_StableAcrossCalls(t *testing.T) {
	db := newTestDB(t)

	if err := ensureJWTSecret(db); err != nil {
		t.Fatalf("first ensure: %v", err)
	}
	first := GetJWTSecret(db)
	if len(first) != 64 {
		t.Fatalf("secret length = %d, want 64 hex chars", len(first))
	}

	if err := ensureJWTSecret(db); err != nil {
		t.Fatalf("second ensure: %v", err)
	}
	if got := GetJWTSecret(db); got != first {
		t.Errorf("secret changed between calls")
	}
}

func TestEnsureJWTSecret_FailedWriteSurfaces(t *testing.T) {
	db := newTestDB(t)

	// Drop the settings table so the insert cannot succeed.
	if err := db.Migrator().DropTable(&models.Setting{}); err != nil {
		t.Fatalf("drop table: %v", err)
	}

	if err := ensureJWTSecret(db); err == nil {
		t.Fatal("expected error when the secret cannot be stored")
	}
}
