package persistence

import (
	"path/filepath"
	"testing"

	"github.com/talgya/pokebot/internal/gateway"
	"github.com/talgya/pokebot/internal/pokedex"
	"github.com/talgya/pokebot/internal/session"
)

func openTemp(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "bot.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestTokenRoundTrip(t *testing.T) {
	db := openTemp(t)

	if tok, err := db.Token("google", "trainer"); err != nil || tok != "" {
		t.Fatalf("fresh token = %q, %v; want empty, nil", tok, err)
	}

	if err := db.SaveToken("google", "trainer", "tok-1"); err != nil {
		t.Fatal(err)
	}
	if tok, _ := db.Token("google", "trainer"); tok != "tok-1" {
		t.Errorf("token = %q, want tok-1", tok)
	}

	// Replacement, not accumulation.
	if err := db.SaveToken("google", "trainer", "tok-2"); err != nil {
		t.Fatal(err)
	}
	if tok, _ := db.Token("google", "trainer"); tok != "tok-2" {
		t.Errorf("token = %q, want tok-2", tok)
	}

	if err := db.ClearToken("google", "trainer"); err != nil {
		t.Fatal(err)
	}
	if tok, _ := db.Token("google", "trainer"); tok != "" {
		t.Errorf("token = %q after clear, want empty", tok)
	}
}

func TestTokenScopedByAccount(t *testing.T) {
	db := openTemp(t)
	if err := db.SaveToken("google", "alice", "tok-a"); err != nil {
		t.Fatal(err)
	}
	if tok, _ := db.Token("ptc", "alice"); tok != "" {
		t.Error("token leaked across providers")
	}
	if tok, _ := db.Token("google", "bob"); tok != "" {
		t.Error("token leaked across usernames")
	}
}

func TestJournalRecent(t *testing.T) {
	db := openTemp(t)
	for _, kind := range []string{"catch", "spin", "hatch"} {
		if err := db.Journal(kind, kind+" detail"); err != nil {
			t.Fatal(err)
		}
	}

	entries, err := db.RecentJournal(2)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if entries[0].Kind != "hatch" {
		t.Errorf("newest entry = %q, want hatch", entries[0].Kind)
	}
}

func TestSnapshotFullReplace(t *testing.T) {
	db := openTemp(t)
	s := session.New(pokedex.Demo())
	s.Profile.Level = 12
	s.SetItem(gateway.ItemPokeBall, 30)

	c := &session.Creature{}
	c.ID = 7
	c.SpeciesID = 16
	c.CP = 210
	c.MaxCP = 600
	s.PutCreature(c)

	if err := db.SaveSnapshot(s); err != nil {
		t.Fatal(err)
	}

	// A second snapshot with a smaller roster must not accumulate rows.
	s.DropCreature(7)
	if err := db.SaveSnapshot(s); err != nil {
		t.Fatal(err)
	}

	var rosterRows int
	if err := db.conn.Get(&rosterRows, "SELECT COUNT(*) FROM roster"); err != nil {
		t.Fatal(err)
	}
	if rosterRows != 0 {
		t.Errorf("roster rows = %d, want 0 after full replace", rosterRows)
	}

	if lvl, err := db.GetMeta("level"); err != nil || lvl != "12" {
		t.Errorf("meta level = %q, %v; want 12", lvl, err)
	}
}
