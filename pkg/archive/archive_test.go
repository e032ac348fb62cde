package archive

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/driftwood-mud/driftwood/pkg/store"
)

// buildFixture lays out a text dir, a config file, and a populated
// account store under a temp dir and returns archive params for them.
func buildFixture(t *testing.T) (Params, *store.Accounts, string) {
	t.Helper()
	dir := t.TempDir()

	textDir := filepath.Join(dir, "text")
	if err := os.MkdirAll(textDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(textDir, "welcome.txt"), []byte("Welcome to Driftwood.\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(textDir, "motd.txt"), []byte("Be kind.\n"), 0644); err != nil {
		t.Fatal(err)
	}

	confPath := filepath.Join(dir, "driftwood.yaml")
	if err := os.WriteFile(confPath, []byte("mud_name: Driftwood\nport: 4000\n"), 0644); err != nil {
		t.Fatal(err)
	}

	accounts, err := store.Open(filepath.Join(dir, "accounts.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { accounts.Close() })
	if _, err := accounts.Create("alice", "hunter2", "player"); err != nil {
		t.Fatal(err)
	}
	if _, err := accounts.Create("bob", "swordfish", "admin"); err != nil {
		t.Fatal(err)
	}
	count, err := accounts.Count()
	if err != nil {
		t.Fatal(err)
	}

	params := Params{
		AccountsSnapshot: accounts.Snapshot,
		TextDir:          textDir,
		ConfPath:         confPath,
		ArchiveDir:       filepath.Join(dir, "archives"),
		MudName:          "Driftwood",
		AccountCount:     count,
	}
	return params, accounts, dir
}

func TestCreateAndListArchive(t *testing.T) {
	params, _, _ := buildFixture(t)

	path, err := CreateArchive(params)
	if err != nil {
		t.Fatalf("CreateArchive: %v", err)
	}
	if !strings.HasSuffix(path, ".tar.gz") {
		t.Errorf("archive path %q lacks .tar.gz suffix", path)
	}

	archives, err := ListArchives(params.ArchiveDir)
	if err != nil {
		t.Fatalf("ListArchives: %v", err)
	}
	if len(archives) != 1 {
		t.Fatalf("got %d archives, want 1", len(archives))
	}
	ai := archives[0]
	if ai.MudName != "Driftwood" {
		t.Errorf("MudName = %q, want Driftwood", ai.MudName)
	}
	if ai.Accounts != 2 {
		t.Errorf("Accounts = %d, want 2", ai.Accounts)
	}
	if ai.Size == 0 {
		t.Error("archive size is zero")
	}

	m, err := readManifest(path)
	if err != nil {
		t.Fatalf("readManifest: %v", err)
	}
	for _, want := range []string{"data/accounts.db", "text/welcome.txt", "text/motd.txt", "conf/driftwood.yaml"} {
		entry, ok := m.Files[want]
		if !ok {
			t.Errorf("manifest missing %s", want)
			continue
		}
		if entry.SHA256 == "" || entry.Size == 0 {
			t.Errorf("manifest entry %s incomplete: %+v", want, entry)
		}
	}
}

func TestRestoreRoundTrip(t *testing.T) {
	params, _, _ := buildFixture(t)

	path, err := CreateArchive(params)
	if err != nil {
		t.Fatalf("CreateArchive: %v", err)
	}

	dest := t.TempDir()
	res, err := RestoreArchive(RestoreParams{
		ArchivePath:  path,
		AccountsDest: filepath.Join(dest, "accounts.db"),
		TextDest:     filepath.Join(dest, "text"),
		ConfDest:     filepath.Join(dest, "driftwood.yaml"),
	})
	if err != nil {
		t.Fatalf("RestoreArchive: %v", err)
	}
	// accounts.db + 2 text files + config
	if res.FilesRestored != 4 {
		t.Errorf("FilesRestored = %d, want 4", res.FilesRestored)
	}

	restored, err := store.Open(filepath.Join(dest, "accounts.db"))
	if err != nil {
		t.Fatalf("open restored accounts: %v", err)
	}
	defer restored.Close()
	if n, err := restored.Count(); err != nil || n != 2 {
		t.Errorf("restored account count = %d, err %v, want 2", n, err)
	}
	if _, err := restored.Authenticate("bob", "swordfish"); err != nil {
		t.Errorf("restored account failed to authenticate: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dest, "text", "welcome.txt"))
	if err != nil || !strings.Contains(string(data), "Welcome to Driftwood") {
		t.Errorf("restored welcome.txt wrong: %q, err %v", data, err)
	}
	if _, err := os.Stat(filepath.Join(dest, "driftwood.yaml")); err != nil {
		t.Errorf("config not restored: %v", err)
	}
}

func TestRestoreRejectsCorruptArchive(t *testing.T) {
	params, _, _ := buildFixture(t)
	path, err := CreateArchive(params)
	if err != nil {
		t.Fatalf("CreateArchive: %v", err)
	}

	// Flip bytes in the middle of the gzip stream.
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	for i := len(data) / 2; i < len(data)/2+8 && i < len(data); i++ {
		data[i] ^= 0xFF
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	dest := t.TempDir()
	_, err = RestoreArchive(RestoreParams{
		ArchivePath:  path,
		AccountsDest: filepath.Join(dest, "accounts.db"),
	})
	if err == nil {
		t.Fatal("expected error restoring corrupt archive")
	}
}

func TestPruneArchives(t *testing.T) {
	params, _, _ := buildFixture(t)

	for i := 0; i < 3; i++ {
		if _, err := CreateArchive(params); err != nil {
			t.Fatalf("CreateArchive %d: %v", i, err)
		}
		// Archive filenames have one-second resolution.
		time.Sleep(1100 * time.Millisecond)
	}

	removed, err := PruneArchives(params.ArchiveDir, 2)
	if err != nil {
		t.Fatalf("PruneArchives: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	archives, err := ListArchives(params.ArchiveDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(archives) != 2 {
		t.Fatalf("got %d archives after prune, want 2", len(archives))
	}
	// Oldest should be the one removed: remaining are the two newest.
	if archives[0].Timestamp < archives[1].Timestamp {
		t.Error("archives not sorted newest-first")
	}
}
