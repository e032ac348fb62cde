package server

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadTextFiles(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "welcome.txt"), []byte("Ahoy!\r\n"), 0644)
	os.WriteFile(filepath.Join(dir, "motd.txt"), []byte("News: nothing.\r\n"), 0644)

	tf := LoadTextFiles(dir)
	if tf.GetWelcome() != "Ahoy!\r\n" {
		t.Errorf("welcome = %q", tf.GetWelcome())
	}
	if tf.GetMotd() != "News: nothing.\r\n" {
		t.Errorf("motd = %q", tf.GetMotd())
	}
	// Missing files come back empty.
	if tf.GetQuit() != "" || tf.GetFull() != "" {
		t.Error("missing files not empty")
	}
}

func TestNilTextFilesAccessors(t *testing.T) {
	var tf *TextFiles
	if tf.GetWelcome() != "" || tf.GetMotd() != "" || tf.GetQuit() != "" || tf.GetFull() != "" {
		t.Error("nil TextFiles accessor returned non-empty")
	}
}

func TestWatchReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "motd.txt"), []byte("old"), 0644)

	tf := LoadTextFiles(dir)
	tf.Watch()

	os.WriteFile(filepath.Join(dir, "motd.txt"), []byte("new"), 0644)

	deadline := time.Now().Add(3 * time.Second)
	for tf.GetMotd() != "new" && time.Now().Before(deadline) {
		time.Sleep(25 * time.Millisecond)
	}
	if got := tf.GetMotd(); got != "new" {
		t.Errorf("motd after change = %q, want new", got)
	}
}
