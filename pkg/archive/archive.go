// Package archive creates and restores compressed backups of the
// server's persistent state: the account database, the chat history
// database, the text files, and the main config file.
package archive

import (
	"archive/tar"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Manifest describes the contents of an archive.
type Manifest struct {
	Version   int                  `json:"version"`
	Server    string               `json:"server"`
	Timestamp string               `json:"timestamp"`
	MudName   string               `json:"mud_name"`
	Accounts  int                  `json:"accounts"`
	Files     map[string]FileEntry `json:"files"`
}

// FileEntry describes a single file within the archive.
type FileEntry struct {
	SHA256 string `json:"sha256"`
	Size   int64  `json:"size"`
	Type   string `json:"type"` // "accounts", "history", "text", "conf"
}

// Params holds all inputs needed to create an archive.
type Params struct {
	AccountsSnapshot  func(destPath string) error // Snapshot closure for the account store (nil = skip)
	HistoryPath       string                      // Path to chat history database (empty = skip)
	HistoryCheckpoint func() error                // Checkpoint WAL before copy (nil = skip)
	TextDir           string                      // Path to text files directory (empty = skip)
	ConfPath          string                      // Path to server config file (empty = skip)
	ArchiveDir        string                      // Output directory for the archive
	MudName           string                      // MUD name for manifest
	AccountCount      int                         // Number of accounts for manifest
}

// CreateArchive creates a .tar.gz archive of server data and returns the archive path.
func CreateArchive(params Params) (string, error) {
	if err := os.MkdirAll(params.ArchiveDir, 0755); err != nil {
		return "", fmt.Errorf("archive: create dir %s: %w", params.ArchiveDir, err)
	}

	filename := fmt.Sprintf("driftwood-%s.tar.gz", time.Now().Format("20060102-150405"))
	archivePath := filepath.Join(params.ArchiveDir, filename)

	tmpDir, err := os.MkdirTemp("", "driftwood-archive-*")
	if err != nil {
		return "", fmt.Errorf("archive: create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	manifest := Manifest{
		Version:   1,
		Server:    "Driftwood",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		MudName:   params.MudName,
		Accounts:  params.AccountCount,
		Files:     make(map[string]FileEntry),
	}

	// Stage a consistent copy of the account database.
	var acctStaged string
	if params.AccountsSnapshot != nil {
		acctStaged = filepath.Join(tmpDir, "accounts.db")
		if err := params.AccountsSnapshot(acctStaged); err != nil {
			return "", fmt.Errorf("archive: accounts snapshot: %w", err)
		}
	}

	// Checkpoint and copy the history database so the WAL is folded in.
	var histStaged string
	if params.HistoryPath != "" {
		if params.HistoryCheckpoint != nil {
			if err := params.HistoryCheckpoint(); err != nil {
				return "", fmt.Errorf("archive: history checkpoint: %w", err)
			}
		}
		histStaged = filepath.Join(tmpDir, "history.db")
		if err := copyFile(params.HistoryPath, histStaged); err != nil {
			return "", fmt.Errorf("archive: copy history: %w", err)
		}
	}

	outFile, err := os.Create(archivePath)
	if err != nil {
		return "", fmt.Errorf("archive: create %s: %w", archivePath, err)
	}
	defer outFile.Close()

	gw := gzip.NewWriter(outFile)
	defer gw.Close()
	tw := tar.NewWriter(gw)
	defer tw.Close()

	if acctStaged != "" {
		entry, err := addFileToTar(tw, acctStaged, "data/accounts.db")
		if err != nil {
			return "", err
		}
		entry.Type = "accounts"
		manifest.Files["data/accounts.db"] = entry
	}

	if histStaged != "" {
		entry, err := addFileToTar(tw, histStaged, "data/history.db")
		if err != nil {
			return "", err
		}
		entry.Type = "history"
		manifest.Files["data/history.db"] = entry
	}

	if params.TextDir != "" {
		if info, err := os.Stat(params.TextDir); err == nil && info.IsDir() {
			entries, err := addDirToTar(tw, params.TextDir, "text")
			if err != nil {
				return "", err
			}
			for k, v := range entries {
				v.Type = "text"
				manifest.Files[k] = v
			}
		}
	}

	if params.ConfPath != "" {
		if _, err := os.Stat(params.ConfPath); err == nil {
			archName := "conf/" + filepath.Base(params.ConfPath)
			entry, err := addFileToTar(tw, params.ConfPath, archName)
			if err != nil {
				return "", err
			}
			entry.Type = "conf"
			manifest.Files[archName] = entry
		}
	}

	// Manifest goes in last so it describes everything before it.
	manifestJSON, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return "", fmt.Errorf("archive: marshal manifest: %w", err)
	}
	if err := tw.WriteHeader(&tar.Header{
		Name:    "manifest.json",
		Size:    int64(len(manifestJSON)),
		Mode:    0644,
		ModTime: time.Now(),
	}); err != nil {
		return "", fmt.Errorf("archive: write manifest header: %w", err)
	}
	if _, err := tw.Write(manifestJSON); err != nil {
		return "", fmt.Errorf("archive: write manifest: %w", err)
	}

	return archivePath, nil
}

// addFileToTar adds a single file to the tar archive with the given archive name,
// computing its SHA-256 while writing.
func addFileToTar(tw *tar.Writer, srcPath, archName string) (FileEntry, error) {
	f, err := os.Open(srcPath)
	if err != nil {
		return FileEntry{}, fmt.Errorf("archive: open %s: %w", srcPath, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return FileEntry{}, fmt.Errorf("archive: stat %s: %w", srcPath, err)
	}

	// Tar paths use forward slashes regardless of host OS.
	archName = strings.ReplaceAll(archName, "\\", "/")

	if err := tw.WriteHeader(&tar.Header{
		Name:    archName,
		Size:    info.Size(),
		Mode:    0644,
		ModTime: info.ModTime(),
	}); err != nil {
		return FileEntry{}, fmt.Errorf("archive: header %s: %w", archName, err)
	}

	h := sha256.New()
	written, err := io.Copy(tw, io.TeeReader(f, h))
	if err != nil {
		return FileEntry{}, fmt.Errorf("archive: write %s: %w", archName, err)
	}

	return FileEntry{
		SHA256: hex.EncodeToString(h.Sum(nil)),
		Size:   written,
	}, nil
}

// addDirToTar recursively adds all files in a directory to the tar archive.
func addDirToTar(tw *tar.Writer, srcDir, archPrefix string) (map[string]FileEntry, error) {
	entries := make(map[string]FileEntry)
	err := filepath.Walk(srcDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		archName := archPrefix + "/" + filepath.ToSlash(rel)
		entry, err := addFileToTar(tw, path, archName)
		if err != nil {
			return err
		}
		entries[archName] = entry
		return nil
	})
	return entries, err
}

// copyFile copies a file from src to dst.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
