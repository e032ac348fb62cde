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
)

// RestoreParams holds all inputs needed to restore an archive.
type RestoreParams struct {
	ArchivePath  string // Path to the .tar.gz archive
	AccountsDest string // Destination path for the account database (empty = skip)
	HistoryDest  string // Destination path for the history database (empty = skip)
	TextDest     string // Destination directory for text files (empty = skip)
	ConfDest     string // Destination path for the config file (empty = skip)
}

// RestoreResult summarizes a completed restore operation.
type RestoreResult struct {
	FilesRestored int
	Warnings      []string
}

// RestoreArchive extracts and validates an archive, restoring files to their
// destinations. The server must not be running against the destination files.
func RestoreArchive(params RestoreParams) (*RestoreResult, error) {
	result := &RestoreResult{}

	tmpDir, err := os.MkdirTemp("", "driftwood-restore-*")
	if err != nil {
		return nil, fmt.Errorf("restore: create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	if err := extractArchive(params.ArchivePath, tmpDir); err != nil {
		return nil, fmt.Errorf("restore: extract: %w", err)
	}

	manifestPath := filepath.Join(tmpDir, "manifest.json")
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("restore: manifest.json not found in archive")
	}
	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("restore: parse manifest: %w", err)
	}

	// Refuse to restore anything from a corrupt archive.
	for archName, entry := range manifest.Files {
		extractedPath := filepath.Join(tmpDir, filepath.FromSlash(archName))
		ok, err := validateChecksum(extractedPath, entry.SHA256)
		if err != nil {
			return nil, fmt.Errorf("restore: checksum %s: %w", archName, err)
		}
		if !ok {
			return nil, fmt.Errorf("restore: checksum mismatch for %s, archive may be corrupt", archName)
		}
	}

	acctSrc := filepath.Join(tmpDir, "data", "accounts.db")
	if _, err := os.Stat(acctSrc); err == nil && params.AccountsDest != "" {
		if err := restoreFile(acctSrc, params.AccountsDest); err != nil {
			return nil, fmt.Errorf("restore: accounts: %w", err)
		}
		result.FilesRestored++
	}

	histSrc := filepath.Join(tmpDir, "data", "history.db")
	if _, err := os.Stat(histSrc); err == nil && params.HistoryDest != "" {
		if err := restoreFile(histSrc, params.HistoryDest); err != nil {
			return nil, fmt.Errorf("restore: history: %w", err)
		}
		// A stale WAL next to the restored file would shadow its contents.
		for _, suffix := range []string{"-wal", "-shm"} {
			if err := os.Remove(params.HistoryDest + suffix); err == nil {
				result.Warnings = append(result.Warnings, "removed stale "+filepath.Base(params.HistoryDest)+suffix)
			}
		}
		result.FilesRestored++
	}

	textSrc := filepath.Join(tmpDir, "text")
	if info, err := os.Stat(textSrc); err == nil && info.IsDir() && params.TextDest != "" {
		if err := os.MkdirAll(params.TextDest, 0755); err != nil {
			return nil, fmt.Errorf("restore: create text dir: %w", err)
		}
		n, err := copyDir(textSrc, params.TextDest)
		if err != nil {
			return nil, fmt.Errorf("restore: copy text: %w", err)
		}
		result.FilesRestored += n
	}

	confSrc := filepath.Join(tmpDir, "conf")
	if info, err := os.Stat(confSrc); err == nil && info.IsDir() && params.ConfDest != "" {
		entries, err := os.ReadDir(confSrc)
		if err != nil {
			return nil, fmt.Errorf("restore: read conf dir: %w", err)
		}
		for _, entry := range entries {
			if entry.IsDir() || entry.Name() != filepath.Base(params.ConfDest) {
				continue
			}
			if err := restoreFile(filepath.Join(confSrc, entry.Name()), params.ConfDest); err != nil {
				return nil, fmt.Errorf("restore: conf %s: %w", entry.Name(), err)
			}
			result.FilesRestored++
		}
	}

	return result, nil
}

// restoreFile copies src over dst, creating the destination directory.
func restoreFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	return copyFile(src, dst)
}

// extractArchive extracts a .tar.gz to a destination directory.
func extractArchive(archivePath, destDir string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer f.Close()

	gr, err := gzip.NewReader(f)
	if err != nil {
		return err
	}
	defer gr.Close()

	tr := tar.NewReader(gr)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}

		// Reject entries that would escape the destination.
		target := filepath.Join(destDir, filepath.FromSlash(hdr.Name))
		if !strings.HasPrefix(filepath.Clean(target), filepath.Clean(destDir)) {
			return fmt.Errorf("invalid archive entry: %s", hdr.Name)
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return err
			}
			out, err := os.Create(target)
			if err != nil {
				return err
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return err
			}
			out.Close()
		}
	}
	return nil
}

// validateChecksum computes the SHA-256 of a file and compares it to want.
func validateChecksum(path, want string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return false, err
	}
	return hex.EncodeToString(h.Sum(nil)) == want, nil
}

// copyDir copies all regular files under srcDir into dstDir, preserving
// relative paths. It returns the number of files copied.
func copyDir(srcDir, dstDir string) (int, error) {
	n := 0
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
		dst := filepath.Join(dstDir, rel)
		if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
			return err
		}
		if err := copyFile(path, dst); err != nil {
			return err
		}
		n++
		return nil
	})
	return n, err
}
