package server

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/driftwood-mud/driftwood/pkg/archive"
	"github.com/driftwood-mud/driftwood/pkg/command"
)

// archiveParams assembles archive inputs from whatever stores the server
// was built with. Nil stores are simply left out of the backup.
func (s *Server) archiveParams() archive.Params {
	params := archive.Params{
		ArchiveDir: s.cfg.ArchiveDir,
		MudName:    s.cfg.MudName,
		TextDir:    s.cfg.TextDir,
		ConfPath:   s.cfg.ConfPath,
	}
	if s.accounts != nil {
		params.AccountsSnapshot = s.accounts.Snapshot
		if n, err := s.accounts.Count(); err == nil {
			params.AccountCount = n
		}
	}
	if s.history != nil {
		params.HistoryPath = s.history.Path()
		params.HistoryCheckpoint = s.history.Checkpoint
	}
	return params
}

// CreateArchive writes a backup of the server's persistent state and
// prunes old archives past the configured retention count.
func (s *Server) CreateArchive() (string, error) {
	path, err := archive.CreateArchive(s.archiveParams())
	if err != nil {
		return "", err
	}
	log.Printf("Archive created: %s", path)
	if s.cfg.ArchiveRetain > 0 {
		if n, err := archive.PruneArchives(s.cfg.ArchiveDir, s.cfg.ArchiveRetain); err != nil {
			log.Printf("Archive prune failed: %v", err)
		} else if n > 0 {
			log.Printf("Pruned %d old archive(s)", n)
		}
	}
	return path, nil
}

// startAutoArchive runs CreateArchive on the configured interval until
// the stop channel closes.
func (s *Server) startAutoArchive(stop <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(s.cfg.ArchiveInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if _, err := s.CreateArchive(); err != nil {
					log.Printf("Auto-archive failed: %v", err)
				}
			case <-stop:
				return
			}
		}
	}()
}

// registerBackupCommand adds the admin-only backup command to the parser.
func (s *Server) registerBackupCommand() {
	s.parser.Register(command.Registration{
		Command:     "backup",
		Description: "Create or list server backups (admin only).",
		Usage:       "backup [list]",
		Hidden:      true,
		Handler:     s.cmdBackup,
	})
}

func (s *Server) cmdBackup(sessionID string, args []string, _ string) (string, error) {
	sess := s.sessions.Get(sessionID)
	if sess == nil || !sess.Authenticated() || sess.Role() != "admin" {
		return "You are not an administrator.", nil
	}

	if len(args) > 0 && strings.EqualFold(args[0], "list") {
		archives, err := archive.ListArchives(s.cfg.ArchiveDir)
		if err != nil {
			return "", fmt.Errorf("list archives: %w", err)
		}
		if len(archives) == 0 {
			return fmt.Sprintf("No backups found in %s.", s.cfg.ArchiveDir), nil
		}
		var b strings.Builder
		fmt.Fprintf(&b, "Backups in %s:\r\n", s.cfg.ArchiveDir)
		for _, ai := range archives {
			sizeMB := float64(ai.Size) / (1024 * 1024)
			fmt.Fprintf(&b, "  %s  %.1f MB  %s\r\n", ai.Filename, sizeMB, ai.Timestamp)
		}
		fmt.Fprintf(&b, "%d backup(s).", len(archives))
		return b.String(), nil
	}

	path, err := s.CreateArchive()
	if err != nil {
		return "", fmt.Errorf("create archive: %w", err)
	}
	return "Backup created: " + path, nil
}
