package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/driftwood-mud/driftwood/pkg/archive"
	"github.com/driftwood-mud/driftwood/pkg/game"
	"github.com/driftwood-mud/driftwood/pkg/server"
	"github.com/driftwood-mud/driftwood/pkg/store"
)

// envDefault returns the environment variable value if set, otherwise the fallback.
func envDefault(envVar, fallback string) string {
	if v := os.Getenv(envVar); v != "" {
		return v
	}
	return fallback
}

func main() {
	confFile := flag.String("conf", envDefault("DRIFTWOOD_CONF", ""), "Path to YAML config file (env: DRIFTWOOD_CONF)")
	port := flag.Int("port", 0, "TCP port to listen on, overrides config (env: DRIFTWOOD_PORT)")
	worldFile := flag.String("world", envDefault("DRIFTWOOD_WORLD", ""), "Path to YAML world file (env: DRIFTWOOD_WORLD)")
	accountsDB := flag.String("accounts", envDefault("DRIFTWOOD_ACCOUNTS", ""), "Path to bbolt account database (env: DRIFTWOOD_ACCOUNTS)")
	historyDB := flag.String("history", envDefault("DRIFTWOOD_HISTORY", ""), "Path to SQLite chat history database (env: DRIFTWOOD_HISTORY)")
	textDir := flag.String("textdir", envDefault("DRIFTWOOD_TEXTDIR", ""), "Path to text files directory (env: DRIFTWOOD_TEXTDIR)")
	restorePath := flag.String("restore", envDefault("DRIFTWOOD_RESTORE", ""), "Restore from a backup archive before boot (env: DRIFTWOOD_RESTORE)")
	jwtSecret := flag.Bool("gen-jwt-secret", false, "Print a fresh JWT secret and exit")
	flag.Parse()

	if *jwtSecret {
		os.Stdout.WriteString(server.GenerateJWTSecret() + "\n")
		return
	}

	log.Printf("Welcome to %s", server.VersionString())

	cfg := server.DefaultConfig()
	if *confFile != "" {
		var err error
		cfg, err = server.LoadConfig(*confFile)
		if err != nil {
			log.Fatalf("Error loading config: %v", err)
		}
		log.Printf("Loaded config from %s", *confFile)
	}

	// Flags and env override config file values.
	if *port == 0 {
		if envPort := os.Getenv("DRIFTWOOD_PORT"); envPort != "" {
			if p, err := strconv.Atoi(envPort); err == nil {
				*port = p
			}
		}
	}
	if *port != 0 {
		cfg.Port = *port
	}
	if *worldFile != "" {
		cfg.WorldFile = *worldFile
	}
	if *accountsDB != "" {
		cfg.AccountsDB = *accountsDB
	}
	if *historyDB != "" {
		cfg.HistoryDB = *historyDB
	}
	if *textDir != "" {
		cfg.TextDir = *textDir
	}

	// Pre-boot restore runs before any database is opened.
	if *restorePath != "" {
		log.Printf("Restoring from backup: %s", *restorePath)
		result, err := archive.RestoreArchive(archive.RestoreParams{
			ArchivePath:  *restorePath,
			AccountsDest: cfg.AccountsDB,
			HistoryDest:  cfg.HistoryDB,
			TextDest:     cfg.TextDir,
			ConfDest:     cfg.ConfPath,
		})
		if err != nil {
			log.Fatalf("Error restoring backup: %v", err)
		}
		for _, w := range result.Warnings {
			log.Printf("Restore warning: %s", w)
		}
		log.Printf("Restored %d file(s)", result.FilesRestored)
	}

	world := game.DefaultWorld()
	if cfg.WorldFile != "" {
		var err error
		world, err = game.LoadWorld(cfg.WorldFile)
		if err != nil {
			log.Fatalf("Error loading world: %v", err)
		}
		log.Printf("Loaded world from %s: %d rooms", cfg.WorldFile, world.RoomCount())
	}

	var accounts *store.Accounts
	if cfg.AccountsDB != "" {
		var err error
		accounts, err = store.Open(cfg.AccountsDB)
		if err != nil {
			log.Fatalf("Error opening account database: %v", err)
		}
		defer accounts.Close()
		n, _ := accounts.Count()
		log.Printf("Account database: %s (%d accounts)", cfg.AccountsDB, n)
	} else {
		log.Printf("No account database configured; any username/password is accepted")
	}

	var history *server.HistoryStore
	if cfg.HistoryDB != "" {
		var err error
		history, err = server.OpenHistory(cfg.HistoryDB)
		if err != nil {
			log.Fatalf("Error opening history database: %v", err)
		}
		defer history.Close()
		log.Printf("Chat history database: %s", cfg.HistoryDB)
	}

	srv := server.NewServer(cfg, world, accounts, history)
	if err := srv.Start(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
	log.Printf("Starting %s on port %d...", cfg.MudName, cfg.Port)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Printf("Shutting down...")
	srv.Stop()
}
