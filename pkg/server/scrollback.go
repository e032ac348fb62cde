package server

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/driftwood-mud/driftwood/pkg/events"
)

const historyQueryTimeout = 5 * time.Second

// HistoryEntry is one stored chat line.
type HistoryEntry struct {
	ID        int64     `json:"id"`
	Channel   string    `json:"channel"`
	Sender    string    `json:"sender"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// HistoryStore persists chat scrollback in a SQLite database.
type HistoryStore struct {
	db   *sql.DB
	path string
}

// OpenHistory opens or creates the scrollback database with WAL mode and
// the chat_history table.
func OpenHistory(path string) (*HistoryStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite %s: %w", path, err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS chat_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		channel TEXT NOT NULL,
		sender TEXT NOT NULL,
		message TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating chat_history: %w", err)
	}
	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_chat_history_channel
		ON chat_history(channel, created_at)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating index: %w", err)
	}
	return &HistoryStore{db: db, path: path}, nil
}

// Close closes the database.
func (h *HistoryStore) Close() error {
	if h.db != nil {
		return h.db.Close()
	}
	return nil
}

// Path returns the filesystem path of the database.
func (h *HistoryStore) Path() string { return h.path }

// Checkpoint flushes the WAL into the main database file so the file on
// disk is complete for copying.
func (h *HistoryStore) Checkpoint() error {
	_, err := h.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return err
}

// Insert stores one chat line.
func (h *HistoryStore) Insert(channel, sender, message string) error {
	ctx, cancel := context.WithTimeout(context.Background(), historyQueryTimeout)
	defer cancel()
	_, err := h.db.ExecContext(ctx,
		"INSERT INTO chat_history (channel, sender, message) VALUES (?, ?, ?)",
		channel, sender, message)
	return err
}

// Recent returns the newest entries for a channel, newest first.
func (h *HistoryStore) Recent(channel string, limit int) ([]HistoryEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	ctx, cancel := context.WithTimeout(context.Background(), historyQueryTimeout)
	defer cancel()
	rows, err := h.db.QueryContext(ctx,
		`SELECT id, channel, sender, message, created_at FROM chat_history
		 WHERE channel = ? ORDER BY id DESC LIMIT ?`, channel, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		if err := rows.Scan(&e.ID, &e.Channel, &e.Sender, &e.Message, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// PurgeOlderThan deletes entries older than the retention window and
// returns the number removed.
func (h *HistoryStore) PurgeOlderThan(retention time.Duration) (int64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), historyQueryTimeout)
	defer cancel()
	res, err := h.db.ExecContext(ctx,
		"DELETE FROM chat_history WHERE created_at < ?",
		time.Now().Add(-retention).UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ScrollbackWriter subscribes to chat events and writes them to the
// history store. Room chat is keyed by room ID, global chat by "global".
type ScrollbackWriter struct {
	history *HistoryStore
	subs    []*events.Subscription
	bus     *events.Bus
	stop    chan struct{}
	once    sync.Once
}

// NewScrollbackWriter registers handlers for chat events on the bus.
func NewScrollbackWriter(bus *events.Bus, history *HistoryStore) *ScrollbackWriter {
	sw := &ScrollbackWriter{
		history: history,
		bus:     bus,
		stop:    make(chan struct{}),
	}
	sw.subs = append(sw.subs, bus.On(events.ChatGlobal, func(ev events.Event) error {
		return sw.record("global", ev)
	}))
	sw.subs = append(sw.subs, bus.On(events.ChatMessage, func(ev events.Event) error {
		room := ev.Str("room")
		if room == "" {
			return nil
		}
		return sw.record(room, ev)
	}))
	log.Printf("scrollback: writer registered on event bus")
	return sw
}

func (sw *ScrollbackWriter) record(channel string, ev events.Event) error {
	if err := sw.history.Insert(channel, ev.Str("username"), ev.Str("message")); err != nil {
		log.Printf("scrollback: insert error: %v", err)
	}
	return nil
}

// StartRetentionCleanup starts an hourly purge of expired entries.
func (sw *ScrollbackWriter) StartRetentionCleanup(retention time.Duration) {
	if retention <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-sw.stop:
				return
			case <-ticker.C:
				purged, err := sw.history.PurgeOlderThan(retention)
				if err != nil {
					log.Printf("scrollback cleanup error: %v", err)
					continue
				}
				if purged > 0 {
					log.Printf("scrollback: purged %d old entries", purged)
				}
			}
		}
	}()
}

// Close unsubscribes from the bus and stops the cleanup goroutine.
func (sw *ScrollbackWriter) Close() {
	sw.once.Do(func() {
		close(sw.stop)
		for _, sub := range sw.subs {
			sw.bus.Off(sub)
		}
	})
}
