package server

import (
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// TextFiles caches the text shown at connection lifecycle points. All
// accessors are safe on a nil receiver and return "".
type TextFiles struct {
	mu      sync.RWMutex
	dir     string
	welcome string // welcome.txt, pre-login banner
	motd    string // motd.txt, post-login message
	quit    string // quit.txt, farewell
	full    string // full.txt, connection cap reached
}

var trackedTextFiles = []string{"welcome.txt", "motd.txt", "quit.txt", "full.txt"}

func (tf *TextFiles) GetWelcome() string {
	if tf == nil {
		return ""
	}
	tf.mu.RLock()
	defer tf.mu.RUnlock()
	return tf.welcome
}

func (tf *TextFiles) GetMotd() string {
	if tf == nil {
		return ""
	}
	tf.mu.RLock()
	defer tf.mu.RUnlock()
	return tf.motd
}

func (tf *TextFiles) GetQuit() string {
	if tf == nil {
		return ""
	}
	tf.mu.RLock()
	defer tf.mu.RUnlock()
	return tf.quit
}

func (tf *TextFiles) GetFull() string {
	if tf == nil {
		return ""
	}
	tf.mu.RLock()
	defer tf.mu.RUnlock()
	return tf.full
}

// loadTextFile reads one file, returning "" on any error.
func loadTextFile(dir, name string) string {
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return ""
	}
	return string(data)
}

// LoadTextFiles reads the tracked text files from dir. Missing files come
// back as empty strings; callers supply their own fallbacks.
func LoadTextFiles(dir string) *TextFiles {
	tf := &TextFiles{dir: dir}
	tf.reload()
	return tf
}

func (tf *TextFiles) reload() {
	tf.mu.Lock()
	tf.welcome = loadTextFile(tf.dir, "welcome.txt")
	tf.motd = loadTextFile(tf.dir, "motd.txt")
	tf.quit = loadTextFile(tf.dir, "quit.txt")
	tf.full = loadTextFile(tf.dir, "full.txt")
	count := 0
	for _, v := range []string{tf.welcome, tf.motd, tf.quit, tf.full} {
		if v != "" {
			count++
		}
	}
	tf.mu.Unlock()
	log.Printf("Loaded %d text files from %s", count, tf.dir)
}

// Watch starts an fsnotify watcher on the text directory and reloads the
// cache whenever a tracked file is written or created.
func (tf *TextFiles) Watch() {
	if tf == nil || tf.dir == "" {
		return
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Printf("WARNING: could not start text file watcher: %v", err)
		return
	}

	tracked := make(map[string]bool, len(trackedTextFiles))
	for _, name := range trackedTextFiles {
		tracked[name] = true
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if !tracked[filepath.Base(event.Name)] {
					continue
				}
				log.Printf("Text file changed: %s, reloading", filepath.Base(event.Name))
				tf.reload()
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("Text file watcher error: %v", err)
			}
		}
	}()

	if err := watcher.Add(tf.dir); err != nil {
		log.Printf("WARNING: could not watch text directory %s: %v", tf.dir, err)
		watcher.Close()
		return
	}
	log.Printf("Watching text directory for changes: %s", tf.dir)
}
