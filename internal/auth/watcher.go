package auth

import (
	"context"
	"fmt"
	"log"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the token whenever the storage state file changes. The
// external auth provider (the browser side) rewrites the file on refresh;
// watching it is how a revived token reopens the direct path without a
// restart. Blocks until ctx is cancelled.
func Watch(ctx context.Context, m *Manager, path, origin string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory: editors and the automation side replace the file
	// atomically, which drops inode-level watches.
	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	target := filepath.Clean(path)
	log.Printf("👀 Watching %s for token refresh", target)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if err := LoadIntoManager(m, path, origin); err != nil {
				log.Printf("⚠️  Token reload failed: %v", err)
				continue
			}
			log.Println("✅ Auth token refreshed from storage state")
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("⚠️  Token watcher error: %v", err)
		}
	}
}
