package watcher

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Config tells the watcher where to look and how long a file must stay
// unchanged before it counts as fully written.
type Config struct {
	SourceDir      string
	ArchiveDir     string
	BadDir         string
	MonitoringTime time.Duration
}

// Handler processes one ready file. A nil return moves the file to the
// archive, an error moves it to the bad directory.
type Handler func(ctx context.Context, path string) error

// Watcher polls a drop directory and hands stable files to a handler.
type Watcher struct {
	cfg     Config
	handler Handler
	logger  *slog.Logger

	mu         sync.Mutex
	firstSeen  map[string]time.Time
	processing map[string]bool
}

func New(cfg Config, handler Handler) (*Watcher, error) {
	for _, dir := range []string{cfg.SourceDir, cfg.ArchiveDir, cfg.BadDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return &Watcher{
		cfg:        cfg,
		handler:    handler,
		logger:     slog.Default(),
		firstSeen:  make(map[string]time.Time),
		processing: make(map[string]bool),
	}, nil
}

// Run polls the source directory until the context is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	w.logger.Info("start monitoring folder", "dir", w.cfg.SourceDir)

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()
	defer w.logger.Info("file watcher stopped")

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.scan(ctx)
		}
	}
}

func (w *Watcher) scan(ctx context.Context) {
	entries, err := os.ReadDir(w.cfg.SourceDir)
	if err != nil {
		w.logger.Error("error while reading source directory", "error", err)
		return
	}

	currentFiles := make(map[string]bool)

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		filePath := filepath.Join(w.cfg.SourceDir, entry.Name())
		currentFiles[filePath] = true

		w.mu.Lock()
		if w.processing[filePath] {
			w.mu.Unlock()
			continue
		}
		firstSeen, known := w.firstSeen[filePath]
		if !known {
			w.firstSeen[filePath] = time.Now()
			w.logger.Info("new file detected", "path", filePath)
			w.mu.Unlock()
			continue
		}
		w.mu.Unlock()

		if time.Since(firstSeen) < w.cfg.MonitoringTime {
			continue
		}

		w.mu.Lock()
		w.processing[filePath] = true
		w.mu.Unlock()

		w.process(ctx, filePath)

		w.mu.Lock()
		delete(w.processing, filePath)
		delete(w.firstSeen, filePath)
		w.mu.Unlock()

		if ctx.Err() != nil {
			return
		}
	}

	// drop tracking for files that disappeared from the directory
	w.mu.Lock()
	for filePath := range w.firstSeen {
		if !currentFiles[filePath] {
			delete(w.firstSeen, filePath)
			delete(w.processing, filePath)
			w.logger.Info("file removed from tracking", "path", filePath)
		}
	}
	w.mu.Unlock()
}

func (w *Watcher) process(ctx context.Context, filePath string) {
	w.logger.Info("processing file", "path", filePath)
	if err := w.handler(ctx, filePath); err != nil {
		w.logger.Error("file processing failed", "path", filePath, "error", err)
		w.moveTo(filePath, w.cfg.BadDir)
		return
	}
	w.moveTo(filePath, w.cfg.ArchiveDir)
}

// moveTo archives the file under a per-day subdirectory, renaming on
// name conflicts.
func (w *Watcher) moveTo(filePath, baseDir string) {
	destDir := filepath.Join(baseDir, time.Now().Format("2006-01-02"))
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		w.logger.Error("error creating archive directory", "error", err)
		return
	}

	destPath := filepath.Join(destDir, filepath.Base(filePath))
	counter := 1
	for {
		if _, err := os.Stat(destPath); os.IsNotExist(err) {
			break
		}
		ext := filepath.Ext(filePath)
		base := strings.TrimSuffix(filepath.Base(filePath), ext)
		destPath = filepath.Join(destDir, fmt.Sprintf("%s_%d%s", base, counter, ext))
		counter++
	}

	if err := copyFile(filePath, destPath); err != nil {
		w.logger.Error("error moving file to archive", "error", err)
		return
	}
	os.Remove(filePath)
	w.logger.Info("file archived", "path", destPath)
}

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

	_, err = io.Copy(out, in)
	return err
}
