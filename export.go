package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Klasmart-Engineering/h5p-speak-the-words/audio"
	"github.com/Klasmart-Engineering/h5p-speak-the-words/encoder"
	"github.com/Klasmart-Engineering/h5p-speak-the-words/eventbus"
	"github.com/Klasmart-Engineering/h5p-speak-the-words/log"
	"github.com/Klasmart-Engineering/h5p-speak-the-words/task"
)

// exportWriter saves every export-file event as <contentID>-<unix>.<ext>.
type exportWriter struct {
	dir string
	now func() time.Time

	mu      sync.Mutex
	written []string
}

func newExportWriter(dir string) *exportWriter {
	return &exportWriter{dir: dir, now: time.Now}
}

func (w *exportWriter) Attach(bus *eventbus.Bus) (detach func()) {
	return bus.Subscribe(eventbus.ExportFile, func(p any) {
		exp, ok := p.(audio.Export)
		if !ok {
			log.Warnf("export: unexpected payload %T", p)
			return
		}
		path, err := w.write(exp)
		if err != nil {
			log.Errorf("export: %v", err)
			return
		}
		log.Info("export_written: " + path)
	})
}

func (w *exportWriter) write(exp audio.Export) (string, error) {
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return "", fmt.Errorf("creating export directory: %w", err)
	}
	id := exp.ContentID
	if id == "" {
		id = "recording"
	}
	base := fmt.Sprintf("%s-%d", sanitizeName(id), w.now().Unix())
	ext := "." + encoder.Extension(exp.MIME)

	for n := 0; ; n++ {
		name := base + ext
		if n > 0 {
			name = fmt.Sprintf("%s-%d%s", base, n, ext)
		}
		path := filepath.Join(w.dir, name)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", err
		}
		if _, err := f.Write(exp.Data); err != nil {
			f.Close()
			return "", err
		}
		if err := f.Close(); err != nil {
			return "", err
		}
		w.mu.Lock()
		w.written = append(w.written, path)
		w.mu.Unlock()
		return path, nil
	}
}

// Written lists the files saved so far.
func (w *exportWriter) Written() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.written...)
}

func sanitizeName(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		}
		return '_'
	}, s)
}

// loadSnapshot reads a saved snapshot. A missing file is not an error.
func loadSnapshot(path string) (*task.Snapshot, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return task.ParseSnapshot(data)
}

func saveSnapshot(path string, s task.Snapshot) error {
	if path == "" {
		return nil
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	return nil
}
