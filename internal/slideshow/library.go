package slideshow

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	_ "golang.org/x/image/webp"

	appLog "github.com/olofsundelin/familywall/internal/log"
)

// Library indexes the pictures directory for the slideshow screensaver.
// The file list and per-image metadata are cached in memory and invalidated
// by a directory watch, so adding photos over SMB shows up without restarts.
type Library struct {
	dir string

	mu    sync.RWMutex
	list  []Picture
	meta  []Meta
	dirty bool
}

// Picture is one indexed image file.
type Picture struct {
	Abs string
	Rel string
}

// Meta is the orientation info the slideshow uses to pick layouts.
type Meta struct {
	File        string `json:"file"`
	Orientation string `json:"orientation"`
	Width       int    `json:"width,omitempty"`
	Height      int    `json:"height,omitempty"`
}

var imageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
}

func NewLibrary(dir string) *Library {
	return &Library{dir: dir, dirty: true}
}

// Watch invalidates the caches whenever anything under the pictures dir
// changes. Subdirectories are watched too (fsnotify is not recursive).
func (l *Library) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	addAll := func() {
		_ = filepath.WalkDir(l.dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if d.IsDir() {
				_ = watcher.Add(path)
			}
			return nil
		})
	}
	addAll()

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				l.invalidate()
				// New directories need their own watch.
				if ev.Op.Has(fsnotify.Create) {
					if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
						addAll()
					}
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				appLog.Warn("picture watcher error", "reason", err)
			}
		}
	}()
	return nil
}

func (l *Library) invalidate() {
	l.mu.Lock()
	l.dirty = true
	l.meta = nil
	l.mu.Unlock()
}

// List returns the relative paths of all indexed pictures, sorted.
func (l *Library) List() ([]string, error) {
	pics, err := l.pictures()
	if err != nil {
		return nil, err
	}
	out := make([]string, len(pics))
	for i, p := range pics {
		out[i] = p.Rel
	}
	return out, nil
}

// Lookup resolves a relative picture path to its file, guarding against
// path traversal by only matching indexed entries.
func (l *Library) Lookup(rel string) (Picture, bool, error) {
	pics, err := l.pictures()
	if err != nil {
		return Picture{}, false, err
	}
	for _, p := range pics {
		if p.Rel == rel {
			return p, true, nil
		}
	}
	return Picture{}, false, nil
}

// Metadata returns width/height/orientation per picture. Built lazily and
// kept until the directory changes; DecodeConfig reads headers only, so a
// full rebuild over a few thousand photos stays cheap.
func (l *Library) Metadata() ([]Meta, error) {
	l.mu.RLock()
	cached := l.meta
	l.mu.RUnlock()
	if cached != nil {
		return cached, nil
	}

	pics, err := l.pictures()
	if err != nil {
		return nil, err
	}

	out := make([]Meta, 0, len(pics))
	for _, p := range pics {
		m := Meta{File: p.Rel, Orientation: "unknown"}
		if cfg, err := decodeConfig(p.Abs); err == nil {
			m.Width = cfg.Width
			m.Height = cfg.Height
			if cfg.Height > cfg.Width {
				m.Orientation = "portrait"
			} else {
				m.Orientation = "landscape"
			}
		}
		out = append(out, m)
	}

	l.mu.Lock()
	l.meta = out
	l.mu.Unlock()
	return out, nil
}

func (l *Library) pictures() ([]Picture, error) {
	l.mu.RLock()
	if !l.dirty {
		list := l.list
		l.mu.RUnlock()
		return list, nil
	}
	l.mu.RUnlock()

	list, err := scan(l.dir)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.list = list
	l.dirty = false
	l.mu.Unlock()
	return list, nil
}

func scan(dir string) ([]Picture, error) {
	if dir == "" {
		return nil, fmt.Errorf("slideshow: pictures dir not configured")
	}
	var out []Picture
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable entries are skipped, not fatal
		}
		if d.IsDir() || d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		if !imageExts[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return nil
		}
		out = append(out, Picture{Abs: path, Rel: filepath.ToSlash(rel)})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Rel < out[j].Rel })
	return out, nil
}

func decodeConfig(path string) (image.Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return image.Config{}, err
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	return cfg, err
}
