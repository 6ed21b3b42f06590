package slideshow

import (
	"image"
	"image/png"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func setupPictures(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	if err := os.MkdirAll(filepath.Join(dir, "semester"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	files := []string{"b.jpg", "a.png", "semester/strand.jpeg", "anteckningar.txt"}
	for _, f := range files {
		if err := os.WriteFile(filepath.Join(dir, f), []byte("x"), 0o600); err != nil {
			t.Fatalf("write %s: %v", f, err)
		}
	}
	return dir
}

func TestListSortedImagesOnly(t *testing.T) {
	l := NewLibrary(setupPictures(t))

	got, err := l.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	want := []string{"a.png", "b.jpg", "semester/strand.jpeg"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("List = %v, want %v", got, want)
	}
}

func TestLookup(t *testing.T) {
	dir := setupPictures(t)
	l := NewLibrary(dir)

	p, ok, err := l.Lookup("semester/strand.jpeg")
	if err != nil || !ok {
		t.Fatalf("Lookup known picture: ok=%v err=%v", ok, err)
	}
	if p.Abs != filepath.Join(dir, "semester", "strand.jpeg") {
		t.Fatalf("Abs = %q", p.Abs)
	}

	// Only indexed entries resolve; traversal attempts find nothing.
	for _, rel := range []string{"../etc/passwd", "anteckningar.txt", "saknas.jpg"} {
		if _, ok, err := l.Lookup(rel); err != nil || ok {
			t.Fatalf("Lookup(%q) = ok=%v err=%v, want a miss", rel, ok, err)
		}
	}
}

func TestMetadataOrientation(t *testing.T) {
	dir := t.TempDir()

	writePNG := func(name string, w, h int) {
		f, err := os.Create(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		defer f.Close()
		if err := png.Encode(f, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	writePNG("liggande.png", 40, 20)
	writePNG("stående.png", 20, 40)
	if err := os.WriteFile(filepath.Join(dir, "trasig.jpg"), []byte("inte en bild"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	l := NewLibrary(dir)
	meta, err := l.Metadata()
	if err != nil {
		t.Fatalf("Metadata: %v", err)
	}

	byFile := map[string]Meta{}
	for _, m := range meta {
		byFile[m.File] = m
	}
	if m := byFile["liggande.png"]; m.Orientation != "landscape" || m.Width != 40 {
		t.Fatalf("landscape meta = %+v", m)
	}
	if m := byFile["stående.png"]; m.Orientation != "portrait" || m.Height != 40 {
		t.Fatalf("portrait meta = %+v", m)
	}
	if m := byFile["trasig.jpg"]; m.Orientation != "unknown" {
		t.Fatalf("undecodable file meta = %+v", m)
	}
}

func TestListUnconfiguredDir(t *testing.T) {
	l := NewLibrary("")
	if _, err := l.List(); err == nil {
		t.Fatalf("empty dir config should error")
	}
}
