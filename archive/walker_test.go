package archive

import (
	"archive/zip"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func makeZip(t *testing.T, entries map[string]string) string {
	t.Helper()

	zipPath := filepath.Join(t.TempDir(), "test.zip")
	zipFile, err := os.Create(zipPath)
	if err != nil {
		t.Fatalf("Failed to create zip file: %v", err)
	}
	defer zipFile.Close()

	w := zip.NewWriter(zipFile)
	for name, content := range entries {
		fw, err := w.Create(name)
		if err != nil {
			t.Fatalf("Failed to create file %s in zip: %v", name, err)
		}
		if _, err := fw.Write([]byte(content)); err != nil {
			t.Fatalf("Failed to write content for %s: %v", name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Failed to finalize zip: %v", err)
	}
	return zipPath
}

func collect(t *testing.T, zipPath, prefix string) []string {
	t.Helper()

	var visited []string
	err := Walk(zipPath, prefix, func(archive string, file *zip.File) error {
		if archive != zipPath {
			t.Errorf("archive = %s, want %s", archive, zipPath)
		}
		visited = append(visited, file.Name)
		return nil
	})
	if err != nil {
		t.Fatalf("Walk() error = %v", err)
	}
	return visited
}

func TestWalk(t *testing.T) {
	zipPath := makeZip(t, map[string]string{
		"styles/item10.css":    "ten",
		"styles/item2.css":     "two",
		"styles/nested/a.css":  "a",
		"styles-extra/a.css":   "other",
		"readme.txt":           "readme",
		"Styles/uppercase.css": "upper",
	})

	tests := []struct {
		name   string
		prefix string
		want   string
	}{
		{"everything", "", "Styles/uppercase.css,readme.txt,styles-extra/a.css,styles/item2.css,styles/item10.css,styles/nested/a.css"},
		{"directory", "styles", "styles/item2.css,styles/item10.css,styles/nested/a.css"},
		{"directory with slash", "styles/", "styles/item2.css,styles/item10.css,styles/nested/a.css"},
		{"backslashes", `styles\nested`, "styles/nested/a.css"},
		{"single file", "styles/item2.css", "styles/item2.css"},
		{"case sensitive", "STYLES", ""},
		{"nothing", "missing", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := strings.Join(collect(t, zipPath, tt.prefix), ","); got != tt.want {
				t.Errorf("visited %s, want %s", got, tt.want)
			}
		})
	}
}

func TestWalk_SkipsDirectories(t *testing.T) {
	zipPath := makeZip(t, map[string]string{
		"mydir/":         "",
		"mydir/file.css": "x",
	})

	visited := collect(t, zipPath, "mydir")
	if len(visited) != 1 || visited[0] != "mydir/file.css" {
		t.Errorf("visited %v, want [mydir/file.css]", visited)
	}
}

func TestWalk_EarlyTermination(t *testing.T) {
	zipPath := makeZip(t, map[string]string{"a.css": "", "b.css": "", "c.css": ""})

	stopErr := errors.New("stop")
	visited := 0
	err := Walk(zipPath, "", func(string, *zip.File) error {
		visited++
		if visited == 2 {
			return stopErr
		}
		return nil
	})
	if !errors.Is(err, stopErr) {
		t.Errorf("Walk() error = %v, want %v", err, stopErr)
	}
	if visited != 2 {
		t.Errorf("visited %d files, want 2", visited)
	}
}

func TestWalk_FileContent(t *testing.T) {
	zipPath := makeZip(t, map[string]string{"a.css": ".a { b: c; }"})

	err := Walk(zipPath, "", func(_ string, file *zip.File) error {
		rc, err := file.Open()
		if err != nil {
			return err
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return err
		}
		if string(data) != ".a { b: c; }" {
			t.Errorf("content = %q", data)
		}
		return nil
	})
	if err != nil {
		t.Errorf("Walk() error = %v", err)
	}
}

func TestWalk_UnsafeEntries(t *testing.T) {
	for _, name := range []string{"../evil.css", "styles/../../evil.css", "/abs.css"} {
		t.Run(name, func(t *testing.T) {
			zipPath := makeZip(t, map[string]string{"good.css": "", name: ""})
			called := false
			err := Walk(zipPath, "", func(string, *zip.File) error {
				called = true
				return nil
			})
			if err == nil || !strings.Contains(err.Error(), "unsafe path") {
				t.Errorf("Walk() error = %v, want unsafe path error", err)
			}
			if called {
				t.Error("nothing should be visited in unsafe archive")
			}
		})
	}
}

func TestWalk_Errors(t *testing.T) {
	if err := Walk("/nonexistent/file.zip", "", func(string, *zip.File) error { return nil }); err == nil {
		t.Error("expected error for non-existent archive")
	}

	notZip := filepath.Join(t.TempDir(), "not.zip")
	if err := os.WriteFile(notZip, []byte("not a zip"), 0644); err != nil {
		t.Fatalf("Failed to create file: %v", err)
	}
	if err := Walk(notZip, "", func(string, *zip.File) error { return nil }); err == nil {
		t.Error("expected error for invalid archive")
	}
}
