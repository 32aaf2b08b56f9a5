// Package archive walks stylesheets stored inside zip archives.
package archive

import (
	"archive/zip"
	"fmt"
	"path"
	"slices"
	"sort"
	"strings"

	"github.com/maruel/natural"
)

// WalkFunc is called by Walk for every selected file. The archive argument is
// path to archive passed to Walk. If an error is returned, processing stops.
type WalkFunc func(archive string, file *zip.File) error

// Walk visits regular files in the archive located under prefix in natural
// order of their names. Prefix is a directory path inside archive ("styles"
// and "styles/" are the same) or a path to a single file; empty prefix
// selects everything. Archives with absolute entries or entries containing
// ".." are rejected before anything is visited.
func Walk(archive, prefix string, walkFn WalkFunc) error {
	r, err := zip.OpenReader(archive)
	if err != nil {
		return err
	}
	defer r.Close()

	prefix = strings.Trim(strings.ReplaceAll(prefix, `\`, "/"), "/")

	files := make([]*zip.File, 0, len(r.File))
	for _, f := range r.File {
		if !isSafePath(f.Name) {
			return fmt.Errorf("zip entry %q: unsafe path (absolute or contains path traversal)", f.Name)
		}
		if f.FileInfo().IsDir() || !under(f.Name, prefix) {
			continue
		}
		files = append(files, f)
	}

	sort.SliceStable(files, func(i, j int) bool {
		return natural.Less(files[i].Name, files[j].Name)
	})

	for _, f := range files {
		if err := walkFn(archive, f); err != nil {
			return err
		}
	}
	return nil
}

// under reports whether name is prefix itself or located in prefix directory.
func under(name, prefix string) bool {
	if prefix == "" || name == prefix {
		return true
	}
	return strings.HasPrefix(name, prefix+"/")
}

// isSafePath returns false for paths that could escape the extraction
// directory: absolute paths and those containing ".." components.
func isSafePath(name string) bool {
	if path.IsAbs(name) || strings.HasPrefix(name, `\`) {
		return false
	}
	return !slices.Contains(strings.Split(strings.ReplaceAll(name, `\`, "/"), "/"), "..")
}
