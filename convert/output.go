package convert

import (
	"os"
	"path/filepath"
	"strings"

	"scopecss/config"
	"scopecss/registry"
)

const badFileName = "_bad_file_name_"

// cleanFileName removes characters not allowed in file names on any of the
// supported platforms, so names are portable between them and into bundles.
func cleanFileName(in string) string {
	out := strings.TrimLeft(strings.Map(func(sym rune) rune {
		if sym < ' ' || strings.ContainsRune(`<>":/\|?*`+string(os.PathListSeparator), sym) {
			return -1
		}
		return sym
	}, in), ".")
	out = strings.TrimSpace(out)
	if len(out) == 0 {
		out = badFileName
	}
	return out
}

// splitPath breaks relative path using either separator, dropping empty and
// relative segments.
func splitPath(path string) []string {
	return strings.FieldsFunc(path, func(r rune) bool {
		return r == '/' || r == '\\' || r == os.PathSeparator
	})
}

func cleanRelPath(path string) string {
	segments := splitPath(path)
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		if s == "." || s == ".." {
			continue
		}
		parts = append(parts, cleanFileName(s))
	}
	if len(parts) == 0 {
		return badFileName
	}
	return filepath.Join(parts...)
}

// buildOutputName returns output path relative to destination for a
// stylesheet with source path "src" (relative to processed directory or
// archive). Directory structure is dropped when requested.
func buildOutputName(src string, noDirs bool) string {
	if noDirs {
		segments := splitPath(src)
		if len(segments) == 0 {
			return badFileName
		}
		return cleanFileName(segments[len(segments)-1])
	}
	return cleanRelPath(src)
}

// buildComponentOutputName expands output name template for a component.
// Template may produce subdirectories.
func buildComponentOutputName(v registry.Values, tmpl string) (string, error) {
	name, err := registry.Expand(config.NameTemplateFieldName, tmpl, v)
	if err != nil {
		return "", err
	}
	return cleanRelPath(name), nil
}
