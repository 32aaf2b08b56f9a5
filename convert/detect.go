package convert

import (
	"archive/zip"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"
)

// filetype needs only this much to recognize anything it knows about
const sniffLen = 262

func hasExt(name, ext string) bool {
	return strings.EqualFold(filepath.Ext(name), ext)
}

func readHead(r io.Reader) ([]byte, error) {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return head[:n], nil
}

func fileHead(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readHead(f)
}

// isArchiveFile checks if file is zip archive.
func isArchiveFile(path string) (bool, error) {
	if !hasExt(path, ".zip") {
		return false, nil
	}
	head, err := fileHead(path)
	if err != nil {
		return false, err
	}
	return filetype.Is(head, "zip"), nil
}

// looksLikeStylesheet rejects content recognized as any known binary format.
// Stylesheets are text and have no signature of their own.
func looksLikeStylesheet(head []byte) bool {
	if len(head) == 0 {
		return true
	}
	kind, err := filetype.Match(head)
	return err == nil && kind == filetype.Unknown
}

// isStyleFile checks if file could be processed as stylesheet.
func isStyleFile(path string) (bool, error) {
	if !hasExt(path, ".css") {
		return false, nil
	}
	head, err := fileHead(path)
	if err != nil {
		return false, err
	}
	return looksLikeStylesheet(head), nil
}

// isStyleInArchive checks if file in archive could be processed as stylesheet.
func isStyleInArchive(f *zip.File) (bool, error) {
	if !hasExt(f.Name, ".css") {
		return false, nil
	}
	r, err := f.Open()
	if err != nil {
		return false, err
	}
	defer r.Close()

	head, err := readHead(r)
	if err != nil {
		return false, err
	}
	return looksLikeStylesheet(head), nil
}
