// Package archive walks stylesheets stored in zip archives.
package archive

import (
	"archive/zip"
	"fmt"
	"path"
	"strings"

	"golang.org/x/text/encoding"
)

// Entry describes a single file found in archive.
type Entry struct {
	// Archive is the path to archive passed to Walk.
	Archive string
	// Name is file path inside archive, decoded with forced code page when
	// file name is not marked as UTF-8.
	Name string
	// NameErr is set when forced decoding failed and Name is left as stored.
	NameErr error
	File    *zip.File
}

// WalkFunc is called for each file accepted by Walker. If an error is
// returned, processing stops.
type WalkFunc func(e *Entry) error

// Walker enumerates files in zip archives.
type Walker struct {
	// CodePage is used to decode non UTF-8 file names, could be nil.
	CodePage encoding.Encoding
	// Accept filters files by decoded name, nil accepts everything.
	Accept func(name string) bool
}

// Walk calls walkFn for every regular file in archive which name starts with
// prefix and is accepted by w. Entries with path traversal components ("..")
// or absolute paths fail the walk to prevent Zip Slip.
func (w *Walker) Walk(archive, prefix string, walkFn WalkFunc) error {
	r, err := zip.OpenReader(archive)
	if err != nil {
		if r != nil {
			// zip.ErrInsecurePath comes with usable reader
			r.Close()
		}
		return err
	}
	defer r.Close()

	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		e := &Entry{Archive: archive, Name: f.Name, File: f}
		if w.CodePage != nil && f.NonUTF8 {
			if n, err := w.CodePage.NewDecoder().String(f.Name); err == nil {
				e.Name = n
			} else {
				e.NameErr = err
			}
		}
		if !isSafePath(e.Name) {
			return fmt.Errorf("zip entry %q: unsafe path (absolute or contains path traversal)", e.Name)
		}
		if !strings.HasPrefix(e.Name, prefix) || (w.Accept != nil && !w.Accept(e.Name)) {
			continue
		}
		if err := walkFn(e); err != nil {
			return err
		}
	}
	return nil
}

func isSafePath(name string) bool {
	if path.IsAbs(name) || strings.HasPrefix(name, `\`) {
		return false
	}
	for _, part := range strings.Split(name, "/") {
		if part == ".." {
			return false
		}
	}
	return true
}
