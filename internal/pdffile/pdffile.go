// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pdffile validates the file chosen for upload. Only PDF files are
// accepted; anything else clears the current selection. There is no size
// ceiling on the client side.
package pdffile

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/pdiddy/beo-intake/pkg/types"
)

// sniffLen is how many leading bytes content detection looks at.
const sniffLen = 512

// File is a candidate for upload. It satisfies types.Payload.
type File struct {
	name        string
	contentType string
	size        int64
	open        func() (io.ReadCloser, error)
}

// New builds a File from its parts. The open function must return a new
// reader from the start of the content on every call.
func New(name, contentType string, size int64, open func() (io.ReadCloser, error)) *File {
	return &File{
		name:        name,
		contentType: normalizeType(contentType),
		size:        size,
		open:        open,
	}
}

// FromBytes builds an in-memory File.
func FromBytes(name, contentType string, data []byte) *File {
	return New(name, contentType, int64(len(data)), func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	})
}

// FromPath builds a File backed by a file on disk. The MIME type comes from
// content sniffing, falling back to the file extension only when sniffing
// finds nothing more specific than a byte stream.
func FromPath(path string) (*File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}

	ct, err := detectType(path)
	if err != nil {
		return nil, err
	}

	return New(filepath.Base(path), ct, info.Size(), func() (io.ReadCloser, error) {
		return os.Open(path)
	}), nil
}

func detectType(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}

	ct := normalizeType(http.DetectContentType(head[:n]))
	if ct == "application/octet-stream" {
		if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); byExt != "" {
			ct = normalizeType(byExt)
		}
	}
	return ct, nil
}

// normalizeType strips parameters and lower-cases a media type.
func normalizeType(ct string) string {
	if mt, _, err := mime.ParseMediaType(ct); err == nil {
		return mt
	}
	return strings.ToLower(strings.TrimSpace(ct))
}

func (f *File) FileName() string    { return f.name }
func (f *File) ContentType() string { return f.contentType }
func (f *File) Size() int64         { return f.size }

// Open returns a reader over the file content.
func (f *File) Open() (io.ReadCloser, error) {
	if f.open == nil {
		return nil, fmt.Errorf("file %q has no content", f.name)
	}
	return f.open()
}

// IsPDF reports whether f declares the PDF media type.
func IsPDF(f *File) bool {
	return f != nil && f.contentType == types.PDFContentType
}

// Selector holds the current file selection for one form instance.
type Selector struct {
	mu       sync.Mutex
	selected *File
}

// Select replaces the current selection with candidate when it is a PDF and
// returns it. Any other candidate, including nil, clears the selection and
// returns nil.
func (s *Selector) Select(candidate *File) *File {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !IsPDF(candidate) {
		s.selected = nil
		return nil
	}
	s.selected = candidate
	return candidate
}

// Selected returns the current selection, or nil.
func (s *Selector) Selected() *File {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

// Clear drops the current selection.
func (s *Selector) Clear() {
	s.mu.Lock()
	s.selected = nil
	s.mu.Unlock()
}

var sizeUnits = []string{"Bytes", "KB", "MB", "GB"}

// FormatSize renders a byte count with base-1024 units, using the largest
// unit whose scaled value is at least 1 and rounding to two decimals.
// Zero (and anything negative) is "0 Bytes".
func FormatSize(n int64) string {
	if n <= 0 {
		return "0 Bytes"
	}

	v := float64(n)
	i := 0
	for v >= 1024 && i < len(sizeUnits)-1 {
		v /= 1024
		i++
	}
	rounded := math.Round(v*100) / 100
	return strconv.FormatFloat(rounded, 'f', -1, 64) + " " + sizeUnits[i]
}
