// writer.go: Atomic persistence of source documents
//
// Copyright (c) 2025 AGILira
// Series: AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package datasources

import (
	"bytes"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/agilira/go-errors"
)

// DocumentWriter saves exported sources to one file. Unchanged content is
// not rewritten.
type DocumentWriter struct {
	path     string
	format   DocumentFormat
	audit    *AuditLogger
	mu       sync.Mutex
	lastHash uint64
}

// NewDocumentWriter creates a writer for path. The format is detected from
// the extension when format is FormatUnknown.
func NewDocumentWriter(path string, format DocumentFormat, audit *AuditLogger) (*DocumentWriter, error) {
	if err := validateSecurePath(path); err != nil {
		return nil, err
	}
	if format == FormatUnknown {
		format = DetectFormat(path)
	}
	if format == FormatUnknown {
		return nil, errors.New(ErrCodeUnsupportedFormat, "cannot detect document format").
			WithContext("path", path)
	}
	return &DocumentWriter{path: path, format: format, audit: audit}, nil
}

// Path returns the target file
func (w *DocumentWriter) Path() string {
	return w.path
}

// Write encodes sources and replaces the file atomically. It reports
// whether the file was written.
func (w *DocumentWriter) Write(sources []SourceProps) (bool, error) {
	data, err := MarshalSources(sources, w.format)
	if err != nil {
		return false, err
	}

	h := fnv.New64a()
	_, _ = h.Write(data)
	sum := h.Sum64()

	w.mu.Lock()
	defer w.mu.Unlock()

	if sum == w.lastHash {
		if existing, err := os.ReadFile(w.path); err == nil && bytes.Equal(existing, data) {
			return false, nil
		}
	}

	if err := atomicWriteFile(w.path, data, 0644); err != nil {
		return false, err
	}
	w.lastHash = sum

	w.audit.Log(AuditInfo, "document_written", "writer", w.path, nil, len(sources), nil)
	return true, nil
}

// WriteSources writes sources to path in one shot
func WriteSources(path string, format DocumentFormat, sources []SourceProps) error {
	w, err := NewDocumentWriter(path, format, nil)
	if err != nil {
		return err
	}
	_, err = w.Write(sources)
	return err
}

// atomicWriteFile writes through a temporary file in the target directory
// and renames it over path
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tempPath := filepath.Join(dir, "."+filepath.Base(path)+".tmp."+fmt.Sprintf("%d", time.Now().UnixNano()))

	if err := os.WriteFile(tempPath, data, perm); err != nil {
		return errors.Wrap(err, ErrCodeIOError, "failed to write temp file").WithContext("path", tempPath)
	}

	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return errors.Wrap(err, ErrCodeIOError, "failed to rename temp file").WithContext("path", path)
	}
	return nil
}

// ReadSources reads and parses a source document. The format is detected
// from the extension when format is FormatUnknown.
func ReadSources(path string, format DocumentFormat) ([]SourceProps, error) {
	if err := validateSecurePath(path); err != nil {
		return nil, err
	}
	if format == FormatUnknown {
		format = DetectFormat(path)
	}

	data, err := os.ReadFile(path) // #nosec G304 -- path validated above
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(err, ErrCodeFileNotFound, "source document does not exist").
				WithContext("path", path)
		}
		return nil, errors.Wrap(err, ErrCodeIOError, "failed to read source document").
			WithContext("path", path)
	}

	return ParseSources(data, format)
}
