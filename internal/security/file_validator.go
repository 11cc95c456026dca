package security

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	wsderrors "github.com/standardbeagle/wsd/internal/errors"
)

// FileValidator checks theme files before they are handed to the PHP parser.
// Uploads folders in themes regularly contain images or archives renamed to .php.
type FileValidator struct {
	MaxFileSize int64 // 0 disables the size limit
	HeaderSize  int64 // bytes sniffed for binary content and PHP markers
}

func NewFileValidator(maxFileSize int64) *FileValidator {
	return &FileValidator{
		MaxFileSize: maxFileSize,
		HeaderSize:  64 * 1024,
	}
}

// ValidatePHPFile stats path and sniffs its header
func (fv *FileValidator) ValidatePHPFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return wsderrors.NewFileError("stat", path, err)
	}
	if info.IsDir() {
		return wsderrors.NewFileError("stat", path, errors.New("is a directory"))
	}
	if fv.MaxFileSize > 0 && info.Size() > fv.MaxFileSize {
		fe := wsderrors.NewFileError("stat", path,
			fmt.Errorf("file is %d bytes, limit is %d", info.Size(), fv.MaxFileSize))
		fe.Type = wsderrors.ErrorTypeFileTooLarge
		return fe
	}

	f, err := os.Open(path)
	if err != nil {
		return wsderrors.NewFileError("open", path, err)
	}
	defer f.Close()

	header := make([]byte, fv.HeaderSize)
	n, err := io.ReadFull(f, header)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return wsderrors.NewFileError("read", path, err)
	}
	return fv.ValidateContent(header[:n])
}

// ValidateContent applies the header checks to in-memory source
func (fv *FileValidator) ValidateContent(header []byte) error {
	if len(header) == 0 {
		return nil
	}
	if fv.HeaderSize > 0 && int64(len(header)) > fv.HeaderSize {
		header = header[:fv.HeaderSize]
	}
	if isBinaryData(header) {
		return errors.New("file appears to be binary (.php extension on binary file)")
	}
	return validatePHPMarkers(header)
}

// isBinaryData reports more than 30% control characters
func isBinaryData(data []byte) bool {
	if len(data) == 0 {
		return false
	}

	nonPrintable := 0
	for _, b := range data {
		if b < 9 || (b > 13 && b < 32) || b == 127 {
			nonPrintable++
		}
	}

	ratio := float64(nonPrintable) / float64(len(data))
	return ratio > 0.3
}

func validatePHPMarkers(header []byte) error {
	phpPatterns := [][]byte{
		[]byte("<?php"),
		[]byte("<?="),
		[]byte("<?\n"),
	}

	for _, pattern := range phpPatterns {
		if bytes.Contains(header, pattern) {
			return nil
		}
	}

	return errors.New("no PHP open tag found")
}

// ResolveInTheme joins rel onto themeDir and refuses results outside it.
// Symlinks are resolved when the target exists so a link cannot point out of the theme.
func ResolveInTheme(themeDir, rel string) (string, error) {
	if rel == "" {
		return "", wsderrors.NewFileError("resolve", rel, errors.New("empty path"))
	}
	root, err := filepath.Abs(themeDir)
	if err != nil {
		return "", wsderrors.NewFileError("resolve", themeDir, err)
	}

	rel = filepath.FromSlash(strings.TrimSpace(rel))
	if filepath.IsAbs(rel) {
		return "", wsderrors.NewFileError("resolve", rel, wsderrors.ErrOutsideTheme)
	}

	candidate := filepath.Join(root, rel)
	if !within(root, candidate) {
		return "", wsderrors.NewFileError("resolve", rel, wsderrors.ErrOutsideTheme)
	}

	if resolved, err := filepath.EvalSymlinks(candidate); err == nil {
		realRoot, rerr := filepath.EvalSymlinks(root)
		if rerr != nil {
			realRoot = root
		}
		if !within(realRoot, resolved) {
			return "", wsderrors.NewFileError("resolve", rel, wsderrors.ErrOutsideTheme)
		}
	}

	return candidate, nil
}

func within(root, path string) bool {
	r, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return r != ".." && !strings.HasPrefix(r, ".."+string(filepath.Separator))
}
