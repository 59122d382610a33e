package build

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// MaxSourceSize caps the size of a single source file.
const MaxSourceSize = 16 << 20

var (
	// ErrEmptyPath indicates a path argument was empty.
	ErrEmptyPath = errors.New("path is empty")
	// ErrPathContainsNUL indicates the path contains a NUL byte.
	ErrPathContainsNUL = errors.New("path contains NUL byte")
	// ErrNotRegular indicates the path is a directory, device, or other non-regular file.
	ErrNotRegular = errors.New("not a regular file")
	// ErrTooLarge indicates a source file exceeds MaxSourceSize.
	ErrTooLarge = errors.New("source file too large")
)

// ReadSource reads a source file after checking that it is a regular file
// no larger than MaxSourceSize.
func ReadSource(path string) ([]byte, error) {
	resolved, err := resolveSourcePath(path)
	if err != nil {
		return nil, fmt.Errorf("resolve path %q: %w", path, err)
	}

	//nolint:gosec // resolved is normalized and type checked in resolveSourcePath.
	file, err := os.Open(resolved)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", resolved, err)
	}
	defer file.Close()

	return readLimited(file, resolved)
}

// readLimited reads r up to MaxSourceSize; name is used in errors.
func readLimited(r io.Reader, name string) ([]byte, error) {
	content, err := io.ReadAll(io.LimitReader(r, MaxSourceSize+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}

	if len(content) > MaxSourceSize {
		return nil, fmt.Errorf("%w: %s", ErrTooLarge, name)
	}

	return content, nil
}

// ReadStdin reads a module from r with the same size cap as files.
func ReadStdin(r io.Reader) ([]byte, error) {
	return readLimited(r, "<stdin>")
}

func resolveSourcePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", ErrEmptyPath
	}

	if strings.ContainsRune(path, '\x00') {
		return "", fmt.Errorf("%w: %q", ErrPathContainsNUL, path)
	}

	absPath, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", path, err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", absPath, err)
	}

	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("%w: %s", ErrNotRegular, absPath)
	}

	if info.Size() > MaxSourceSize {
		return "", fmt.Errorf("%w: %s", ErrTooLarge, absPath)
	}

	return absPath, nil
}
