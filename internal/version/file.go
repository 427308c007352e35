package version

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
)

var versionPattern = regexp.MustCompile(`__version__\s*=\s*"(.+?)"`)

var (
	ErrFileNotFound    = errors.New("version file not found")
	ErrPatternNotFound = errors.New("version pattern not found")
)

// File is a version declaration file containing a line such as
// __version__ = "1.2.3".
type File struct {
	Path string
}

func NewFile(path string) *File {
	return &File{Path: path}
}

// Read returns the declared version string as written in the file.
func (f *File) Read() (string, error) {
	content, err := os.ReadFile(f.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrFileNotFound, f.Path)
		}
		return "", fmt.Errorf("failed to read %s: %w", f.Path, err)
	}

	m := versionPattern.FindSubmatch(content)
	if m == nil {
		return "", fmt.Errorf("%w in %s", ErrPatternNotFound, f.Path)
	}
	return string(m[1]), nil
}

// Write replaces the file content with the declaration for v.
func (f *File) Write(v string) error {
	if dir := filepath.Dir(f.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(f.Path, []byte(Declaration(v)), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", f.Path, err)
	}
	return nil
}

// Declaration is the exact file content written for v.
func Declaration(v string) string {
	return fmt.Sprintf("__version__ = %q\n", v)
}
