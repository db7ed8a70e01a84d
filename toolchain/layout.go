package toolchain

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Artifact file extensions.
const (
	intermediateExt = ".ihx"
	imageExt        = ".hex"
	manifestExt     = ".flint"
)

// sideExtensions are the listing, symbol and object files SDCC leaves next
// to the source for every compilation unit.
var sideExtensions = []string{
	".adb", ".asm", ".cdb", ".lk", ".lst", ".map", ".mem", ".omf", ".rel", ".rst", ".sym",
}

// Layout names every file the pipeline derives from one source.
// All names are deterministic and live alongside the source.
type Layout struct {
	// Source is the firmware source path as given.
	Source string
	// Dir is the directory containing the source.
	Dir string
	// Base is the source file name without its extension.
	Base string
}

// NewLayout derives the artifact layout for a source path.
func NewLayout(source string) (Layout, error) {
	if source == "" {
		return Layout{}, errors.New("source path is empty")
	}
	name := filepath.Base(source)
	base := strings.TrimSuffix(name, filepath.Ext(name))
	if base == "" || base == "." {
		return Layout{}, fmt.Errorf("cannot derive artifact names from source %q", source)
	}
	return Layout{
		Source: source,
		Dir:    filepath.Dir(source),
		Base:   base,
	}, nil
}

func (l Layout) path(ext string) string {
	return filepath.Join(l.Dir, l.Base+ext)
}

// Intermediate is the compiler's Intel HEX output (<base>.ihx).
func (l Layout) Intermediate() string { return l.path(intermediateExt) }

// Image is the packaged, flashable image (<base>.hex).
func (l Layout) Image() string { return l.path(imageExt) }

// Manifest is the build record written next to the image (<base>.flint).
func (l Layout) Manifest() string { return l.path(manifestExt) }

// Generated returns exactly the set of files `clean` removes: the
// intermediate, the image, the manifest and the compiler side files.
// The source itself is never part of the set.
func (l Layout) Generated() []string {
	files := []string{l.Intermediate(), l.Image(), l.Manifest()}
	for _, ext := range sideExtensions {
		files = append(files, l.path(ext))
	}
	return files
}
