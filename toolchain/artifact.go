package toolchain

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/pithecene-io/flint/iox"
)

// manifestVersion is bumped when the manifest encoding changes.
const manifestVersion = 1

// SourceID identifies the exact source content an artifact was built from.
type SourceID struct {
	Path    string    `msgpack:"path" json:"path" yaml:"path"`
	ModTime time.Time `msgpack:"mod_time" json:"mod_time" yaml:"mod_time"`
	Digest  string    `msgpack:"digest" json:"digest" yaml:"digest"`
}

// Intermediate is the compile stage's output, bound to its source.
type Intermediate struct {
	Source SourceID
	Path   string
	Digest string
}

// Artifact is a flashable image produced by a successful build.
type Artifact struct {
	Source           SourceID  `msgpack:"source" json:"source" yaml:"source"`
	IntermediatePath string    `msgpack:"intermediate_path" json:"intermediate_path" yaml:"intermediate_path"`
	ImagePath        string    `msgpack:"image_path" json:"image_path" yaml:"image_path"`
	ImageDigest      string    `msgpack:"image_digest" json:"image_digest" yaml:"image_digest"`
	ImageSize        int64     `msgpack:"image_size" json:"image_size" yaml:"image_size"`
	BuiltAt          time.Time `msgpack:"built_at" json:"built_at" yaml:"built_at"`
}

// Verify checks that the source is unchanged since the build and that the
// image on disk is the one the build produced.
func (a *Artifact) Verify() error {
	if a == nil {
		return ErrNoArtifact
	}
	srcDigest, err := digestFile(a.Source.Path)
	if err != nil {
		return fmt.Errorf("%w: cannot read source %s: %v", ErrStaleArtifact, a.Source.Path, err)
	}
	if srcDigest != a.Source.Digest {
		return fmt.Errorf("%w: %s changed since it was built; rebuild first", ErrStaleArtifact, a.Source.Path)
	}
	imgDigest, err := digestFile(a.ImagePath)
	if err != nil {
		return fmt.Errorf("%w: cannot read image %s: %v", ErrStaleArtifact, a.ImagePath, err)
	}
	if imgDigest != a.ImageDigest {
		return fmt.Errorf("%w: %s was modified after the build", ErrStaleArtifact, a.ImagePath)
	}
	return nil
}

// Identify reads a source file's identity.
func Identify(path string) (SourceID, error) {
	info, err := os.Stat(path)
	if err != nil {
		return SourceID{}, err
	}
	if info.IsDir() {
		return SourceID{}, fmt.Errorf("%s is a directory", path)
	}
	digest, err := digestFile(path)
	if err != nil {
		return SourceID{}, err
	}
	return SourceID{Path: path, ModTime: info.ModTime().UTC(), Digest: digest}, nil
}

// digestFile returns the hex SHA-256 of a file's content.
func digestFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer iox.DiscardClose(f)

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// manifest is the on-disk build record.
type manifest struct {
	Version  int      `msgpack:"version"`
	Artifact Artifact `msgpack:"artifact"`
}

// writeManifest persists the artifact record atomically.
func writeManifest(path string, a *Artifact) error {
	data, err := msgpack.Marshal(&manifest{Version: manifestVersion, Artifact: *a})
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	return iox.WriteFileAtomic(path, data)
}

// LoadArtifact reads the build manifest for a layout. It does not verify
// the artifact; call Verify before trusting it.
func LoadArtifact(l Layout) (*Artifact, error) {
	data, err := os.ReadFile(l.Manifest())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w for %s (run `flint build` first)", ErrNoArtifact, l.Source)
		}
		return nil, fmt.Errorf("read manifest %s: %w", l.Manifest(), err)
	}

	var m manifest
	if err := msgpack.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: manifest %s is unreadable: %v", ErrNoArtifact, l.Manifest(), err)
	}
	if m.Version != manifestVersion {
		return nil, fmt.Errorf("%w: manifest %s has version %d, want %d", ErrNoArtifact, l.Manifest(), m.Version, manifestVersion)
	}
	return &m.Artifact, nil
}
