package artifact

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"reel-recipe-go/internal/logger"
	"reel-recipe-go/internal/shortcode"
)

// ErrUnsafeIdentifier rejects identifiers that would name a file outside the
// output directory.
var ErrUnsafeIdentifier = errors.New("identifier is not a valid file name")

// Kind tags which of the two artifact variants a run produced.
type Kind string

const (
	KindDocument Kind = "document"
	KindRaw      Kind = "raw"
)

const (
	documentExt = ".json"
	rawSuffix   = "_raw.txt"
)

// Artifact is the persisted result of one run: either the canonical document
// or the verbatim raw text, never both.
type Artifact struct {
	Kind     Kind
	Path     string
	Document *Document
	Raw      string
	// ParseErr explains why a raw artifact was written.
	ParseErr error
}

// IsDocument reports whether the canonical variant was written.
func (a Artifact) IsDocument() bool { return a.Kind == KindDocument }

// Persister writes generated text as <identifier>.json when it parses and as
// <identifier>_raw.txt otherwise.
type Persister struct {
	dir        string
	outputPath string
	writeFile  func(name string, data []byte) error
	log        *logrus.Entry
}

// Option customizes a Persister.
type Option func(*Persister)

// WithOutputPath overrides the canonical artifact path. The raw fallback is
// written next to it as <stem>_raw.txt.
func WithOutputPath(path string) Option {
	return func(p *Persister) {
		p.outputPath = strings.TrimSpace(path)
	}
}

// WithLogger overrides the default logger.
func WithLogger(log *logrus.Entry) Option {
	return func(p *Persister) {
		if log != nil {
			p.log = log
		}
	}
}

// WithWriteFile overrides how files are written (useful for tests).
func WithWriteFile(fn func(name string, data []byte) error) Option {
	return func(p *Persister) {
		if fn != nil {
			p.writeFile = fn
		}
	}
}

// NewPersister writes artifacts into dir ("" means the working directory).
func NewPersister(dir string, opts ...Option) *Persister {
	p := &Persister{
		dir:       dir,
		writeFile: writeFileAtomic,
		log:       logger.New().WithField("component", "artifact"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// CanonicalPath is where the structured document for identifier goes.
func (p *Persister) CanonicalPath(identifier string) string {
	if p.outputPath != "" {
		return p.outputPath
	}
	return filepath.Join(p.dir, identifier+documentExt)
}

// RawPath is where the raw fallback for identifier goes.
func (p *Persister) RawPath(identifier string) string {
	if p.outputPath != "" {
		return strings.TrimSuffix(p.outputPath, filepath.Ext(p.outputPath)) + rawSuffix
	}
	return filepath.Join(p.dir, identifier+rawSuffix)
}

// Persist validates raw as JSON and writes exactly one artifact. A format
// failure is recovered through the raw fallback; only write errors and unsafe
// identifiers are returned.
func (p *Persister) Persist(raw, identifier string) (Artifact, error) {
	if p.outputPath == "" && !shortcode.IsFileSafe(identifier) {
		return Artifact{}, fmt.Errorf("%w: %q", ErrUnsafeIdentifier, identifier)
	}
	doc, parseErr := Parse(raw)
	if parseErr == nil {
		data, err := doc.Canonical()
		if err != nil {
			return Artifact{}, err
		}
		path := p.CanonicalPath(identifier)
		if err := p.writeFile(path, data); err != nil {
			return Artifact{}, fmt.Errorf("write recipe %s: %w", path, err)
		}
		p.log.WithField("path", path).Info("recipe saved")
		return Artifact{Kind: KindDocument, Path: path, Document: doc}, nil
	}

	p.log.WithField("error", parseErr.Error()).Warn("model output is not valid JSON, saving raw text")
	path := p.RawPath(identifier)
	if err := p.writeFile(path, []byte(raw)); err != nil {
		return Artifact{}, fmt.Errorf("write raw output %s: %w", path, err)
	}
	p.log.WithField("path", path).Info("raw output saved")
	return Artifact{Kind: KindRaw, Path: path, Raw: raw, ParseErr: parseErr}, nil
}

// writeFileAtomic writes to a temp file in the target directory and renames it into place.
func writeFileAtomic(name string, data []byte) error {
	dir := filepath.Dir(name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(name)+".*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, name)
}
