package script

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"io"
	"slices"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/pseudomuto/dbmaint/pkg/consts"
)

type (
	// Kind is the sequencing kind of a script.
	Kind int

	// Content opens the decoded text of a script. It may be called more than
	// once.
	Content func() (io.ReadCloser, error)

	// Options control how script paths are interpreted.
	Options struct {
		// PostProcessingDir is the top-level directory holding postprocessing
		// scripts. Defaults to consts.DefaultPostProcessingDir.
		PostProcessingDir string

		// PatchQualifiers mark scripts that may be executed out of sequence.
		// Defaults to consts.DefaultPatchQualifier.
		PatchQualifiers []string
	}

	// Script is one versioned SQL script.
	//
	// Scripts are immutable once created. The content is only read when the
	// checksum or the statements are needed, and the checksum is cached.
	//
	// Example usage:
	//
	//	s, err := script.New("01_release/02_#patch_add_email.sql", modifiedAt, content, script.Options{})
	//	if err != nil {
	//		return err
	//	}
	//
	//	fmt.Println(s.Index)    // 1.2
	//	fmt.Println(s.IsPatch()) // true
	Script struct {
		// Name is the slash-separated path relative to the script location.
		Name string

		// Kind is the sequencing kind derived from the path.
		Kind Kind

		// Index is the index path formed by the directory and file indexes.
		Index Index

		// Qualifiers are the lower-cased #qualifiers found on the path.
		Qualifiers []string

		// TargetDatabase is the @database found on the path, empty for the
		// default database.
		TargetDatabase string

		// ModifiedAt is the last modification time in unix milliseconds.
		ModifiedAt int64

		patch    bool
		content  Content
		once     sync.Once
		checksum string
		err      error
	}
)

const (
	// Indexed scripts run once, in index order.
	Indexed Kind = iota
	// Repeatable scripts have no index and run again whenever they change.
	Repeatable
	// PostProcessing scripts run after all other scripts.
	PostProcessing
)

func (k Kind) String() string {
	switch k {
	case Indexed:
		return "indexed"
	case Repeatable:
		return "repeatable"
	case PostProcessing:
		return "postprocessing"
	default:
		return "unknown"
	}
}

// New creates a script from its location-relative path.
func New(name string, modifiedAt int64, content Content, opts Options) (*Script, error) {
	name = strings.Trim(strings.ReplaceAll(name, "\\", "/"), "/")

	parsed, err := parseName(name)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse script name %s", name)
	}

	s := &Script{
		Name:           name,
		Kind:           Repeatable,
		Index:          parsed.Index,
		Qualifiers:     parsed.Qualifiers,
		TargetDatabase: parsed.TargetDatabase,
		ModifiedAt:     modifiedAt,
		content:        content,
	}

	switch {
	case isPostProcessing(name, opts.postProcessingDir()):
		s.Kind = PostProcessing
	case parsed.FileIndexed:
		s.Kind = Indexed
	}

	for _, q := range opts.patchQualifiers() {
		if s.HasQualifier(q) {
			s.patch = true
			break
		}
	}

	return s, nil
}

// FromString creates a script holding the given content.
func FromString(name string, modifiedAt int64, content string, opts Options) (*Script, error) {
	return New(name, modifiedAt, StaticContent([]byte(content)), opts)
}

// StaticContent returns a Content serving data.
func StaticContent(data []byte) Content {
	return func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}
}

// IsPatch reports whether the script carries a patch qualifier.
func (s *Script) IsPatch() bool {
	return s.patch
}

// HasQualifier reports whether the script carries the qualifier q.
func (s *Script) HasQualifier(q string) bool {
	return slices.Contains(s.Qualifiers, strings.ToLower(q))
}

// Open returns a reader over the script content.
func (s *Script) Open() (io.ReadCloser, error) {
	if s.content == nil {
		return nil, errors.Errorf("script %s has no content", s.Name)
	}

	r, err := s.content()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open script %s", s.Name)
	}

	return r, nil
}

// Checksum returns the h1 checksum of the script content. The content is read
// once; later calls return the cached value.
func (s *Script) Checksum() (string, error) {
	s.once.Do(func() {
		r, err := s.Open()
		if err != nil {
			s.err = err
			return
		}
		defer func() { _ = r.Close() }()

		hash := sha256.New()
		if _, err := io.Copy(hash, r); err != nil {
			s.err = errors.Wrapf(err, "failed to read script %s", s.Name)
			return
		}

		s.checksum = "h1:" + base64.StdEncoding.EncodeToString(hash.Sum(nil))
	})

	return s.checksum, s.err
}

// Compare orders scripts in catalog order: indexed scripts by index then
// name, repeatable scripts by name, and postprocessing scripts last by index
// then name.
func Compare(a, b *Script) int {
	if a.Kind != b.Kind {
		return int(a.Kind) - int(b.Kind)
	}

	if a.Kind != Repeatable {
		if c := a.Index.Compare(b.Index); c != 0 {
			return c
		}
	}

	return strings.Compare(a.Name, b.Name)
}

func (o Options) postProcessingDir() string {
	if o.PostProcessingDir == "" {
		return consts.DefaultPostProcessingDir
	}

	return o.PostProcessingDir
}

func (o Options) patchQualifiers() []string {
	if len(o.PatchQualifiers) == 0 {
		return []string{consts.DefaultPatchQualifier}
	}

	return o.PatchQualifiers
}

func isPostProcessing(name, dir string) bool {
	first, _, found := strings.Cut(name, "/")
	return found && strings.EqualFold(first, dir)
}
