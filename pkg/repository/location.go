package repository

import (
	"archive/zip"
	"bytes"
	"io"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/pkg/errors"
	"github.com/pseudomuto/dbmaint/pkg/consts"
	"github.com/pseudomuto/dbmaint/pkg/script"
	"github.com/spf13/afero"
	"github.com/spf13/afero/zipfs"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/transform"
)

type (
	// Entry is one raw script found in a location.
	Entry struct {
		// Path is the slash-separated path relative to the location root.
		Path string

		// ModifiedAt is the last modification time in unix milliseconds.
		ModifiedAt int64

		// Open returns the decoded script content.
		Open script.Content
	}

	// Location is a source of scripts, such as a directory or an archive.
	Location interface {
		// Name identifies the location in errors and logs.
		Name() string

		// Entries lists the scripts held by the location.
		Entries() ([]Entry, error)
	}

	// LocationOptions control which files are scripts and how they are read.
	LocationOptions struct {
		// Fs is the filesystem holding the location. Defaults to the OS filesystem.
		Fs afero.Fs

		// Extensions are the file extensions, without dot, treated as scripts.
		// Defaults to consts.DefaultScriptExtensions.
		Extensions []string

		// Encoding is the IANA name of the script encoding. Defaults to UTF-8.
		Encoding string
	}

	// DirLocation reads scripts from a directory tree.
	DirLocation struct {
		fs       afero.Fs
		root     string
		exts     []string
		encoding encoding.Encoding
	}

	// ArchiveLocation reads scripts from a zip (or jar) archive.
	ArchiveLocation struct {
		fs       afero.Fs
		path     string
		exts     []string
		encoding encoding.Encoding
	}
)

// OpenLocation returns the location at path, an ArchiveLocation for .zip and
// .jar files and a DirLocation otherwise.
func OpenLocation(path string, opts LocationOptions) (Location, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".zip", ".jar":
		return NewArchiveLocation(path, opts)
	default:
		return NewDirLocation(path, opts)
	}
}

// OpenLocations opens every path with OpenLocation.
func OpenLocations(paths []string, opts LocationOptions) ([]Location, error) {
	locations := make([]Location, 0, len(paths))
	for _, p := range paths {
		loc, err := OpenLocation(p, opts)
		if err != nil {
			return nil, err
		}
		locations = append(locations, loc)
	}

	return locations, nil
}

// NewDirLocation creates a location for the directory root.
func NewDirLocation(root string, opts LocationOptions) (*DirLocation, error) {
	enc, err := lookupEncoding(opts.Encoding)
	if err != nil {
		return nil, err
	}

	return &DirLocation{
		fs:       opts.fs(),
		root:     root,
		exts:     opts.extensions(),
		encoding: enc,
	}, nil
}

func (l *DirLocation) Name() string { return l.root }

// Entries walks the directory in lexical order.
func (l *DirLocation) Entries() ([]Entry, error) {
	info, err := l.fs.Stat(l.root)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to stat script location %s", l.root)
	}
	if !info.IsDir() {
		return nil, errors.Errorf("script location %s is not a directory", l.root)
	}

	var entries []Entry
	err = afero.Walk(l.fs, l.root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if info.IsDir() || !hasExtension(p, l.exts) {
			return nil
		}

		rel, err := filepath.Rel(l.root, p)
		if err != nil {
			return errors.Wrapf(err, "failed to resolve %s", p)
		}

		file := p
		entries = append(entries, Entry{
			Path:       filepath.ToSlash(rel),
			ModifiedAt: info.ModTime().UnixMilli(),
			Open: func() (io.ReadCloser, error) {
				f, err := l.fs.Open(file)
				if err != nil {
					return nil, err
				}
				return decode(f, l.encoding), nil
			},
		})

		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read script location %s", l.root)
	}

	return entries, nil
}

// NewArchiveLocation creates a location for the archive at path.
func NewArchiveLocation(path string, opts LocationOptions) (*ArchiveLocation, error) {
	enc, err := lookupEncoding(opts.Encoding)
	if err != nil {
		return nil, err
	}

	return &ArchiveLocation{
		fs:       opts.fs(),
		path:     path,
		exts:     opts.extensions(),
		encoding: enc,
	}, nil
}

func (l *ArchiveLocation) Name() string { return l.path }

// Entries lists the archive members in name order.
func (l *ArchiveLocation) Entries() ([]Entry, error) {
	data, err := afero.ReadFile(l.fs, l.path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open script archive %s", l.path)
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read script archive %s", l.path)
	}

	zfs := zipfs.New(zr)

	var entries []Entry
	for _, zf := range zr.File {
		name := strings.TrimPrefix(path.Clean("/"+zf.Name), "/")
		if zf.FileInfo().IsDir() || !hasExtension(name, l.exts) {
			continue
		}

		entries = append(entries, Entry{
			Path:       name,
			ModifiedAt: zf.Modified.UnixMilli(),
			Open: func() (io.ReadCloser, error) {
				member, err := zfs.Open("/" + name)
				if err != nil {
					return nil, err
				}
				return decode(member, l.encoding), nil
			},
		})
	}

	slices.SortFunc(entries, func(a, b Entry) int { return strings.Compare(a.Path, b.Path) })
	return entries, nil
}

func (o LocationOptions) fs() afero.Fs {
	if o.Fs == nil {
		return afero.NewOsFs()
	}

	return o.Fs
}

func (o LocationOptions) extensions() []string {
	exts := o.Extensions
	if len(exts) == 0 {
		exts = consts.DefaultScriptExtensions
	}

	normalized := make([]string, len(exts))
	for i, ext := range exts {
		normalized[i] = strings.ToLower(strings.TrimPrefix(ext, "."))
	}

	return normalized
}

func hasExtension(name string, exts []string) bool {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(filepath.ToSlash(name)), "."))
	return ext != "" && slices.Contains(exts, ext)
}

func lookupEncoding(name string) (encoding.Encoding, error) {
	if name == "" {
		name = consts.DefaultEncoding
	}

	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil {
		return nil, errors.Wrapf(err, "unknown script encoding %s", name)
	}
	if enc == nil {
		return nil, errors.Errorf("unsupported script encoding %s", name)
	}

	return enc, nil
}

type decodedReader struct {
	io.Reader
	io.Closer
}

func decode(rc io.ReadCloser, enc encoding.Encoding) io.ReadCloser {
	return decodedReader{
		Reader: transform.NewReader(rc, enc.NewDecoder()),
		Closer: rc,
	}
}
