package kv

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
)

var _ Store = (*File)(nil)

var validKey = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// FileConfig configures a File store.
type FileConfig struct {
	// Dir holds one file per key. It is created on first use.
	Dir string
	// Compress stores values gzip-compressed with a ".json.gz" suffix.
	Compress bool
}

// File is a Store keeping each key in its own file under a directory.
// Writes go to a temporary file first and are renamed into place, so a
// crash never leaves a half-written value behind.
type File struct {
	dir      string
	compress bool
	mu       sync.Mutex
}

// NewFile returns a File store rooted at cfg.Dir.
func NewFile(cfg FileConfig) (*File, error) {
	if cfg.Dir == "" {
		return nil, errors.New("storage dir is required")
	}
	if err := os.MkdirAll(cfg.Dir, 0o700); err != nil {
		return nil, errors.Wrap(err, "create storage dir")
	}
	return &File{dir: cfg.Dir, compress: cfg.Compress}, nil
}

func (f *File) path(key string) (string, error) {
	if !validKey.MatchString(key) {
		return "", errors.Errorf("invalid key %q", key)
	}
	name := key + ".json"
	if f.compress {
		name += ".gz"
	}
	return filepath.Join(f.dir, name), nil
}

func (f *File) Get(_ context.Context, key string) ([]byte, error) {
	p, err := f.path(key)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	raw, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrapf(err, "read %s", p)
	}
	if !f.compress {
		return raw, nil
	}

	gz, err := pgzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, errors.Wrapf(err, "open gzip %s", p)
	}
	defer func() { _ = gz.Close() }()

	data, err := io.ReadAll(gz)
	if err != nil {
		return nil, errors.Wrapf(err, "decompress %s", p)
	}
	return data, nil
}

func (f *File) Set(_ context.Context, key string, value []byte) error {
	p, err := f.path(key)
	if err != nil {
		return err
	}

	data := value
	if f.compress {
		var buf bytes.Buffer
		gz := pgzip.NewWriter(&buf)
		if _, err := gz.Write(value); err != nil {
			return errors.Wrap(err, "compress")
		}
		if err := gz.Close(); err != nil {
			return errors.Wrap(err, "compress")
		}
		data = buf.Bytes()
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	tmp, err := os.CreateTemp(f.dir, "."+key+"-*")
	if err != nil {
		return errors.Wrap(err, "create temp file")
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return errors.Wrapf(err, "write %s", tmp.Name())
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "close %s", tmp.Name())
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		return errors.Wrapf(err, "rename into %s", p)
	}
	return nil
}

func (f *File) Delete(_ context.Context, key string) error {
	p, err := f.path(key)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return errors.Wrapf(err, "remove %s", p)
	}
	return nil
}

// Ping checks that the storage directory is still accessible.
func (f *File) Ping(_ context.Context) error {
	if _, err := os.Stat(f.dir); err != nil {
		return errors.Wrap(err, "stat storage dir")
	}
	return nil
}
