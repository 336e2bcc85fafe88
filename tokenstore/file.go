package tokenstore

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

const fileFormatVersion = 1

// FileOptions configures a FileBackend.
type FileOptions struct {
	// Passphrase enables sealing when non-empty.
	Passphrase string
	// KDF overrides DefaultKDFParams when non-zero.
	KDF KDFParams
}

type fileDocument struct {
	Version int               `json:"version"`
	Sealed  bool              `json:"sealed,omitempty"`
	Salt    string            `json:"salt,omitempty"`
	Entries map[string]string `json:"entries"`
}

// FileBackend stores all entries in one JSON document.
//
// Every mutation rewrites the document through a temp file and rename, so a
// crash leaves either the old or the new document.
type FileBackend struct {
	path string

	mu     sync.Mutex
	doc    *fileDocument
	sealer *Sealer
	opts   FileOptions
}

// NewFileBackend opens (or lazily creates) the document at path.
func NewFileBackend(path string, opts FileOptions) (*FileBackend, error) {
	if path == "" {
		return nil, errors.New("tokenstore: file path is required")
	}
	if opts.KDF == (KDFParams{}) {
		opts.KDF = DefaultKDFParams()
	}
	b := &FileBackend{path: path, opts: opts}

	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.loadLocked(); err != nil {
		return nil, err
	}
	return b, nil
}

// Path returns the document location.
func (b *FileBackend) Path() string { return b.path }

func (b *FileBackend) loadLocked() error {
	raw, err := os.ReadFile(b.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		doc := &fileDocument{Version: fileFormatVersion, Entries: map[string]string{}}
		if b.opts.Passphrase != "" {
			salt, err := NewSalt()
			if err != nil {
				return err
			}
			doc.Sealed = true
			doc.Salt = base64.StdEncoding.EncodeToString(salt)
		}
		b.doc = doc
	case err != nil:
		return fmt.Errorf("tokenstore: read %s: %w", b.path, err)
	default:
		var doc fileDocument
		if err := json.Unmarshal(raw, &doc); err != nil {
			return fmt.Errorf("tokenstore: decode %s: %w", b.path, err)
		}
		if doc.Version != fileFormatVersion {
			return fmt.Errorf("tokenstore: unsupported file version %d", doc.Version)
		}
		if doc.Entries == nil {
			doc.Entries = map[string]string{}
		}
		if doc.Sealed && b.opts.Passphrase == "" {
			return errors.New("tokenstore: file is sealed but no passphrase was given")
		}
		if !doc.Sealed && b.opts.Passphrase != "" && len(doc.Entries) > 0 {
			return errors.New("tokenstore: file is not sealed; refusing to mix plaintext and sealed entries")
		}
		if !doc.Sealed && b.opts.Passphrase != "" {
			salt, err := NewSalt()
			if err != nil {
				return err
			}
			doc.Sealed = true
			doc.Salt = base64.StdEncoding.EncodeToString(salt)
		}
		b.doc = &doc
	}

	if b.doc.Sealed {
		salt, err := base64.StdEncoding.DecodeString(b.doc.Salt)
		if err != nil {
			return fmt.Errorf("tokenstore: decode salt: %w", err)
		}
		sealer, err := NewSealer([]byte(b.opts.Passphrase), salt, b.opts.KDF)
		if err != nil {
			return err
		}
		b.sealer = sealer
	}
	return nil
}

func (b *FileBackend) Get(_ context.Context, key string) (string, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	v, ok := b.doc.Entries[key]
	if !ok {
		return "", false, nil
	}
	if b.sealer == nil {
		return v, true, nil
	}
	plain, err := b.sealer.Open(key, v)
	if err != nil {
		return "", false, err
	}
	return plain, true, nil
}

func (b *FileBackend) Set(_ context.Context, key, value string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	stored := value
	if b.sealer != nil {
		sealed, err := b.sealer.Seal(key, value)
		if err != nil {
			return err
		}
		stored = sealed
	}
	prev, had := b.doc.Entries[key]
	b.doc.Entries[key] = stored
	if err := b.flushLocked(); err != nil {
		if had {
			b.doc.Entries[key] = prev
		} else {
			delete(b.doc.Entries, key)
		}
		return err
	}
	return nil
}

func (b *FileBackend) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	prev, had := b.doc.Entries[key]
	if !had {
		return nil
	}
	delete(b.doc.Entries, key)
	if err := b.flushLocked(); err != nil {
		b.doc.Entries[key] = prev
		return err
	}
	return nil
}

func (b *FileBackend) flushLocked() error {
	data, err := json.MarshalIndent(b.doc, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(b.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".tokenstore-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, b.path)
}
