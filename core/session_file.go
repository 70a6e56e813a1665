package core

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gorilla/securecookie"
	"golang.org/x/crypto/hkdf"
)

// FilePersister stores the session in a single sealed file. The payload is
// JSON, signed and encrypted with keys derived from the configured secret, so
// a copied file is useless without that secret.
type FilePersister struct {
	path  string
	codec *securecookie.SecureCookie
	mu    sync.Mutex // serializes writers on the same file
}

// NewFilePersister prepares a persister at path. secret must not be empty.
func NewFilePersister(path, secret string) (*FilePersister, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("empty session file path")
	}
	if secret == "" {
		return nil, errors.New("empty session secret")
	}
	hashKey, err := deriveKey(secret, "kakariko session hash")
	if err != nil {
		return nil, err
	}
	blockKey, err := deriveKey(secret, "kakariko session block")
	if err != nil {
		return nil, err
	}
	codec := securecookie.New(hashKey, blockKey).
		SetSerializer(securecookie.JSONEncoder{}).
		MaxAge(0).
		MaxLength(0)
	return &FilePersister{path: path, codec: codec}, nil
}

func deriveKey(secret, info string) ([]byte, error) {
	key := make([]byte, 32)
	r := hkdf.New(sha256.New, []byte(secret), []byte(SessionStorageKey), []byte(info))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("derive session key: %w", err)
	}
	return key, nil
}

// Load reads and unseals the stored session.
func (p *FilePersister) Load(ctx context.Context) (Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	raw, err := os.ReadFile(p.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Session{}, ErrNoSession
		}
		return Session{}, fmt.Errorf("read session file %s: %w", p.path, err)
	}
	var sess Session
	if err := p.codec.Decode(SessionStorageKey, strings.TrimSpace(string(raw)), &sess); err != nil {
		return Session{}, fmt.Errorf("unseal session file %s: %w", p.path, err)
	}
	return sess, nil
}

// Save writes the session atomically: temp file first, then rename.
func (p *FilePersister) Save(ctx context.Context, s Session) error {
	sealed, err := p.codec.Encode(SessionStorageKey, s)
	if err != nil {
		return fmt.Errorf("seal session: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(p.path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	tempPath := p.path + ".tmp"
	if err := os.WriteFile(tempPath, []byte(sealed+"\n"), 0o600); err != nil {
		return fmt.Errorf("write session file: %w", err)
	}
	return os.Rename(tempPath, p.path)
}

// Remove deletes the session file; a missing file is not an error.
func (p *FilePersister) Remove(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := os.Remove(p.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove session file: %w", err)
	}
	return nil
}
