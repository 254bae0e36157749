package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-webdav"

	"github.com/felixgeelhaar/tally/internal/licensing/domain"
)

// WebDAVConfig locates the licence document on a WebDAV server.
type WebDAVConfig struct {
	URL      string
	Username string
	Password string
	// Path of the JSON document, e.g. /tally/licence.json
	Path    string
	Timeout time.Duration
}

// WebDAVStore keeps all keys in one JSON document on a WebDAV share, so
// several installations can share a licence. The document is cached after
// the first read until Reload; every write uploads the whole document.
type WebDAVStore struct {
	client *webdav.Client
	path   string

	mu     sync.Mutex
	values map[string]string
}

var _ domain.KeyValueStore = (*WebDAVStore)(nil)

// NewWebDAVStore creates a WebDAV-backed store.
func NewWebDAVStore(cfg WebDAVConfig) (*WebDAVStore, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("webdav url is required")
	}
	if cfg.Path == "" {
		cfg.Path = "/tally/licence.json"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	var httpClient webdav.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	if cfg.Username != "" {
		httpClient = webdav.HTTPClientWithBasicAuth(httpClient, cfg.Username, cfg.Password)
	}
	client, err := webdav.NewClient(httpClient, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to create webdav client: %w", err)
	}

	return &WebDAVStore{client: client, path: path.Clean("/" + cfg.Path)}, nil
}

func (s *WebDAVStore) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(ctx); err != nil {
		return "", false, err
	}
	value, ok := s.values[key]
	return value, ok, nil
}

func (s *WebDAVStore) Put(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(ctx); err != nil {
		return err
	}
	previous, existed := s.values[key]
	s.values[key] = value
	if err := s.upload(ctx); err != nil {
		if existed {
			s.values[key] = previous
		} else {
			delete(s.values, key)
		}
		return err
	}
	return nil
}

func (s *WebDAVStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(ctx); err != nil {
		return err
	}
	previous, existed := s.values[key]
	if !existed {
		return nil
	}
	delete(s.values, key)
	if err := s.upload(ctx); err != nil {
		s.values[key] = previous
		return err
	}
	return nil
}

func (s *WebDAVStore) Keys(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	return sortedKeys(s.values), nil
}

// Reload drops the cached document so the next access fetches it again.
func (s *WebDAVStore) Reload() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = nil
}

func (s *WebDAVStore) Close() error {
	return nil
}

func (s *WebDAVStore) ensureLoaded(ctx context.Context) error {
	if s.values != nil {
		return nil
	}

	exists, err := s.exists(ctx)
	if err != nil {
		return err
	}
	values := make(map[string]string)
	if exists {
		rc, err := s.client.Open(ctx, s.path)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", s.path, err)
		}
		defer rc.Close()

		data, err := io.ReadAll(rc)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", s.path, err)
		}
		if len(data) > 0 {
			if err := json.Unmarshal(data, &values); err != nil {
				return fmt.Errorf("failed to parse %s: %w", s.path, err)
			}
		}
	}
	s.values = values
	return nil
}

// exists lists the parent collection instead of probing the document, so a
// missing document is told apart from a server error.
func (s *WebDAVStore) exists(ctx context.Context) (bool, error) {
	dir := path.Dir(s.path)
	infos, err := s.client.ReadDir(ctx, dir, false)
	if err != nil {
		return false, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	for _, info := range infos {
		// hrefs carry the server base path in front of ours
		if !info.IsDir && strings.HasSuffix(path.Clean(info.Path), s.path) {
			return true, nil
		}
	}
	return false, nil
}

func (s *WebDAVStore) upload(ctx context.Context) error {
	data, err := json.MarshalIndent(s.values, "", "  ")
	if err != nil {
		return err
	}
	wc, err := s.client.Create(ctx, s.path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", s.path, err)
	}
	if _, err := wc.Write(data); err != nil {
		_ = wc.Close()
		return fmt.Errorf("failed to write %s: %w", s.path, err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to upload %s: %w", s.path, err)
	}
	return nil
}
