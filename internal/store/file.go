package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/QRBulk/internal/render"
)

// FileStore keeps templates in a single JSON file. The file is read once at
// construction and rewritten after every mutation.
type FileStore struct {
	path  string
	limit int
	now   func() time.Time

	mu    sync.RWMutex
	items []Template
}

// NewFileStore opens or creates the store at path. A missing file is an
// empty store.
func NewFileStore(path string, limit int) (*FileStore, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	s := &FileStore{path: path, limit: limit, now: time.Now}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("read templates: %w", err)
	}

	if len(data) > 0 {
		if err := json.Unmarshal(data, &s.items); err != nil {
			return nil, fmt.Errorf("decode templates %s: %w", path, err)
		}
	}
	return s, nil
}

// List returns templates in creation order.
func (s *FileStore) List(ctx context.Context) ([]Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Template, len(s.items))
	copy(out, s.items)
	return out, nil
}

// Get returns one template.
func (s *FileStore) Get(ctx context.Context, id string) (Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if i := s.index(id); i >= 0 {
		return s.items[i], nil
	}
	return Template{}, ErrTemplateNotFound
}

// Create stores a new template unless the store is full.
func (s *FileStore) Create(ctx context.Context, name string, style render.Style) (Template, error) {
	name, err := cleanName(name)
	if err != nil {
		return Template{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.items) >= s.limit {
		return Template{}, fmt.Errorf("%w (%d)", ErrTemplateLimit, s.limit)
	}

	now := s.now().UTC()
	t := Template{
		ID:        uuid.NewString(),
		Name:      name,
		Style:     style,
		CreatedAt: now,
		UpdatedAt: now,
	}

	items := append(append([]Template(nil), s.items...), t)
	if err := s.save(items); err != nil {
		return Template{}, err
	}
	s.items = items
	return t, nil
}

// Rename changes a template's name.
func (s *FileStore) Rename(ctx context.Context, id, name string) (Template, error) {
	name, err := cleanName(name)
	if err != nil {
		return Template{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.index(id)
	if i < 0 {
		return Template{}, ErrTemplateNotFound
	}

	items := append([]Template(nil), s.items...)
	items[i].Name = name
	items[i].UpdatedAt = s.now().UTC()
	if err := s.save(items); err != nil {
		return Template{}, err
	}
	s.items = items
	return items[i], nil
}

// Delete removes a template.
func (s *FileStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.index(id)
	if i < 0 {
		return ErrTemplateNotFound
	}

	items := append(append([]Template(nil), s.items[:i]...), s.items[i+1:]...)
	if err := s.save(items); err != nil {
		return err
	}
	s.items = items
	return nil
}

func (s *FileStore) index(id string) int {
	for i, t := range s.items {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// save writes items atomically through a temp file in the same directory.
func (s *FileStore) save(items []Template) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create templates dir: %w", err)
	}

	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("encode templates: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".templates-*.json")
	if err != nil {
		return fmt.Errorf("write templates: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write templates: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write templates: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("write templates: %w", err)
	}
	return nil
}
