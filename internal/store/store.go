// Package store persists named design templates: style presets a user can
// save, rename, delete, share and re-apply.
package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/JonMunkholm/QRBulk/internal/render"
)

// DefaultLimit is the default maximum number of stored templates.
const DefaultLimit = 10

var (
	// ErrTemplateLimit is returned by Create when the store is full.
	ErrTemplateLimit = errors.New("template limit reached")

	// ErrTemplateNotFound is returned for unknown template ids.
	ErrTemplateNotFound = errors.New("template not found")

	// ErrInvalidName is returned for blank template names.
	ErrInvalidName = errors.New("template name is required")
)

// Template is a named style snapshot.
type Template struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	Style     render.Style `json:"style"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

// Store is the template persistence contract. Implementations are safe for
// concurrent use.
type Store interface {
	List(ctx context.Context) ([]Template, error)
	Get(ctx context.Context, id string) (Template, error)
	Create(ctx context.Context, name string, style render.Style) (Template, error)
	Rename(ctx context.Context, id, name string) (Template, error)
	Delete(ctx context.Context, id string) error
}

func cleanName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrInvalidName
	}
	return name, nil
}
