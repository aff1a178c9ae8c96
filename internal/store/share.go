package store

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/QRBulk/internal/render"
)

const shareVersion = 1

// ErrInvalidShareCode is returned for codes that do not decode to a template.
var ErrInvalidShareCode = errors.New("invalid share code")

type shareEnvelope struct {
	Version int          `json:"v"`
	Name    string       `json:"name"`
	Style   render.Style `json:"style"`
}

// EncodeShare packs a template's name and style into a URL-safe code.
// Ids and timestamps are not carried; an import creates a new template.
func EncodeShare(t Template) (string, error) {
	data, err := json.Marshal(shareEnvelope{Version: shareVersion, Name: t.Name, Style: t.Style})
	if err != nil {
		return "", fmt.Errorf("encode share: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

// DecodeShare unpacks a share code. The returned template has no id.
func DecodeShare(code string) (Template, error) {
	code = strings.TrimRight(strings.TrimSpace(code), "=")
	data, err := base64.RawURLEncoding.DecodeString(code)
	if err != nil {
		return Template{}, fmt.Errorf("%w: %v", ErrInvalidShareCode, err)
	}

	base := render.DefaultStyle()
	env := shareEnvelope{Style: base}
	if err := json.Unmarshal(data, &env); err != nil {
		return Template{}, fmt.Errorf("%w: %v", ErrInvalidShareCode, err)
	}
	if env.Version != shareVersion {
		return Template{}, fmt.Errorf("%w: unsupported version %d", ErrInvalidShareCode, env.Version)
	}
	if strings.TrimSpace(env.Name) == "" {
		return Template{}, fmt.Errorf("%w: missing name", ErrInvalidShareCode)
	}
	if err := env.Style.Validate(); err != nil {
		return Template{}, fmt.Errorf("%w: %v", ErrInvalidShareCode, err)
	}

	return Template{Name: env.Name, Style: env.Style}, nil
}
