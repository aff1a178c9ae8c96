package render

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/JonMunkholm/QRBulk/internal/qrstyle"
)

// preset holds the TOML-only keys of a style file.
type preset struct {
	LogoPath string `toml:"logo_path"`
}

// DecodeStyleTOML overlays a TOML document on base. Keys absent from the
// document keep base's values. A logo_path is resolved against dir.
func DecodeStyleTOML(data []byte, base Style, dir string) (Style, error) {
	s := base
	if err := toml.Unmarshal(data, &s); err != nil {
		return Style{}, fmt.Errorf("decode style: %w", err)
	}

	var p preset
	if err := toml.Unmarshal(data, &p); err != nil {
		return Style{}, fmt.Errorf("decode style: %w", err)
	}
	if p.LogoPath != "" {
		path := p.LogoPath
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, path)
		}
		if err := s.LoadLogo(path); err != nil {
			return Style{}, err
		}
	}

	return s, nil
}

// LoadStyleFile reads a TOML style preset over base.
func LoadStyleFile(path string, base Style) (Style, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Style{}, fmt.Errorf("read style: %w", err)
	}
	return DecodeStyleTOML(data, base, filepath.Dir(path))
}

// LoadLogo reads a logo image from disk into the style.
func (s *Style) LoadLogo(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read logo: %w", err)
	}
	s.Logo = data
	s.LogoMIME = LogoMIME(path, data)
	return nil
}

// LogoMIME guesses a logo's MIME type from its name and content.
func LogoMIME(name string, data []byte) string {
	if strings.EqualFold(filepath.Ext(name), ".svg") || qrstyle.IsSVG(&qrstyle.Image{Data: data}) {
		return "image/svg+xml"
	}
	if ct := http.DetectContentType(data); strings.HasPrefix(ct, "image/") {
		return ct
	}
	return "application/octet-stream"
}
