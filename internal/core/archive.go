package core

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/JonMunkholm/QRBulk/internal/render"
)

// ErrArchiveFinalized is returned when an archive is used after Finalize.
var ErrArchiveFinalized = errors.New("archive already finalized")

// FileName builds an entry name from a row's name parts. Characters that
// would break a path inside the archive become "-". Rows without any name
// part fall back to their position.
func FileName(index int, first, last, platform, ext string) string {
	var parts []string
	for _, p := range []string{first, last, platform} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}

	base := strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\\' || r == ':':
			return '-'
		case strings.ContainsRune(`*?"<>|`, r):
			return '-'
		case unicode.IsControl(r):
			return '-'
		}
		return r
	}, strings.Join(parts, "_"))

	if strings.Trim(base, ".- ") == "" {
		base = "qr_" + strconv.Itoa(index+1)
	}
	return base + "." + ext
}

// ArchiveName is the download name for a finished run.
func ArchiveName(format render.Format, t time.Time) string {
	return fmt.Sprintf("qr_bulk_%s_%d.zip", format, t.UnixMilli())
}

// Assembler collects artifacts into an in-memory zip archive with unique
// entry names.
type Assembler struct {
	buf      bytes.Buffer
	zw       *zip.Writer
	names    map[string]bool
	modified time.Time
	done     bool
}

// NewAssembler starts an empty archive. Entry timestamps are set to modified.
func NewAssembler(modified time.Time) *Assembler {
	a := &Assembler{names: make(map[string]bool), modified: modified}
	a.zw = zip.NewWriter(&a.buf)
	return a
}

// Put adds data under name, or under a suffixed variant if name is taken:
// first "_<index+1>", then "_<index+1>_2" and so on. It returns the name used.
func (a *Assembler) Put(index int, name string, data []byte) (string, error) {
	if a.done {
		return "", ErrArchiveFinalized
	}

	final := a.unique(index, name)

	method := zip.Deflate
	switch strings.ToLower(path.Ext(final)) {
	case ".png", ".jpg", ".jpeg":
		method = zip.Store
	}

	w, err := a.zw.CreateHeader(&zip.FileHeader{
		Name:     final,
		Method:   method,
		Modified: a.modified,
	})
	if err != nil {
		return "", fmt.Errorf("add %s: %w", final, err)
	}
	if _, err := w.Write(data); err != nil {
		return "", fmt.Errorf("write %s: %w", final, err)
	}

	a.names[final] = true
	return final, nil
}

func (a *Assembler) unique(index int, name string) string {
	if !a.names[name] {
		return name
	}

	ext := path.Ext(name)
	stem := strings.TrimSuffix(name, ext)

	candidate := stem + "_" + strconv.Itoa(index+1) + ext
	for n := 2; a.names[candidate]; n++ {
		candidate = stem + "_" + strconv.Itoa(index+1) + "_" + strconv.Itoa(n) + ext
	}
	return candidate
}

// Count returns the number of entries added.
func (a *Assembler) Count() int {
	return len(a.names)
}

// Finalize closes the archive and returns its bytes. It may be called once.
func (a *Assembler) Finalize() ([]byte, error) {
	if a.done {
		return nil, ErrArchiveFinalized
	}
	a.done = true

	if err := a.zw.Close(); err != nil {
		return nil, fmt.Errorf("close archive: %w", err)
	}
	return a.buf.Bytes(), nil
}
