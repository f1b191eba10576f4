// Package assets stores files uploaded into a room, currently just its logo.
package assets

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/afero"
)

const DefaultMaxLogoSize = 2 << 20

var (
	ErrTooLarge    = errors.New("image too large")
	ErrUnknownType = errors.New("unknown image type")
	ErrInvalidName = errors.New("invalid asset name")
)

// Leading bytes of the accepted PNG, GIF and JPEG variants.
var signatures = map[string]bool{
	"89504e47": true,
	"47494638": true,
	"ffd8ffe0": true,
	"ffd8ffe1": true,
	"ffd8ffe2": true,
	"ffd8ffe3": true,
	"ffd8ffe8": true,
}

var imageExts = map[string]bool{
	"png":  true,
	"gif":  true,
	"jpeg": true,
	"jpg":  true,
}

var (
	roomPattern = regexp.MustCompile(`^[A-Z]{1,16}$`)
	logoPattern = regexp.MustCompile(`^logo\.[a-z0-9]{1,8}$`)
)

// Store keeps room assets under <root>/rooms/<CODE>/.
type Store struct {
	fs      afero.Fs
	root    string
	maxSize int64
}

func NewStore(fsys afero.Fs, root string, maxSize int64) *Store {
	if maxSize <= 0 {
		maxSize = DefaultMaxLogoSize
	}
	return &Store{fs: fsys, root: root, maxSize: maxSize}
}

func (s *Store) MaxSize() int64 {
	return s.maxSize
}

func (s *Store) roomDir(room string) (string, error) {
	if !roomPattern.MatchString(room) {
		return "", fmt.Errorf("%w: room %q", ErrInvalidName, room)
	}
	return filepath.Join(s.root, "rooms", room), nil
}

// Sniff reports whether data starts with an accepted image signature.
func Sniff(data []byte) bool {
	if len(data) < 4 {
		return false
	}
	return signatures[hex.EncodeToString(data[:4])]
}

// Extension turns a declared mimetype such as "png" or "image/jpeg" into a
// file extension. Only the formats Sniff accepts are allowed.
func Extension(mimetype string) (string, error) {
	ext := strings.ToLower(strings.TrimSpace(mimetype))
	if rest, ok := strings.CutPrefix(ext, "image/"); ok {
		ext = rest
	}
	if !imageExts[ext] {
		return "", fmt.Errorf("%w: mimetype %q", ErrUnknownType, mimetype)
	}
	return ext, nil
}

// SaveLogo validates a base64 encoded image and stores it as the room's
// logo, replacing any earlier one. Nothing is written when validation
// fails. It returns the stored file name and its size in bytes.
func (s *Store) SaveLogo(room, encoded, mimetype string) (string, int64, error) {
	dir, err := s.roomDir(room)
	if err != nil {
		return "", 0, err
	}

	if int64(base64.StdEncoding.DecodedLen(len(encoded))) > s.maxSize+3 {
		return "", 0, ErrTooLarge
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", 0, fmt.Errorf("decode logo: %w", err)
	}
	if int64(len(data)) > s.maxSize {
		return "", 0, ErrTooLarge
	}
	if !Sniff(data) {
		return "", 0, ErrUnknownType
	}

	ext, err := Extension(mimetype)
	if err != nil {
		return "", 0, err
	}
	name := "logo." + ext

	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return "", 0, fmt.Errorf("create room assets: %w", err)
	}

	tmp := filepath.Join(dir, name+".tmp")
	if err := afero.WriteFile(s.fs, tmp, data, 0o644); err != nil {
		_ = s.fs.Remove(tmp)
		return "", 0, fmt.Errorf("write logo: %w", err)
	}
	if err := s.fs.Rename(tmp, filepath.Join(dir, name)); err != nil {
		_ = s.fs.Remove(tmp)
		return "", 0, fmt.Errorf("write logo: %w", err)
	}

	// The new logo is in place; drop any earlier one stored under another
	// extension.
	if err := s.removeOthers(dir, name); err != nil {
		return "", 0, err
	}

	return name, int64(len(data)), nil
}

func (s *Store) removeOthers(dir, keep string) error {
	entries, err := afero.ReadDir(s.fs, dir)
	if err != nil {
		return fmt.Errorf("list room assets: %w", err)
	}
	for _, e := range entries {
		if e.Name() == keep || e.IsDir() {
			continue
		}
		if err := s.fs.Remove(filepath.Join(dir, e.Name())); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove old logo: %w", err)
		}
	}
	return nil
}

// Remove deletes every asset of a room. A room without assets is not an
// error.
func (s *Store) Remove(room string) error {
	dir, err := s.roomDir(room)
	if err != nil {
		return err
	}
	if err := s.fs.RemoveAll(dir); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove room assets: %w", err)
	}
	return nil
}

// Open returns a stored logo for serving.
func (s *Store) Open(room, name string) (afero.File, error) {
	dir, err := s.roomDir(room)
	if err != nil {
		return nil, err
	}
	if !logoPattern.MatchString(name) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return s.fs.Open(filepath.Join(dir, name))
}
