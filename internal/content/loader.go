// Package content reads game files from disk. Files are grouped by
// language, one directory per language, and may be written as JSON or YAML.
package content

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/Seednode/feudbox/internal/game"
)

var (
	ErrInvalidPath       = errors.New("invalid game path")
	ErrUnsupportedFormat = errors.New("unsupported game file format")
	ErrNoRounds          = errors.New("game has no rounds")
)

// Loader resolves game files beneath a root directory.
type Loader struct {
	fs   afero.Fs
	root string
}

func NewLoader(fsys afero.Fs, root string) *Loader {
	return &Loader{fs: fsys, root: root}
}

// Load reads and parses <root>/<lang>/<file>.
func (l *Loader) Load(lang, file string) (game.Content, error) {
	p, err := l.resolve(lang, file)
	if err != nil {
		return game.Content{}, err
	}

	data, err := afero.ReadFile(l.fs, p)
	if err != nil {
		return game.Content{}, fmt.Errorf("read game %s/%s: %w", lang, file, err)
	}

	return Parse(file, data)
}

func (l *Loader) resolve(lang, file string) (string, error) {
	if !validLang(lang) {
		return "", fmt.Errorf("%w: language %q", ErrInvalidPath, lang)
	}
	if !fs.ValidPath(file) || file == "." {
		return "", fmt.Errorf("%w: file %q", ErrInvalidPath, file)
	}

	return filepath.Join(l.root, lang, filepath.FromSlash(file)), nil
}

func validLang(lang string) bool {
	return lang != "" && lang != "." && lang != ".." && !strings.ContainsAny(lang, `/\`)
}

// Parse decodes a game file, choosing the format by extension. Data sent
// inline by a host is parsed as JSON.
func Parse(name string, data []byte) (game.Content, error) {
	switch strings.ToLower(path.Ext(name)) {
	case ".json", "":
	case ".yaml", ".yml":
		converted, err := yamlToJSON(data)
		if err != nil {
			return game.Content{}, fmt.Errorf("parse %s: %w", name, err)
		}
		data = converted
	default:
		return game.Content{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
	}

	var c game.Content
	if err := json.Unmarshal(data, &c); err != nil {
		return game.Content{}, fmt.Errorf("parse %s: %w", name, err)
	}

	if len(c.Rounds) == 0 {
		return game.Content{}, fmt.Errorf("%w: %s", ErrNoRounds, name)
	}
	normalize(&c)

	return c, nil
}

// yamlToJSON re-encodes a YAML document so both formats share the JSON
// schema, including the [text, points] final round answers.
func yamlToJSON(data []byte) ([]byte, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return json.Marshal(doc)
}

// normalize fills the keys a hand written file may leave out.
func normalize(c *game.Content) {
	for i := range c.Rounds {
		if c.Rounds[i].Answers == nil {
			c.Rounds[i].Answers = []game.Answer{}
		}
	}
	if c.FinalRound == nil {
		c.FinalRound = []game.FinalRoundQuestion{}
	}
	for i := range c.FinalRound {
		if c.FinalRound[i].Answers == nil {
			c.FinalRound[i].Answers = []game.FinalAnswer{}
		}
	}
	if c.FinalRoundTimers == nil {
		c.FinalRoundTimers = []int{}
	}
}
