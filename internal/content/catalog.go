package content

import (
	"errors"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

var gameExtensions = map[string]bool{
	".json": true,
	".yaml": true,
	".yml":  true,
}

// List returns every game file under <root>/<lang>, as slash separated
// paths relative to the language directory. Names are ordered the way a
// person would expect: case and accents are ignored and digit runs compare
// by value, so "2.json" sorts before "10.json". A missing language yields an
// empty list.
func (l *Loader) List(lang string) ([]string, error) {
	if !validLang(lang) {
		return nil, ErrInvalidPath
	}

	dir := filepath.Join(l.root, lang)
	files := []string{}

	err := afero.Walk(l.fs, dir, func(p string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !gameExtensions[strings.ToLower(filepath.Ext(p))] {
			return nil
		}

		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))

		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}

	sortNatural(files)

	return files, nil
}

func sortNatural(names []string) {
	c := collate.New(language.Und, collate.Numeric, collate.IgnoreCase, collate.IgnoreDiacritics)
	c.SortStrings(names)
}
