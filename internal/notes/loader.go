// Package notes reads clinical notes from plain text and HTML files.
package notes

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/unicode/norm"
)

var ErrUnsupportedFormat = errors.New("unsupported note format")

const blockSelector = "p, div, li, tr, h1, h2, h3, h4, h5, h6"

type Note struct {
	Path string
	Text string
}

func Supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".html", ".htm":
		return true
	default:
		return false
	}
}

// Load reads one note. HTML markup is stripped and the text is NFC-normalized.
func Load(path string) (Note, error) {
	if !Supported(path) {
		return Note{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}

	f, err := os.Open(path)
	if err != nil {
		return Note{}, fmt.Errorf("open note: %w", err)
	}
	defer f.Close()

	var text string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		text, err = ExtractHTML(f)
	default:
		var raw []byte
		raw, err = io.ReadAll(f)
		text = string(raw)
	}
	if err != nil {
		return Note{}, fmt.Errorf("read note %s: %w", path, err)
	}

	return Note{Path: path, Text: norm.NFC.String(text)}, nil
}

// LoadDir walks root recursively and loads every supported note in lexical order.
func LoadDir(root string) ([]Note, error) {
	var notes []Note

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !Supported(path) {
			return nil
		}

		note, err := Load(path)
		if err != nil {
			return err
		}
		notes = append(notes, note)

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk notes: %w", err)
	}

	return notes, nil
}

// ExtractHTML returns the visible text of an HTML document, one block per line.
func ExtractHTML(r io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	doc.Find("script, style, noscript, head").Remove()
	doc.Find("br").Each(func(_ int, br *goquery.Selection) {
		br.ReplaceWithHtml("\n")
	})
	doc.Find(blockSelector).Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})

	var lines []string
	for line := range strings.Lines(doc.Text()) {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}

	return strings.Join(lines, "\n"), nil
}
