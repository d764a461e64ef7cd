// Package plaintext turns a directory of text, markdown and HTML files into
// evidence documents.
package plaintext

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/kirillkom/evidence-retrieval/internal/core/domain"
)

var supported = map[string]struct{}{
	".txt":      {},
	".md":       {},
	".markdown": {},
	".html":     {},
	".htm":      {},
}

// Skipped names a file that was not loaded and why.
type Skipped struct {
	Path   string
	Reason string
}

// LoadDir reads every supported file under root. Document ids are the slash
// separated paths relative to root, so reloading a tree overwrites the same
// documents.
func LoadDir(root, corpusID string) ([]domain.EvidenceDocument, []Skipped, error) {
	var (
		docs    []domain.EvidenceDocument
		skipped []Skipped
	)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if _, ok := supported[ext]; !ok {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", rel, err)
		}
		doc, reason := Extract(rel, ext, raw)
		if reason != "" {
			skipped = append(skipped, Skipped{Path: rel, Reason: reason})
			return nil
		}
		doc.CorpusID = corpusID
		docs = append(docs, doc)
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("load %s: %w", root, err)
	}
	return docs, skipped, nil
}

// Extract builds one document from raw file content. A non-empty reason means
// the file carries no usable text.
func Extract(name, ext string, raw []byte) (domain.EvidenceDocument, string) {
	if !utf8.Valid(raw) {
		return domain.EvidenceDocument{}, "not utf-8 text"
	}

	var title, content string
	switch ext {
	case ".html", ".htm":
		page, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
		if err != nil {
			return domain.EvidenceDocument{}, "unparseable html"
		}
		page.Find("script, style, noscript").Remove()
		title = strings.TrimSpace(page.Find("title").First().Text())
		content = collapseBlankLines(page.Find("body").Text())
	default:
		content = strings.TrimSpace(string(raw))
		title = firstLine(content)
	}
	if content == "" {
		return domain.EvidenceDocument{}, "empty"
	}
	if title == "" {
		title = filepath.Base(name)
	}
	return domain.EvidenceDocument{
		ID:       name,
		Title:    title,
		Content:  content,
		FileID:   name,
		FileName: filepath.Base(name),
	}, ""
}

func firstLine(text string) string {
	line, _, _ := strings.Cut(text, "\n")
	return strings.TrimSpace(strings.TrimLeft(line, "# "))
}

func collapseBlankLines(text string) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
