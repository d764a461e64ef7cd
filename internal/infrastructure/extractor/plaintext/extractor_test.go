package plaintext

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestLoadDirReadsSupportedFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "reports", "q3.md"), "# Q3 report\n\nRevenue grew twelve percent.\n")
	writeFile(t, filepath.Join(root, "notes.txt"), "Costs fell.")
	writeFile(t, filepath.Join(root, "page.html"), `<html><head><title>Churn</title><script>var x = 1;</script></head>
<body><h1>Churn</h1>
<p>Churn dropped in EMEA.</p></body></html>`)
	writeFile(t, filepath.Join(root, "image.png"), "\x89PNG")
	writeFile(t, filepath.Join(root, ".git", "HEAD.txt"), "ref")
	writeFile(t, filepath.Join(root, "empty.txt"), "   \n")
	writeFile(t, filepath.Join(root, "binary.txt"), "\xff\xfe\x00")

	docs, skipped, err := LoadDir(root, "kb")
	if err != nil {
		t.Fatalf("LoadDir() error = %v", err)
	}
	byID := map[string]int{}
	for i, d := range docs {
		byID[d.ID] = i
		if d.CorpusID != "kb" {
			t.Fatalf("corpus not applied to %s", d.ID)
		}
	}
	if len(docs) != 3 {
		t.Fatalf("expected 3 documents, got %+v", docs)
	}

	md := docs[byID["reports/q3.md"]]
	if md.Title != "Q3 report" || md.FileName != "q3.md" || md.FileID != "reports/q3.md" {
		t.Fatalf("unexpected markdown document %+v", md)
	}
	html := docs[byID["page.html"]]
	if html.Title != "Churn" || html.Content != "Churn\nChurn dropped in EMEA." {
		t.Fatalf("unexpected html document %+v", html)
	}
	if txt := docs[byID["notes.txt"]]; txt.Title != "Costs fell." {
		t.Fatalf("expected first line title, got %q", txt.Title)
	}

	if len(skipped) != 2 {
		t.Fatalf("expected empty and binary files skipped, got %+v", skipped)
	}
}

func TestExtractFallsBackToFileNameTitle(t *testing.T) {
	doc, reason := Extract("docs/page.html", ".html", []byte("<html><body><p>Only body.</p></body></html>"))
	if reason != "" {
		t.Fatalf("unexpected skip %q", reason)
	}
	if doc.Title != "page.html" || doc.Content != "Only body." {
		t.Fatalf("unexpected document %+v", doc)
	}
}
