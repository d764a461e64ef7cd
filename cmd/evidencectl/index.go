package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kirillkom/evidence-retrieval/internal/core/domain"
	"github.com/kirillkom/evidence-retrieval/internal/infrastructure/extractor/plaintext"
)

const maxDocumentLine = 8 << 20

var indexCmd = &cobra.Command{
	Use:   "index [file.jsonl | --dir path]",
	Short: "Write evidence documents to every configured store",
	Long: `Index reads one JSON evidence document per line (id, corpus_id, title,
content and optional permission_level, file_id, file_name, partition,
metadata) and writes the batch to qdrant, chromem, bleve and postgres,
whichever are enabled. Long documents are split into overlapping chunks.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().String("corpus", "", "corpus id applied to documents that omit one")
	indexCmd.Flags().String("dir", "", "load .txt, .md and .html files from a directory instead of JSONL")
	indexCmd.Flags().Int("batch", 256, "documents per write")
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	corpus, _ := cmd.Flags().GetString("corpus")
	dir, _ := cmd.Flags().GetString("dir")

	var docs []domain.EvidenceDocument
	if dir != "" {
		if corpus == "" {
			return fmt.Errorf("--corpus is required with --dir")
		}
		loaded, skipped, err := plaintext.LoadDir(dir, corpus)
		if err != nil {
			return err
		}
		for _, s := range skipped {
			fmt.Fprintf(cmd.ErrOrStderr(), "skipped %s: %s\n", s.Path, s.Reason)
		}
		if len(loaded) == 0 {
			return fmt.Errorf("no documents under %s", dir)
		}
		docs = loaded
	} else {
		path := ""
		if len(args) == 1 {
			path = args[0]
		}
		in, err := openInput(cmd, path)
		if err != nil {
			return err
		}
		defer in.Close()
		if docs, err = readDocuments(in, corpus); err != nil {
			return err
		}
	}
	batch, _ := cmd.Flags().GetInt("batch")
	if batch <= 0 {
		batch = len(docs)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	app, logger, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	for start := 0; start < len(docs); start += batch {
		end := min(start+batch, len(docs))
		if err := app.Index(ctx, docs[start:end]); err != nil {
			return fmt.Errorf("index documents %d-%d: %w", start, end-1, err)
		}
	}
	logger.Info("documents_indexed", "count", len(docs))
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "indexed %d documents\n", len(docs))
	return err
}

// readDocuments parses JSONL evidence, skipping blank lines. defaultCorpus
// fills documents without a corpus_id.
func readDocuments(r io.Reader, defaultCorpus string) ([]domain.EvidenceDocument, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxDocumentLine)

	var docs []domain.EvidenceDocument
	line := 0
	for scanner.Scan() {
		line++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}
		var doc domain.EvidenceDocument
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if doc.CorpusID == "" {
			doc.CorpusID = defaultCorpus
		}
		if err := doc.Validate(); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		docs = append(docs, doc)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read documents: %w", err)
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("no documents in input")
	}
	return docs, nil
}
