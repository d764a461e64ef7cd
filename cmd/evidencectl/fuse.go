package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/kirillkom/evidence-retrieval/internal/adapters/contract"
	"github.com/kirillkom/evidence-retrieval/internal/bootstrap"
	"github.com/kirillkom/evidence-retrieval/internal/config"
)

var fuseCmd = &cobra.Command{
	Use:   "fuse [file]",
	Short: "Fuse passages into a discourse graph and summary",
	Long: `Fuse reads text from a file or stdin, splits it into passages on blank
lines and prints the discourse graph with the synthesized text. No search
backend is contacted.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runFuse,
}

func init() {
	fuseCmd.Flags().Bool("text-only", false, "print only the synthesized text")
	rootCmd.AddCommand(fuseCmd)
}

func runFuse(cmd *cobra.Command, args []string) error {
	path := ""
	if len(args) == 1 {
		path = args[0]
	}
	in, err := openInput(cmd, path)
	if err != nil {
		return err
	}
	defer in.Close()
	raw, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	cfg := config.Load()
	engine, err := bootstrap.NewFusionEngine(cfg, newLogger(cfg))
	if err != nil {
		return err
	}
	result := engine.FuseTexts(contract.SplitPassages(string(raw)))

	if textOnly, _ := cmd.Flags().GetBool("text-only"); textOnly {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), result.Text)
		return err
	}
	return writeJSON(cmd.OutOrStdout(), result)
}
