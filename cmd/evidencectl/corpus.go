package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kirillkom/evidence-retrieval/internal/config"
	"github.com/kirillkom/evidence-retrieval/internal/infrastructure/repository/postgres"
)

var corpusCmd = &cobra.Command{
	Use:   "corpus",
	Short: "Manage corpora and their members in Postgres",
}

var corpusEnsureCmd = &cobra.Command{
	Use:   "ensure <corpus-id>",
	Short: "Create a corpus or rename an existing one",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		return withCorpora(cmd.Context(), func(ctx context.Context, repo *postgres.CorpusRepository) error {
			if err := repo.EnsureCorpus(ctx, args[0], name); err != nil {
				return err
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "corpus %s ready\n", args[0])
			return err
		})
	},
}

var corpusGrantCmd = &cobra.Command{
	Use:   "grant <corpus-id>",
	Short: "Grant an actor access to a corpus",
	Long: `Grant adds the actor (--actor or EVIDENCECTL_ACTOR) to the corpus. Members
without --elevated only see evidence marked public.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		actor := viper.GetString("actor")
		if actor == "" {
			return fmt.Errorf("--actor is required")
		}
		elevated, _ := cmd.Flags().GetBool("elevated")
		return withCorpora(cmd.Context(), func(ctx context.Context, repo *postgres.CorpusRepository) error {
			if err := repo.GrantMember(ctx, args[0], actor, elevated); err != nil {
				return err
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "granted %s on %s (elevated=%t)\n", actor, args[0], elevated)
			return err
		})
	},
}

func init() {
	corpusEnsureCmd.Flags().String("name", "", "display name")
	corpusGrantCmd.Flags().Bool("elevated", false, "allow non-public evidence")

	corpusCmd.AddCommand(corpusEnsureCmd, corpusGrantCmd)
	rootCmd.AddCommand(corpusCmd)
}

func withCorpora(ctx context.Context, fn func(context.Context, *postgres.CorpusRepository) error) error {
	cfg := config.Load()
	if cfg.PostgresDSN == "" {
		return fmt.Errorf("POSTGRES_DSN is not set")
	}
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		return err
	}
	return fn(ctx, postgres.NewCorpusRepository(db))
}
