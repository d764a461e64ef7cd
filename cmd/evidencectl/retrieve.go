package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kirillkom/evidence-retrieval/internal/adapters/contract"
	"github.com/kirillkom/evidence-retrieval/internal/config"
	"github.com/kirillkom/evidence-retrieval/internal/infrastructure/queue/nats"
)

var retrieveCmd = &cobra.Command{
	Use:   "retrieve",
	Short: "Run one retrieval and print the outcome as JSON",
	Long: `Retrieve runs search, quality evaluation, bounded expansion and fusion for a
query and prints the retrieval outcome. With --via-nats the request is sent
as a job to the worker pool instead of running in-process.`,
	Example: `  evidencectl retrieve --corpus kb --query "Q3 revenue growth"
  evidencectl retrieve --corpus kb --query "churn" --require-metric churn_rate --via-nats`,
	RunE: runRetrieve,
}

func init() {
	f := retrieveCmd.Flags()
	f.String("corpus", "", "corpus id (required)")
	f.String("query", "", "query text (required)")
	f.Int("top-k", 0, "results per backend (0 uses RETRIEVAL_TOP_K)")
	f.Bool("permission", false, "caller holds the elevated permission flag")
	f.StringSlice("require-entity", nil, "entity the evidence must mention")
	f.StringSlice("require-metric", nil, "metric the evidence must mention")
	f.StringSlice("require-attribute", nil, "attribute the evidence must mention")
	f.Int("max-expansions", -1, "expansion budget override (-1 uses RETRIEVAL_MAX_EXPANSIONS)")
	f.Bool("via-nats", false, "send the request to the worker pool over NATS")
	f.Duration("timeout", 2*time.Minute, "overall deadline")
	_ = viper.BindPFlag("corpus", f.Lookup("corpus"))
	_ = viper.BindPFlag("top_k", f.Lookup("top-k"))

	rootCmd.AddCommand(retrieveCmd)
}

func runRetrieve(cmd *cobra.Command, _ []string) error {
	body, err := retrieveBodyFromFlags(cmd)
	if err != nil {
		return err
	}
	timeout, _ := cmd.Flags().GetDuration("timeout")
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if viaNATS, _ := cmd.Flags().GetBool("via-nats"); viaNATS {
		return retrieveViaNATS(ctx, cmd, body)
	}

	app, logger, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	outcome, err := app.Pipeline.Retrieve(ctx, body.ToDomain())
	if err != nil {
		return err
	}
	logger.Info("retrieval_completed",
		"run_id", outcome.RunID,
		"artifacts", len(outcome.Artifacts),
		"expansions", outcome.Expansions,
		"termination", outcome.Termination,
	)
	return writeJSON(cmd.OutOrStdout(), outcome)
}

func retrieveBodyFromFlags(cmd *cobra.Command) (contract.RetrieveBody, error) {
	f := cmd.Flags()
	query, _ := f.GetString("query")
	permission, _ := f.GetBool("permission")
	entities, _ := f.GetStringSlice("require-entity")
	metrics, _ := f.GetStringSlice("require-metric")
	attributes, _ := f.GetStringSlice("require-attribute")
	maxExpansions, _ := f.GetInt("max-expansions")

	body := contract.RetrieveBody{
		CorpusID:           viper.GetString("corpus"),
		Query:              query,
		ActorID:            viper.GetString("actor"),
		TopK:               viper.GetInt("top_k"),
		PermissionFlag:     permission,
		RequiredEntities:   entities,
		RequiredMetrics:    metrics,
		RequiredAttributes: attributes,
	}
	if maxExpansions >= 0 {
		body.MaxExpansions = &maxExpansions
	}

	if strings.TrimSpace(body.CorpusID) == "" || strings.TrimSpace(body.Query) == "" {
		return contract.RetrieveBody{}, fmt.Errorf("--corpus and --query are required")
	}
	return body, nil
}

func retrieveViaNATS(ctx context.Context, cmd *cobra.Command, body contract.RetrieveBody) error {
	cfg := config.Load()
	logger := newLogger(cfg)
	noRetry := false
	queue, err := nats.New(cfg.NATSURL, nats.Options{
		JobsSubject:          cfg.NATSJobsSubject,
		RetryOnFailedConnect: &noRetry,
		Logger:               logger,
	})
	if err != nil {
		return err
	}
	defer queue.Close()

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal retrieval job: %w", err)
	}
	reply, err := queue.RequestRetrieval(ctx, payload)
	if err != nil {
		return err
	}

	var failure contract.ErrorBody
	if err := json.Unmarshal(reply, &failure); err == nil && failure.Error != "" {
		return fmt.Errorf("worker: %s (%s)", failure.Error, failure.Kind)
	}
	var outcome json.RawMessage = reply
	return writeJSON(cmd.OutOrStdout(), outcome)
}
