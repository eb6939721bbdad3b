package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kozaktomas/sigboard/internal/config"
	"github.com/kozaktomas/sigboard/internal/content"
	"github.com/kozaktomas/sigboard/internal/fingerprint"
	"github.com/kozaktomas/sigboard/internal/maintenance"
	"github.com/kozaktomas/sigboard/internal/signature"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var cacheRecomputeSignaturesCmd = &cobra.Command{
	Use:   "recompute-signatures",
	Short: "Recompute all signatures from the stored post content",
	Long: `Recompute the signature, words and checksum of every stored post from its
content. Use this after the signature format changed. Posts whose content is
missing or unreadable are reported and skipped.

Examples:
  sigboard cache recompute-signatures
  sigboard cache recompute-signatures --concurrency 4 --rate 50
  sigboard cache recompute-signatures --json`,
	RunE: runCacheRecomputeSignatures,
}

var cacheRecomputeWordsCmd = &cobra.Command{
	Use:   "recompute-words",
	Short: "Regenerate the index words of all stored signatures",
	Long: `Regenerate the words of every stored signature. Only the stored signatures
are read, post content is not needed.`,
	RunE: runCacheRecomputeWords,
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show the number of stored and outdated signatures",
	RunE:  runCacheStats,
}

func init() {
	cacheCmd.AddCommand(cacheRecomputeSignaturesCmd)
	cacheCmd.AddCommand(cacheRecomputeWordsCmd)
	cacheCmd.AddCommand(cacheStatsCmd)

	cacheRecomputeSignaturesCmd.Flags().Int("concurrency", 0, "Number of parallel workers (overrides MAINTENANCE_CONCURRENCY)")
	cacheRecomputeSignaturesCmd.Flags().Float64("rate", -1, "Posts per second, 0 for unlimited (overrides MAINTENANCE_RATE)")
	cacheRecomputeSignaturesCmd.Flags().Bool("json", false, "Output as JSON")

	cacheRecomputeWordsCmd.Flags().Int("batch-size", 0, "Signatures per transaction (overrides MAINTENANCE_BATCH_SIZE)")
	cacheRecomputeWordsCmd.Flags().Bool("json", false, "Output as JSON")

	cacheStatsCmd.Flags().Bool("json", false, "Output as JSON")
}

// RecomputeResult is the outcome of a recompute command
type RecomputeResult struct {
	Success       bool                  `json:"success"`
	Total         int                   `json:"total"`
	Updated       int                   `json:"updated"`
	Failed        int                   `json:"failed"`
	Failures      []maintenance.Failure `json:"failures,omitempty"`
	DurationMs    int64                 `json:"duration_ms"`
	DurationHuman string                `json:"duration_human,omitempty"`
}

// interruptibleContext is cancelled on SIGINT or SIGTERM so a running
// recompute stops after the posts in flight.
func interruptibleContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func newProgressBar(jsonOutput bool, description, unit string) *progressbar.ProgressBar {
	if jsonOutput {
		return nil
	}
	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString(unit),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)
}

// progressReporter moves the bar to the reported position.
func progressReporter(bar *progressbar.ProgressBar) maintenance.ProgressFunc {
	if bar == nil {
		return nil
	}
	return func(p maintenance.Progress) {
		if bar.GetMax() != p.Total {
			bar.ChangeMax(p.Total)
		}
		_ = bar.Set(p.Processed)
	}
}

func printRecomputeResult(jsonOutput bool, title string, res *maintenance.Result, runErr error) error {
	result := RecomputeResult{Success: runErr == nil}
	if res != nil {
		result.Total = res.Total
		result.Updated = res.Updated
		result.Failed = res.Failed
		result.Failures = res.Failures
		result.DurationMs = res.Duration.Milliseconds()
		result.DurationHuman = formatDuration(res.Duration)
	}

	if jsonOutput {
		result.DurationHuman = ""
		if err := outputJSON(result); err != nil {
			return err
		}
		return runErr
	}

	fmt.Println()
	if runErr != nil {
		fmt.Printf("\n%s stopped: %v\n", title, runErr)
	} else {
		fmt.Printf("\n%s complete!\n", title)
	}
	fmt.Printf("  Posts:    %d\n", result.Total)
	fmt.Printf("  Updated:  %d\n", result.Updated)
	if result.Failed > 0 {
		fmt.Printf("  Failed:   %d\n", result.Failed)
		for _, f := range result.Failures {
			fmt.Printf("    post %d: %s\n", f.PostID, f.Error)
		}
	}
	fmt.Printf("  Duration: %s\n", result.DurationHuman)
	return runErr
}

func runCacheRecomputeSignatures(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	jsonOutput := mustGetBool(cmd, "json")
	opts := maintenance.SignatureOptions{
		Concurrency: cfg.Maintenance.Concurrency,
		Rate:        cfg.Maintenance.Rate,
	}
	if c := mustGetInt(cmd, "concurrency"); c > 0 {
		opts.Concurrency = c
	}
	if r := mustGetFloat64(cmd, "rate"); r >= 0 {
		opts.Rate = r
	}
	fingerprint.MaxPixels = cfg.Upload.MaxPixels

	ctx, cancel := interruptibleContext()
	defer cancel()

	repo, closeDB, err := openSignatureRepository(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeDB()

	src, err := content.Open(ctx, &cfg.Content)
	if err != nil {
		return fmt.Errorf("failed to open content store: %w", err)
	}

	bar := newProgressBar(jsonOutput, "Recomputing signatures", "posts")
	opts.OnProgress = progressReporter(bar)

	res, err := maintenance.RecomputeSignatures(ctx, repo, src, opts)
	return printRecomputeResult(jsonOutput, "Recompute", res, err)
}

func runCacheRecomputeWords(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	jsonOutput := mustGetBool(cmd, "json")
	opts := maintenance.WordsOptions{BatchSize: cfg.Maintenance.BatchSize}
	if b := mustGetInt(cmd, "batch-size"); b > 0 {
		opts.BatchSize = b
	}

	ctx, cancel := interruptibleContext()
	defer cancel()

	repo, closeDB, err := openSignatureRepository(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeDB()

	bar := newProgressBar(jsonOutput, "Recomputing words", "posts")
	opts.OnProgress = progressReporter(bar)

	res, err := maintenance.RecomputeWords(ctx, repo, opts)
	return printRecomputeResult(jsonOutput, "Recompute", res, err)
}

func runCacheStats(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	ctx := context.Background()

	repo, closeDB, err := openSignatureRepository(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeDB()

	stats, err := repo.Stats(ctx)
	if err != nil {
		return fmt.Errorf("failed to get signature stats: %w", err)
	}

	if mustGetBool(cmd, "json") {
		return outputJSON(stats)
	}
	fmt.Printf("Signatures: %d\n", stats.Total)
	fmt.Printf("Outdated:   %d (current format v%d)\n", stats.Outdated, signature.Version)
	return nil
}
