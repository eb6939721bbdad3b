package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kozaktomas/sigboard/internal/config"
	"github.com/kozaktomas/sigboard/internal/content"
	"github.com/kozaktomas/sigboard/internal/database"
	"github.com/kozaktomas/sigboard/internal/database/postgres"
	"github.com/kozaktomas/sigboard/internal/fingerprint"
	"github.com/kozaktomas/sigboard/internal/similarity"
	"github.com/kozaktomas/sigboard/internal/upload"
	"github.com/kozaktomas/sigboard/internal/web"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long: `Start the Sigboard web server.
The web server accepts uploads, answers reverse image searches and stores
the signatures of posts.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (overrides WEB_PORT)")
	serveCmd.Flags().String("host", "", "Host to bind to (overrides WEB_HOST)")
	serveCmd.Flags().Bool("no-content", false, "Do not keep post content, signatures cannot be recomputed later")
}

// initIndexes loads or builds the in-memory signature indexes.
func initIndexes(ctx context.Context, repo *postgres.SignatureRepository, cfg *config.IndexConfig) {
	if !cfg.Words && !cfg.HNSW {
		fmt.Printf("In-memory indexes disabled, candidates are queried from PostgreSQL\n")
		return
	}

	fmt.Printf("Loading signature indexes (words: %t, hnsw: %t)...\n", cfg.Words, cfg.HNSW)
	if err := repo.EnableIndexes(ctx, indexOptions(cfg)); err != nil {
		fmt.Printf("Warning: Failed to build signature indexes: %v\n", err)
		fmt.Printf("Candidates will be queried from PostgreSQL (slower)\n")
		return
	}
	fmt.Printf("Signature indexes ready with %d posts\n", repo.IndexedCount())
}

// saveIndexes saves the in-memory indexes to disk during shutdown.
func saveIndexes() {
	rebuilder := database.GetIndexRebuilder()
	if rebuilder == nil {
		return
	}
	if err := rebuilder.SaveIndexes(); err != nil {
		fmt.Printf("Warning: failed to save signature indexes: %v\n", err)
		return
	}
	fmt.Println("Signature indexes saved to disk")
}

// newUploadService creates the upload store and its properties cache.
func newUploadService(cfg *config.UploadConfig) (*upload.Service, error) {
	store, err := upload.NewStore(cfg.Dir)
	if err != nil {
		return nil, err
	}
	return upload.NewService(store, upload.NewRingCache(cfg.CacheSize), cfg.ThumbnailSize), nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if port := mustGetInt(cmd, "port"); port > 0 {
		cfg.Web.Port = port
	}
	if host := mustGetString(cmd, "host"); host != "" {
		cfg.Web.Host = host
	}
	fingerprint.MaxPixels = cfg.Upload.MaxPixels

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fmt.Printf("Connecting to PostgreSQL database...\n")
	repo, closeDB, err := openSignatureRepository(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeDB()

	initIndexes(ctx, repo, &cfg.Index)

	uploads, err := newUploadService(&cfg.Upload)
	if err != nil {
		return fmt.Errorf("failed to create upload store: %w", err)
	}

	var contentStore content.Store
	if !mustGetBool(cmd, "no-content") {
		if contentStore, err = content.Open(ctx, &cfg.Content); err != nil {
			return fmt.Errorf("failed to open content store: %w", err)
		}
	}

	searcher := similarity.NewSearcher(repo, similarity.Options{
		Threshold:       cfg.Search.Threshold,
		Limit:           cfg.Search.Limit,
		CandidateLimit:  cfg.Search.CandidateLimit,
		NearestFallback: cfg.Index.HNSW,
	})

	server := web.NewServer(cfg, web.Dependencies{
		Repo:     repo,
		Uploads:  uploads,
		Searcher: searcher,
		Content:  contentStore,
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
		saveIndexes()
	}()

	fmt.Printf("Starting Sigboard on http://%s:%d\n", cfg.Web.Host, cfg.Web.Port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	<-done
	return nil
}
