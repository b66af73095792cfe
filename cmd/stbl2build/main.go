// Command stbl2build wires the engine's collaborators into one
// end-to-end build: load config, discover and assemble content, plan
// the task DAG, open the cache, and run the executor. It mirrors the
// teacher's Builder construction in builder/run/builder.go (structured
// slog logger, services wired in order, cache lifecycle), generalized
// from the teacher's service-struct shape to this engine's standalone
// collaborator packages.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/afero"

	"stbl2/internal/assemble"
	"stbl2/internal/cache"
	"stbl2/internal/config"
	"stbl2/internal/exec"
	"stbl2/internal/plan"
	"stbl2/internal/scan"
)

func main() {
	var (
		root              = flag.String("root", ".", "project root containing stbl.yaml, articles/, static/")
		outDir            = flag.String("out", "public", "output directory")
		cacheFile         = flag.String("cache", ".stbl2-cache.db", "cache database path, relative to -root")
		jobs              = flag.Int("jobs", 0, "worker pool size override (0 = auto-size from GOMAXPROCS)")
		regenerateContent = flag.Bool("regenerate-content", false, "force every non-media task to re-execute, ignoring the cache")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutdown requested")
		cancel()
	}()

	if err := build(ctx, logger, *root, *outDir, *cacheFile, *jobs, *regenerateContent); err != nil {
		logger.Error("build failed", "error", err)
		os.Exit(1)
	}
}

func build(ctx context.Context, logger *slog.Logger, root, outDir, cacheRelPath string, jobs int, regenerateContent bool) error {
	cfg, err := config.Load(filepath.Join(root, "stbl.yaml"))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	fsys := afero.NewOsFs()
	articlesRoot := filepath.Join(root, "articles")
	docs, err := scan.Documents(fsys, articlesRoot)
	if err != nil {
		return fmt.Errorf("discover documents: %w", err)
	}
	logger.Info("discovered documents", "count", len(docs))

	content, err := assemble.Assemble(docs)
	for _, d := range content.Diagnostics {
		logger.Warn("content diagnostic", "level", d.Level.String(), "source", d.SourcePath, "message", d.Message)
	}
	if err != nil {
		return fmt.Errorf("assemble content: %w", err)
	}
	logger.Info("assembled content", "pages", len(content.Pages), "series", len(content.Series))

	staticRoot := filepath.Join(root, "static")
	assets, err := scan.StaticAssets(fsys, staticRoot, "assets/static")
	if err != nil {
		return fmt.Errorf("scan static assets: %w", err)
	}

	assetsRoot := filepath.Join(root, "assets")
	images, videos, err := scan.MediaInputs(assetsRoot, content)
	if err != nil {
		return fmt.Errorf("resolve media references: %w", err)
	}

	buildPlan := plan.Build(content, cfg, assets, images, videos)
	logger.Info("planned build", "tasks", len(buildPlan.Tasks), "edges", len(buildPlan.Edges))

	store, err := cache.Open(filepath.Join(root, cacheRelPath))
	if err != nil {
		return fmt.Errorf("open cache: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("cache close failed", "error", err)
		}
	}()

	e := exec.New(content, cfg, exec.Options{
		OutDir:            filepath.Join(root, outDir),
		Jobs:              jobs,
		RegenerateContent: regenerateContent,
		Cache:             store,
	})

	summary, err := e.Run(ctx, buildPlan)
	if err != nil {
		return fmt.Errorf("execute plan: %w", err)
	}

	logger.Info("build complete",
		"executed", summary.Executed,
		"skipped", summary.Skipped,
		"failures", len(summary.Failures),
	)
	for _, f := range summary.Failures {
		logger.Warn("task failed", "task", f.TaskId.String(), "error", f.Err)
	}
	return nil
}
