package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/ibeckermayer/reply4me/internal/app"
	"github.com/ibeckermayer/reply4me/internal/assembler"
	"github.com/ibeckermayer/reply4me/internal/config"
	"github.com/ibeckermayer/reply4me/internal/ranker"
	"github.com/ibeckermayer/reply4me/internal/scheduler"
	"github.com/ibeckermayer/reply4me/internal/scorer"
	"github.com/ibeckermayer/reply4me/internal/selector"
	"github.com/ibeckermayer/reply4me/internal/store"
	"github.com/ibeckermayer/reply4me/internal/thread"
	"github.com/ibeckermayer/reply4me/internal/vision"
	"github.com/ibeckermayer/reply4me/internal/vision/providers"
)

func main() {
	once := flag.Bool("once", false, "run one enrichment and context pass, then exit")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		os.Exit(1)
	}
	defer logger.Sync()

	// Load or create configuration
	cfg, err := config.Load()
	if err != nil {
		if os.IsNotExist(err) {
			// First run - create default config
			cfg = config.Default()
			if err := cfg.Save(); err != nil {
				logger.Warn("could not save default config", zap.Error(err))
			} else {
				path, _ := config.ConfigPath()
				logger.Info("created default config", zap.String("path", path))
			}
		} else {
			logger.Warn("could not load config, using defaults", zap.Error(err))
			cfg = config.Default()
		}
	}

	dbPath := cfg.Storage.DBPath
	if dbPath == "" {
		cacheDir, err := config.CacheDir()
		if err != nil {
			logger.Fatal("failed to resolve cache dir", zap.Error(err))
		}
		dbPath = filepath.Join(cacheDir, "reply4me.db")
	}

	// A store we cannot open is fatal: better to exit non-zero and retry on
	// the next schedule than to attempt partial work.
	st, err := store.New(dbPath, logger)
	if err != nil {
		logger.Fatal("failed to open store", zap.String("path", dbPath), zap.Error(err))
	}
	defer st.Close()

	describer := providers.NewAnthropicDescriber(cfg.Vision.APIKey, cfg.Vision.Model)
	visionCache := vision.New(st, describer, cfg.Vision.Concurrency,
		time.Duration(cfg.Vision.FallbackRetryHours)*time.Hour, logger)

	walker := thread.New(st, cfg.Thread.MaxKept, cfg.Thread.MaxDepth, logger)

	builder := assembler.New(st, walker, visionCache, assembler.Config{
		AccountID:     cfg.Account.ID,
		AccountHandle: cfg.Account.Handle,
		RecentLimit:   cfg.Context.RecentLimit,
		RecentWindow:  time.Duration(cfg.Context.RecentWindowDays) * 24 * time.Hour,
	}, logger)

	postScorer := scorer.New(st, scorer.Weights{
		Like:    cfg.Engagement.LikeWeight,
		Reshare: cfg.Engagement.ReshareWeight,
		Reply:   cfg.Engagement.ReplyWeight,
	}, logger)

	postSelector := selector.New(st, cfg.Account.ID, cfg.Account.Handle,
		cfg.Selector.Keywords, cfg.Selector.PerPredicateLimit, logger)

	authorRanker := ranker.New(st, ranker.Weights{
		Follower:    cfg.Ranking.FollowerWeight,
		Post:        cfg.Ranking.PostWeight,
		Interaction: cfg.Ranking.InteractionWeight,
	}, cfg.Ranking.PriorityHandles,
		time.Duration(cfg.Ranking.FrequentWindowDays)*24*time.Hour, logger)

	a := app.New(st, postScorer, postSelector, authorRanker, builder,
		time.Duration(cfg.Engagement.LookbackHours)*time.Hour, logger)

	sched, err := scheduler.New(cfg.Schedule.Timezone, logger)
	if err != nil {
		logger.Fatal("failed to create scheduler", zap.Error(err))
	}

	if *once {
		if err := sched.RunNow("enrich-engagement", a.RunEnrich); err != nil {
			logger.Error("enrichment pass failed", zap.Error(err))
		}
		if err := sched.RunNow("build-context", a.RunContextPass); err != nil {
			logger.Error("context pass failed", zap.Error(err))
		}
		return
	}

	if err := sched.AddIntervalJob("enrich-engagement", cfg.Schedule.EnrichIntervalMinutes, a.RunEnrich); err != nil {
		logger.Fatal("failed to schedule enrichment job", zap.Error(err))
	}
	if err := sched.AddIntervalJob("build-context", cfg.Schedule.ContextIntervalMinutes, a.RunContextPass); err != nil {
		logger.Fatal("failed to schedule context job", zap.Error(err))
	}

	logger.Info("reply4me starting", zap.String("db", dbPath))
	sched.Start()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	logger.Info("shutting down")
	<-sched.Stop().Done()
}
