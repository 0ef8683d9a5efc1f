package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/connoryin/crawler/internal/config"
	"github.com/connoryin/crawler/internal/crawler"
	"github.com/connoryin/crawler/internal/logging"
)

// recommendedNoFile is the descriptor-limit floor a large crawl needs,
// and the value original_source/src/crawler/main.cpp's isUserConfirmed
// prompts to raise the soft limit to.
const recommendedNoFile = 65536

func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg := config.Defaults()

	if path, _ := cmd.Flags().GetString("config"); path != "" {
		if err := config.LoadYAML(path, &cfg); err != nil {
			return fmt.Errorf("loading config file: %w", err)
		}
	}
	overlayFlags(cmd, &cfg)

	if cfg.SeedFile == "" {
		return fmt.Errorf("--seed_file is required")
	}
	if _, err := os.Stat(cfg.SeedFile); err != nil {
		return fmt.Errorf("seed file: %w", err)
	}

	if !cfg.AssumeYes {
		if err := confirmStartup(&cfg); err != nil {
			return err
		}
	} else {
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return fmt.Errorf("creating data dir: %w", err)
		}
	}

	log, err := logging.New(cfg.LogPath, uuid.NewString())
	if err != nil {
		return fmt.Errorf("opening log: %w", err)
	}

	c, err := crawler.New(cfg, log)
	if err != nil {
		return fmt.Errorf("initializing crawler: %w", err)
	}

	if _, err := os.Stat(cfg.CheckpointPath); err == nil {
		loadCheckpoint := cfg.AssumeYes
		if !loadCheckpoint {
			loadCheckpoint = promptYesNo(fmt.Sprintf("found existing checkpoint at %s, load it?", cfg.CheckpointPath))
		}
		if loadCheckpoint {
			if err := c.LoadCheckpoint(cfg.CheckpointPath); err != nil {
				return fmt.Errorf("loading checkpoint: %w", err)
			}
		}
	}

	if err := c.LoadSeeds(); err != nil {
		return fmt.Errorf("loading seeds: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info(nil, "shutdown signal received")
		cancel()
	}()

	return c.Run(ctx)
}

// overlayFlags copies any flag the user explicitly set onto cfg, so a YAML
// file's values survive when the corresponding flag is left at its zero
// value.
func overlayFlags(cmd *cobra.Command, cfg *config.Crawler) {
	flags := cmd.Flags()
	if flags.Changed("seed_file") {
		cfg.SeedFile, _ = flags.GetString("seed_file")
	}
	if flags.Changed("num_threads") {
		cfg.NumThreads, _ = flags.GetInt("num_threads")
	}
	if flags.Changed("log_path") {
		cfg.LogPath, _ = flags.GetString("log_path")
	}
	if flags.Changed("data_dir") {
		cfg.DataDir, _ = flags.GetString("data_dir")
	}
	if flags.Changed("checkpoint_path") {
		cfg.CheckpointPath, _ = flags.GetString("checkpoint_path")
	}
	if flags.Changed("stats_refresh_interval") {
		cfg.StatsRefreshInterval, _ = flags.GetInt("stats_refresh_interval")
	}
	if flags.Changed("expected_num_urls") {
		cfg.ExpectedNumUrls, _ = flags.GetInt("expected_num_urls")
	}
	if flags.Changed("checkpoint_interval") {
		cfg.CheckpointInterval, _ = flags.GetInt("checkpoint_interval")
	}
	if flags.Changed("serverID") {
		cfg.ServerID, _ = flags.GetInt("serverID")
	}
	if flags.Changed("hostname_path") {
		cfg.HostnamePath, _ = flags.GetString("hostname_path")
	}
	if flags.Changed("assume_yes") {
		cfg.AssumeYes, _ = flags.GetBool("assume_yes")
	}
}

// confirmStartup implements the interactive checks of
// original_source/src/crawler/main.cpp's isUserConfirmed: the fd
// soft-limit floor, and creating the data directory if missing.
func confirmStartup(cfg *config.Crawler) error {
	var rlimit syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rlimit); err == nil {
		if rlimit.Cur < recommendedNoFile {
			if promptYesNo(fmt.Sprintf("open file descriptor soft limit is %d, recommended %d; raise it?", rlimit.Cur, recommendedNoFile)) {
				raised := rlimit
				raised.Cur = recommendedNoFile
				if raised.Cur > raised.Max {
					raised.Cur = raised.Max
				}
				_ = syscall.Setrlimit(syscall.RLIMIT_NOFILE, &raised)
			}
		}
	}

	if _, err := os.Stat(cfg.DataDir); os.IsNotExist(err) {
		if promptYesNo(fmt.Sprintf("data directory %s does not exist, create it?", cfg.DataDir)) {
			if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
				return fmt.Errorf("creating data dir: %w", err)
			}
		} else {
			return fmt.Errorf("data directory %s does not exist", cfg.DataDir)
		}
	}
	return nil
}

func promptYesNo(question string) bool {
	fmt.Printf("%s [y/N] ", question)
	reader := bufio.NewReader(os.Stdin)
	line, _ := reader.ReadString('\n')
	switch line {
	case "y\n", "Y\n", "yes\n":
		return true
	default:
		return false
	}
}
