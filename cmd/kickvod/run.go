package main

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/famomatic/kickvod/client"
	"github.com/famomatic/kickvod/internal/archive"
	"github.com/famomatic/kickvod/internal/browser"
	"github.com/famomatic/kickvod/internal/platform/config"
	"github.com/famomatic/kickvod/internal/platform/logger"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Watch channels and archive new VODs",
	Long: `Polls each configured channel for unprocessed VODs and archives them
as mp3. Channels come from --channels or the CHANNELS environment variable
(comma separated). Runs until interrupted.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringSlice("channels", nil, "channels to watch (default $CHANNELS)")
	runCmd.Flags().String("quality", "", "preferred variant quality (default $QUALITY or "+client.DefaultQuality+")")
	runCmd.Flags().Int("poll-seconds", 0, "seconds between polls while work is pending (default $POLL_SECONDS or 60)")
	runCmd.Flags().Int("live-check-seconds", 0, "seconds between polls while idle (default $LIVE_CHECK_SECONDS or 60)")
	runCmd.Flags().String("download-dir", "", "output directory (default $DOWNLOAD_DIR or "+client.DefaultDownloadDir+")")
	runCmd.Flags().String("metrics-addr", "", "listen address for /metrics, empty disables (default $METRICS_ADDR)")
	runCmd.Flags().Bool("no-browser", false, "skip the headless browser; resolution degrades to direct HTTP")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, _ []string) error {
	_ = config.Load()

	slogger := logger.New(config.GetEnv("LOG_LEVEL", "info"), config.GetEnv("LOG_FORMAT", "text"))
	log := logger.Printf{L: slogger}

	channels, _ := cmd.Flags().GetStringSlice("channels")
	if len(channels) == 0 {
		channels = config.GetEnvList("CHANNELS")
	}
	if len(channels) == 0 {
		return fmt.Errorf("no channels configured: set --channels or CHANNELS")
	}

	cfg := client.Config{
		Channels:          channels,
		Quality:           stringSetting(cmd, "quality", "QUALITY", client.DefaultQuality),
		PollInterval:      durationSetting(cmd, "poll-seconds", "POLL_SECONDS", client.DefaultPollInterval),
		LiveCheckInterval: durationSetting(cmd, "live-check-seconds", "LIVE_CHECK_SECONDS", client.DefaultLiveCheckInterval),
		DownloadDir:       stringSetting(cmd, "download-dir", "DOWNLOAD_DIR", client.DefaultDownloadDir),
		MetricsAddr:       stringSetting(cmd, "metrics-addr", "METRICS_ADDR", ""),
		FFmpegPath:        config.GetEnv("FFMPEG_PATH", ""),
		Logger:            log,
	}

	if tr := archive.NewFFmpegTranscoder(cfg.FFmpegPath); !tr.Available() {
		log.Warnf("ffmpeg not found at %q; install it or set FFMPEG_PATH, archiving will fail", tr.Path)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	noBrowser, _ := cmd.Flags().GetBool("no-browser")
	if !noBrowser {
		chrome, err := browser.NewChrome(ctx)
		if err != nil {
			return fmt.Errorf("headless browser: %w (use --no-browser to run without one)", err)
		}
		defer chrome.Close()
		cfg.Fetcher = chrome
	}

	c := client.New(cfg)
	log.Infof("watching channels: %s", strings.Join(channels, ", "))

	summary, err := c.Run(ctx)
	if err != nil {
		return err
	}
	for channel, werr := range summary.WorkerErrors {
		log.Errorf("worker %s failed: %v", channel, werr)
	}
	if summary.Interrupted {
		log.Infof("interrupted, partial work finalized")
		return nil
	}
	if len(summary.WorkerErrors) > 0 {
		return fmt.Errorf("%d worker(s) stopped on errors", len(summary.WorkerErrors))
	}
	return nil
}

func stringSetting(cmd *cobra.Command, flag, envKey, fallback string) string {
	if v, _ := cmd.Flags().GetString(flag); v != "" {
		return v
	}
	return config.GetEnv(envKey, fallback)
}

func durationSetting(cmd *cobra.Command, flag, envKey string, fallback time.Duration) time.Duration {
	if v, _ := cmd.Flags().GetInt(flag); v > 0 {
		return time.Duration(v) * time.Second
	}
	if v := config.GetEnvInt(envKey, 0); v > 0 {
		return time.Duration(v) * time.Second
	}
	return fallback
}
