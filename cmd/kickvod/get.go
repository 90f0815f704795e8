package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/famomatic/kickvod/client"
	"github.com/famomatic/kickvod/internal/archive"
	"github.com/famomatic/kickvod/internal/browser"
	"github.com/famomatic/kickvod/internal/platform/config"
	"github.com/famomatic/kickvod/internal/platform/logger"
)

var getCmd = &cobra.Command{
	Use:   "get",
	Short: "Archive a single VOD",
	Long: `Archives one VOD as mp3. Give either --channel to take the channel's
newest VOD, or --url for a direct variant playlist. Streaming mode keeps
polling the playlist until it stops growing, so a still-running broadcast is
captured to its end.`,
	RunE: runGet,
}

func init() {
	getCmd.Flags().String("channel", "", "channel whose newest VOD to archive")
	getCmd.Flags().String("url", "", "direct m3u8 playlist URL")
	getCmd.Flags().String("basename", "", "output base name (derived when empty)")
	getCmd.Flags().String("quality", client.DefaultQuality, "preferred variant quality")
	getCmd.Flags().String("download-dir", client.DefaultDownloadDir, "output directory")
	getCmd.Flags().Int("poll-seconds", 0, "seconds between playlist polls")
	getCmd.Flags().Bool("wait", false, "wait for the channel to go live, then retry until its VOD resolves")
	getCmd.Flags().Bool("bulk", false, "single-pass download, no live polling")
	getCmd.Flags().Bool("no-browser", false, "skip the headless browser")
	rootCmd.AddCommand(getCmd)
}

func runGet(cmd *cobra.Command, _ []string) error {
	_ = config.Load()

	channel, _ := cmd.Flags().GetString("channel")
	playlistURL, _ := cmd.Flags().GetString("url")
	if (channel == "") == (playlistURL == "") {
		return fmt.Errorf("give exactly one of --channel or --url")
	}

	slogger := logger.New(config.GetEnv("LOG_LEVEL", "info"), config.GetEnv("LOG_FORMAT", "text"))
	log := logger.Printf{L: slogger}

	quality, _ := cmd.Flags().GetString("quality")
	downloadDir, _ := cmd.Flags().GetString("download-dir")
	cfg := client.Config{
		Quality:     quality,
		DownloadDir: downloadDir,
		FFmpegPath:  config.GetEnv("FFMPEG_PATH", ""),
		Logger:      log,
	}

	if tr := archive.NewFFmpegTranscoder(cfg.FFmpegPath); !tr.Available() {
		log.Warnf("ffmpeg not found at %q; install it or set FFMPEG_PATH, transcoding will fail", tr.Path)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	noBrowser, _ := cmd.Flags().GetBool("no-browser")
	if !noBrowser && channel != "" {
		chrome, err := browser.NewChrome(ctx)
		if err != nil {
			log.Warnf("headless browser unavailable, using direct HTTP: %v", err)
		} else {
			defer chrome.Close()
			cfg.Fetcher = chrome
		}
	}

	c := client.New(cfg)

	basename, _ := cmd.Flags().GetString("basename")
	pollSeconds, _ := cmd.Flags().GetInt("poll-seconds")
	wait, _ := cmd.Flags().GetBool("wait")
	options := client.StreamOptions{Basename: basename, WaitForLive: wait}
	if pollSeconds > 0 {
		options.PollInterval = durationSetting(cmd, "poll-seconds", "POLL_SECONDS", client.DefaultPollInterval)
	}

	var (
		out string
		err error
	)
	switch {
	case channel != "":
		out, err = c.StreamLatestVOD(ctx, channel, options)
	default:
		if bulk, _ := cmd.Flags().GetBool("bulk"); bulk {
			out, err = c.DownloadPlaylist(ctx, playlistURL, basename)
		} else {
			out, err = c.StreamPlaylist(ctx, playlistURL, options)
		}
	}
	if err != nil {
		return err
	}
	log.Infof("saved %s", out)
	return nil
}
