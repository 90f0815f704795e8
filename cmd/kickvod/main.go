package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "kickvod",
	Short: "Kick VOD archiver",
	Long:  `Archives Kick channel VODs as audio: watches channels, downloads HLS segments and extracts mp3 via ffmpeg.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
