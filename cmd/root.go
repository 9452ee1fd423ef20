package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/tanq16/hoard/internal/config"
	"github.com/tanq16/hoard/internal/utils"
)

var (
	configPath    string
	debug         bool
	actionFile    string
	cacheDir      string
	journalPath   string
	workers       int
	removers      int
	maxRetries    int
	retryBackoff  time.Duration
	timeout       time.Duration
	kaTimeout     time.Duration
	userAgent     string
	proxyURL      string
	proxyUsername string
	proxyPassword string
	bearerToken   string
	s3Profile     string
	headers       []string
)

var HoardVersion = "dev"

var rootCmd = &cobra.Command{
	Use:     "hoard",
	Short:   "Hoard keeps media segments downloaded for offline use",
	Version: HoardVersion,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		utils.InitLogger(debug)
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath, "Path to the YAML config file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&actionFile, "action-file", "", "Path of the persisted action log")
	rootCmd.PersistentFlags().StringVar(&cacheDir, "cache-dir", "", "Directory holding downloaded segments")
	rootCmd.PersistentFlags().StringVar(&journalPath, "journal", "", "SQLite file recording task transitions")
	rootCmd.PersistentFlags().IntVarP(&workers, "workers", "w", 0, "Number of downloads to run in parallel")
	rootCmd.PersistentFlags().IntVar(&removers, "removers", 0, "Number of removals to run in parallel")
	rootCmd.PersistentFlags().IntVar(&maxRetries, "retries", -1, "Automatic retries before a task fails")
	rootCmd.PersistentFlags().DurationVar(&retryBackoff, "retry-backoff", 0, "Delay before the first retry, doubled on every further retry")
	rootCmd.PersistentFlags().DurationVarP(&timeout, "timeout", "t", 0, "Connection timeout (eg. 5s, 10m)")
	rootCmd.PersistentFlags().DurationVarP(&kaTimeout, "keep-alive-timeout", "k", 0, "Keep-alive timeout for client (eg. 10s, 1m, 80s)")
	rootCmd.PersistentFlags().StringVarP(&userAgent, "user-agent", "a", "", "User agent ('randomize' picks a browser agent)")
	rootCmd.PersistentFlags().StringVarP(&proxyURL, "proxy", "p", "", "HTTP/HTTPS proxy URL (e.g., proxy.example.com:8080)")
	rootCmd.PersistentFlags().StringVar(&proxyUsername, "proxy-username", "", "Proxy username (if not provided in proxy URL)")
	rootCmd.PersistentFlags().StringVar(&proxyPassword, "proxy-password", "", "Proxy password (if not provided in proxy URL)")
	rootCmd.PersistentFlags().StringVar(&bearerToken, "token", "", "Bearer token sent with HTTP requests")
	rootCmd.PersistentFlags().StringVar(&s3Profile, "profile", "", "AWS profile used for s3 content")
	rootCmd.PersistentFlags().StringArrayVarP(&headers, "header", "H", []string{}, "Custom headers (like 'Authorization: Basic dXNlcjpwYXNz'); can be specified multiple times")

	rootCmd.AddCommand(newAddCmd())
	rootCmd.AddCommand(newRemoveCmd())
	rootCmd.AddCommand(newListCmd())
	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newBatchCmd())
	rootCmd.AddCommand(newEventsCmd())
	rootCmd.AddCommand(newPruneCmd())
}
