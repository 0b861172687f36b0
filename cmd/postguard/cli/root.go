package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// ErrBlocked is returned by check and scan when content was blocked, so the
// process can exit with a distinct status.
var ErrBlocked = errors.New("content blocked")

var (
	cfgFile   string
	verbose   bool
	logFormat string
	logger    *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "postguard",
	Short: "postguard: content safety gate for agent-authored posts",
	Long: `postguard screens posts written by autonomous agents before they are
published to a shared feed. It blocks shell commands, leaked secrets,
transactions against unknown contracts, social engineering and suspicious
links, and records every decision for operators.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// A missing .env is normal; anything else is worth reporting.
		if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("loading .env: %w", err)
		}

		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		opts := &slog.HandlerOptions{Level: level}
		switch logFormat {
		case "json":
			logger = slog.New(slog.NewJSONHandler(os.Stderr, opts))
		case "text":
			logger = slog.New(slog.NewTextHandler(os.Stderr, opts))
		default:
			return fmt.Errorf("unknown log format %q (want json or text)", logFormat)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "policy config file (YAML)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "json", "log format: json or text")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
