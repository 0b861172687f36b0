package cli

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/tkingovr/postguard/api"
	"github.com/tkingovr/postguard/internal/classifier"
)

// maxScanLine bounds a single input line.
const maxScanLine = 4 << 20

var scanFile string

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Classify a batch of posts, one per line",
	Long: `Read posts from a file or stdin and print one JSON result per line.
Lines that are JSON objects are read through the configured content field;
any other line is classified as plain text. Exits with status 2 when any
post was blocked.`,
	Example: `  postguard scan --file posts.jsonl
  cat export.txt | postguard scan -c policy.yaml`,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().StringVarP(&scanFile, "file", "f", "-", "input file (- for stdin)")
	rootCmd.AddCommand(scanCmd)
}

// scanResult is one output line of the scan command.
type scanResult struct {
	Line int `json:"line"`
	api.FilterResult
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	in := cmd.InOrStdin()
	if scanFile != "-" {
		f, err := os.Open(scanFile)
		if err != nil {
			return fmt.Errorf("opening %s: %w", scanFile, err)
		}
		defer f.Close()
		in = f
	}

	blocked, total, err := scanLines(in, cmd.OutOrStdout(), cfg.Classifier, cfg.ContentField)
	if err != nil {
		return err
	}
	logger.Debug("scan complete", "posts", total, "blocked", blocked)
	if blocked > 0 {
		return ErrBlocked
	}
	return nil
}

func scanLines(in io.Reader, out io.Writer, c *classifier.Classifier, field string) (blocked, total int, err error) {
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 64*1024), maxScanLine)
	enc := json.NewEncoder(out)

	line := 0
	for sc.Scan() {
		line++
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 {
			continue
		}
		res := c.Classify(lineContent(raw, field))
		total++
		if res.Blocked {
			blocked++
		}
		if err := enc.Encode(scanResult{Line: line, FilterResult: res}); err != nil {
			return blocked, total, err
		}
	}
	if err := sc.Err(); err != nil {
		return blocked, total, fmt.Errorf("reading input: %w", err)
	}
	return blocked, total, nil
}

// lineContent extracts the post text from a JSONL record, or returns the
// line itself when it is not a JSON object carrying a string field.
func lineContent(raw []byte, field string) string {
	if raw[0] == '{' {
		var obj map[string]any
		if json.Unmarshal(raw, &obj) == nil {
			if s, ok := obj[field].(string); ok {
				return s
			}
		}
	}
	return string(raw)
}
