package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/vantage-tools/vantage/internal/models"
	"github.com/vantage-tools/vantage/internal/store"
	"golang.org/x/term"
)

func newLogsCmd() *cobra.Command {
	var (
		configPath string
		limit      int
		offset     int
		level      string
		url        string
		since      string
		until      string
		raw        bool
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "View captured console logs",
		Long:  "Lists stored console log records, oldest first. Supports filtering by level, page URL, and capture-time range.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogsList(cmd, configPath, logsOpts{
				limit:  limit,
				offset: offset,
				level:  level,
				url:    url,
				since:  since,
				until:  until,
				raw:    raw,
			})
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Vantage config file")
	cmd.Flags().IntVarP(&limit, "limit", "n", 100, "maximum number of records to show")
	cmd.Flags().IntVar(&offset, "offset", 0, "number of records to skip")
	cmd.Flags().StringVar(&level, "level", "", "filter by level (log, info, warn, error)")
	cmd.Flags().StringVar(&url, "url", "", "filter by page URL")
	cmd.Flags().StringVar(&since, "since", "", "only records captured at or after this RFC 3339 time")
	cmd.Flags().StringVar(&until, "until", "", "only records captured at or before this RFC 3339 time")
	cmd.Flags().BoolVar(&raw, "raw", false, "show full messages instead of truncating to terminal width")

	cmd.AddCommand(newLogsSearchCmd())
	cmd.AddCommand(newLogsClearCmd())
	return cmd
}

type logsOpts struct {
	limit  int
	offset int
	level  string
	url    string
	since  string
	until  string
	raw    bool
}

func runLogsList(cmd *cobra.Command, configPath string, opts logsOpts) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	st, _, err := openStore(cfg)
	if err != nil {
		return err
	}

	filter := store.Filter{Level: opts.level, URL: opts.url}
	filter.StartTime, err = parseFlagTime("since", opts.since)
	if err != nil {
		return err
	}
	filter.EndTime, err = parseFlagTime("until", opts.until)
	if err != nil {
		return err
	}

	records, err := st.Query(opts.limit, opts.offset, filter)
	if err != nil {
		return fmt.Errorf("query logs: %w", err)
	}
	printRecords(cmd.OutOrStdout(), records, opts.raw)
	return nil
}

func newLogsSearchCmd() *cobra.Command {
	var (
		configPath string
		limit      int
		raw        bool
	)

	cmd := &cobra.Command{
		Use:   "search <text>",
		Short: "Search console log messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			st, _, err := openStore(cfg)
			if err != nil {
				return err
			}
			records, err := st.Search(args[0], limit)
			if err != nil {
				return fmt.Errorf("search logs: %w", err)
			}
			printRecords(cmd.OutOrStdout(), records, raw)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Vantage config file")
	cmd.Flags().IntVarP(&limit, "limit", "n", 100, "maximum number of matches to show")
	cmd.Flags().BoolVar(&raw, "raw", false, "show full messages instead of truncating to terminal width")
	return cmd
}

func newLogsClearCmd() *cobra.Command {
	var (
		configPath string
		yes        bool
	)

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete all stored console logs",
		Long:  "Irreversibly removes every stored record. Prompts for confirmation unless --yes is given.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			st, _, err := openStore(cfg)
			if err != nil {
				return err
			}

			if !yes && !confirm(cmd.InOrStdin(), cmd.OutOrStdout()) {
				fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
				return nil
			}

			deleted, err := st.ClearAll()
			if err != nil {
				return fmt.Errorf("clear logs: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d records.\n", deleted)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Vantage config file")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

// confirm asks for a y/N answer on the command's input stream.
func confirm(in io.Reader, out io.Writer) bool {
	fmt.Fprint(out, "Delete all stored logs? [y/N] ")
	answer, _ := bufio.NewReader(in).ReadString('\n')
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}

// printRecords writes one line per record, truncated to the terminal width
// unless raw is set.
func printRecords(out io.Writer, records []models.LogRecord, raw bool) {
	if len(records) == 0 {
		fmt.Fprintln(out, "No log records found.")
		return
	}

	width := 0
	if !raw {
		width = terminalWidth()
	}
	for _, rec := range records {
		printRecord(out, rec, width)
	}
}

func printRecord(out io.Writer, rec models.LogRecord, width int) {
	line := fmt.Sprintf("%6d  %s  %-5s  %s", rec.ID, rec.Timestamp.Format(time.RFC3339), rec.Level, oneLine(rec.Message))
	if rec.URL != "" {
		line += "  (" + rec.URL + ")"
	}
	// Truncate on rune boundaries so multi-byte messages stay valid UTF-8.
	if runes := []rune(line); width > 0 && len(runes) > width {
		line = string(runes[:width-1]) + "…"
	}
	fmt.Fprintln(out, line)
}

// oneLine collapses newlines so each record occupies a single row.
func oneLine(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "\r\n", " "), "\n", " ")
}

// terminalWidth returns the current terminal width, or 0 when stdout is not
// a terminal.
func terminalWidth() int {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return 0
	}
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return 0
	}
	return width
}

// parseFlagTime parses an optional RFC 3339 flag value.
func parseFlagTime(name, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return nil, fmt.Errorf("--%s must be RFC 3339, got %q", name, value)
	}
	return &t, nil
}
