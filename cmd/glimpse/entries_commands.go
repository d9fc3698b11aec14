package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"glimpse/internal/archive"
	"glimpse/internal/entries"
	"glimpse/internal/fileutil"
	"glimpse/internal/ipc"
	"glimpse/internal/textutil"
)

const titleColumnWidth = 48

func newEntriesCommand(ctx *commandContext) *cobra.Command {
	var (
		since     string
		until     string
		app       string
		text      string
		archived  bool
		loose     bool
		limit     int
		offset    int
		ascending bool
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:     "entries",
		Aliases: []string{"ls"},
		Short:   "List captured entries, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			if archived && loose {
				return errors.New("--archived and --loose are mutually exclusive")
			}
			now := time.Now()
			req := ipc.EntriesRequest{
				AppName:   strings.TrimSpace(app),
				Text:      strings.TrimSpace(text),
				Limit:     limit,
				Offset:    offset,
				Ascending: ascending,
			}
			var err error
			if req.Since, err = parseTimeFlag(since, now); err != nil {
				return fmt.Errorf("--since: %w", err)
			}
			if req.Until, err = parseTimeFlag(until, now); err != nil {
				return fmt.Errorf("--until: %w", err)
			}
			switch {
			case archived:
				req.Archived = entries.Bool(true)
			case loose:
				req.Archived = entries.Bool(false)
			}

			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Entries(req)
				if err != nil {
					return err
				}
				return printEntries(cmd, resp.Entries, asJSON)
			})
		},
	}

	cmd.Flags().StringVar(&since, "since", "", "Only entries at or after this time (duration like 2h, date, or RFC3339)")
	cmd.Flags().StringVar(&until, "until", "", "Only entries before this time")
	cmd.Flags().StringVar(&app, "app", "", "Filter by application name")
	cmd.Flags().StringVarP(&text, "query", "q", "", "Substring match on title, text or app name")
	cmd.Flags().BoolVar(&archived, "archived", false, "Only archived entries")
	cmd.Flags().BoolVar(&loose, "loose", false, "Only entries whose screenshot is not archived yet")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of entries (0 for no limit)")
	cmd.Flags().IntVar(&offset, "offset", 0, "Number of entries to skip")
	cmd.Flags().BoolVar(&ascending, "asc", false, "Oldest first")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit entries as JSON")
	return cmd
}

func newSearchCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "search <text>",
		Short: "Search entry titles, extracted text and app names",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.TrimSpace(strings.Join(args, " "))
			if query == "" {
				return errors.New("search text is required")
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Search(query, limit)
				if err != nil {
					return err
				}
				return printEntries(cmd, resp.Entries, asJSON)
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of results")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit results as JSON")
	return cmd
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one entry including its extracted text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Entry(strings.TrimSpace(args[0]))
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp.Entry)
				}
				cfg, err := ctx.ensureConfig()
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderEntry(resp.Entry, archive.Path(cfg, resp.Entry)))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit the entry as JSON")
	return cmd
}

func newExportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "export <id> <destination>",
		Short: "Write an entry's screenshot to a file, decompressing archived images",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Entry(strings.TrimSpace(args[0]))
				if err != nil {
					return err
				}
				data, err := archive.Open(cfg, resp.Entry)
				if err != nil {
					return fmt.Errorf("read image: %w", err)
				}
				dest, err := exportDestination(args[1], resp.Entry)
				if err != nil {
					return err
				}
				if err := fileutil.WriteFileAtomic(dest, data, 0o644); err != nil {
					return fmt.Errorf("write %s: %w", dest, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Exported %s to %s (%d bytes)\n", resp.Entry.ID, dest, len(data))
				return nil
			})
		},
	}
}

// exportDestination resolves target to a file path; an existing directory
// receives the entry's original filename.
func exportDestination(target string, entry entries.Entry) (string, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return "", errors.New("destination is required")
	}
	info, err := os.Stat(target)
	if err == nil && info.IsDir() {
		return filepath.Join(target, filepath.Base(entry.Filename)), nil
	}
	if err != nil && !os.IsNotExist(err) {
		return "", err
	}
	return target, nil
}

func printEntries(cmd *cobra.Command, list []entries.Entry, asJSON bool) error {
	if asJSON {
		return writeJSONList(cmd, list)
	}
	out := cmd.OutOrStdout()
	if len(list) == 0 {
		fmt.Fprintln(out, "No entries")
		return nil
	}
	rows := make([][]string, 0, len(list))
	for _, e := range list {
		rows = append(rows, []string{
			e.ID,
			formatWhen(e.Timestamp),
			strconv.Itoa(e.Display),
			e.AppName,
			e.Title,
			yesNo(e.HasText()),
			yesNo(e.Archived),
		})
	}
	fmt.Fprintln(out, renderTable([]column{
		{Header: "ID"},
		{Header: "Time"},
		{Header: "Display", Align: alignRight},
		{Header: "App"},
		{Header: "Title", MaxWidth: titleColumnWidth},
		{Header: "Text"},
		{Header: "Archived"},
	}, rows))
	return nil
}

func renderEntry(e entries.Entry, imagePath string) string {
	lines := []string{
		renderValueLine("ID", e.ID),
		renderValueLine("Time", formatWhen(e.Timestamp)),
		renderValueLine("Display", strconv.Itoa(e.Display)),
		renderValueLine("App", e.AppName),
		renderValueLine("Title", e.Title),
	}
	if e.PageURL != nil && *e.PageURL != "" {
		lines = append(lines, renderValueLine("URL", *e.PageURL))
	}
	lines = append(lines,
		renderValueLine("Image", imagePath),
		renderValueLine("Archived", yesNo(e.Archived)),
	)
	if e.Fingerprint != "" {
		lines = append(lines, renderValueLine("Fingerprint", e.Fingerprint))
	}
	if e.HasText() {
		lines = append(lines, "", textutil.NormalizeLines(*e.Text))
	}
	return strings.Join(lines, "\n")
}

// parseTimeFlag accepts a duration before now, a local date, or RFC3339.
func parseTimeFlag(raw string, now time.Time) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	if d, err := time.ParseDuration(raw); err == nil {
		if d < 0 {
			return time.Time{}, fmt.Errorf("duration %q must be positive", raw)
		}
		return now.Add(-d), nil
	}
	if t, err := time.ParseInLocation("2006-01-02", raw, time.Local); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid time %q: want a duration (2h), a date (2006-01-02) or RFC3339", raw)
}
