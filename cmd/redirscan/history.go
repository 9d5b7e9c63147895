package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nao1215/redirscan/internal/config"
	"github.com/nao1215/redirscan/internal/database"
	"github.com/nao1215/redirscan/internal/history"
	"github.com/nao1215/redirscan/internal/model"
)

// defaultHistoryLimit is the number of archived analyses listed by default.
const defaultHistoryLimit = 20

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [url]",
		Short: "Show archived analyses of a URL",
		Long: `History lists the archived analyses of a URL, newest first, and shows
how the two latest results differ in hop count, final destination and final
status code.

Analyses are archived by 'redirscan trace --save'.

Examples:
  # List archived analyses and diff the latest two
  redirscan history https://bit.ly/example

  # Diff the latest analysis against a specific archived one
  redirscan history --with-id 3 https://bit.ly/example

  # Output the diff as JSON
  redirscan history --json https://bit.ly/example

  # List every archived URL
  redirscan history --list-urls`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().BoolP("list-urls", "L", false,
		"List every URL in the archive")
	cmd.Flags().IntP("limit", "n", defaultHistoryLimit,
		"Maximum number of analyses listed (0 lists all)")
	cmd.Flags().Int64P("with-id", "i", 0,
		"Diff the latest analysis against the archived analysis with this ID")
	cmd.Flags().BoolP("json", "j", false,
		"Output the diff as JSON")
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory of the report archive")

	return cmd
}

func runHistoryCmd(cmd *cobra.Command, args []string) error {
	listURLs, err := cmd.Flags().GetBool("list-urls")
	if err != nil {
		return err
	}

	// Validate before opening the database so a bad argument leaves no file behind.
	var target string
	if !listURLs {
		if len(args) == 0 {
			return errors.New("a URL is required (use --list-urls to see archived URLs)")
		}
		target = strings.TrimSpace(args[0])
		if err := config.ValidateTargetURL(target); err != nil {
			return err
		}
	}

	dbDir, err := cmd.Flags().GetString("db-dir")
	if err != nil {
		return err
	}
	db, err := database.Open(dbDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := commandContext(cmd)
	out := cmd.OutOrStdout()

	if listURLs {
		return listArchivedURLs(ctx, out, db)
	}

	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}
	withID, err := cmd.Flags().GetInt64("with-id")
	if err != nil {
		return err
	}
	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}

	if !jsonOutput {
		if err := listAnalyses(ctx, out, db, target, limit); err != nil {
			return err
		}
	}

	diff, err := diffArchived(ctx, db, target, withID)
	if errors.Is(err, database.ErrNotEnoughHistory) && !jsonOutput {
		fmt.Fprintln(out, "\nAt least two archived analyses are needed for a comparison.")
		return nil
	}
	if err != nil {
		return err
	}

	if jsonOutput {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(diff)
	}
	writeDiff(out, diff)
	return nil
}

func listArchivedURLs(ctx context.Context, out io.Writer, db *database.ArchiveDB) error {
	urls, err := db.ListURLs(ctx)
	if err != nil {
		return err
	}
	if len(urls) == 0 {
		fmt.Fprintln(out, "No archived analyses found.")
		fmt.Fprintln(out, "\nUse 'redirscan trace --save <url>' to archive an analysis.")
		return nil
	}
	fmt.Fprintf(out, "Archived URLs (%d):\n\n", len(urls))
	for _, u := range urls {
		fmt.Fprintf(out, "  %s\n", u)
	}
	return nil
}

func listAnalyses(ctx context.Context, out io.Writer, db *database.ArchiveDB, target string, limit int) error {
	metas, err := db.History(ctx, target, limit)
	if err != nil {
		return err
	}
	if len(metas) == 0 {
		fmt.Fprintf(out, "No archived analyses found for %s\n", target)
		fmt.Fprintln(out, "\nUse 'redirscan trace --save <url>' to archive an analysis.")
		return nil
	}

	fmt.Fprintf(out, "Archived analyses of %s (%d):\n\n", target, len(metas))
	fmt.Fprintf(out, "  %-6s  %-20s  %-4s  %-6s  %-12s  %s\n", "ID", "Date", "Hops", "Status", "Risk", "Final URL")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 80))
	for _, meta := range metas {
		fmt.Fprintf(out, "  %-6d  %-20s  %-4d  %-6d  %-12s  %s\n",
			meta.ID,
			meta.AnalyzedAt.Format("2006-01-02 15:04:05"),
			meta.HopCount,
			meta.FinalStatus,
			fmt.Sprintf("%s (%d)", meta.RiskLevel, meta.RiskScore),
			meta.FinalURL,
		)
	}
	return nil
}

// diffArchived compares the latest archived analysis of target with the
// previous one, or with the analysis withID when it is set.
func diffArchived(ctx context.Context, db *database.ArchiveDB, target string, withID int64) (*model.HistoryDiff, error) {
	if withID == 0 {
		return db.DiffLatest(ctx, target)
	}

	older, err := db.ReportByID(ctx, withID)
	if err != nil {
		return nil, err
	}
	if history.Key(older.Chain.InitialURL) != history.Key(target) {
		return nil, fmt.Errorf("analysis %d belongs to %s, not %s", withID, older.Chain.InitialURL, target)
	}
	latest, err := db.LatestReports(ctx, target, 1)
	if err != nil {
		return nil, err
	}
	if len(latest) == 0 {
		return nil, fmt.Errorf("%w: id %d", database.ErrReportNotFound, withID)
	}
	return history.Diff(older.Chain, latest[0].Chain), nil
}

func writeDiff(out io.Writer, diff *model.HistoryDiff) {
	fmt.Fprintln(out)
	if !diff.Changed {
		fmt.Fprintln(out, "No changes between the compared analyses.")
		return
	}
	fmt.Fprintf(out, "Changes (%d):\n", len(diff.Changes))
	for _, c := range diff.Changes {
		fmt.Fprintf(out, "  %-18s %s -> %s\n", c.Type, c.Old, c.New)
	}
}
