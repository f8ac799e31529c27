package main

import (
	"fmt"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/root4loot/snapdeck/internal/config"
	"github.com/root4loot/snapdeck/internal/history"
	"github.com/spf13/cobra"
)

const timeLayout = "2006-01-02 15:04:05"

// NewHistoryCmd creates the history command.
func NewHistoryCmd(f *rootFlags) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "List recorded runs",
		Long: `History lists the runs recorded with --history, most recent first.
Given a run ID it prints the outcome of every target of that run.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(f.configPath)
			if err != nil {
				return err
			}

			db, err := history.Open(cfg.History.Dir)
			if err != nil {
				return err
			}
			defer db.Close()

			md := markdown.NewMarkdown(cmd.OutOrStdout())

			if len(args) == 1 {
				id, err := strconv.ParseInt(args[0], 10, 64)
				if err != nil {
					return fmt.Errorf("invalid run id %q", args[0])
				}
				if err := showRun(cmd, db, md, id); err != nil {
					return err
				}
				return md.Build()
			}

			if err := listRuns(cmd, db, md, limit); err != nil {
				return err
			}
			return md.Build()
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs to show, 0 for all")

	return cmd
}

func listRuns(cmd *cobra.Command, db *history.DB, md *markdown.Markdown, limit int) error {
	runs, err := db.ListRuns(cmd.Context(), limit)
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		md.PlainText("No runs recorded.")
		return nil
	}

	rows := make([][]string, len(runs))
	for i, r := range runs {
		output := r.Output
		if output == "" {
			output = "-"
		}
		rows[i] = []string{
			strconv.FormatInt(r.ID, 10),
			r.StartedAt.Local().Format(timeLayout),
			r.Mode,
			r.Name,
			fmt.Sprintf("%d/%d", r.Succeeded, r.Attempted),
			strconv.Itoa(r.Pages),
			output,
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"ID", "Started", "Mode", "Name", "Captured", "Pages", "Document"},
		Rows:   rows,
	})
	return nil
}

func showRun(cmd *cobra.Command, db *history.DB, md *markdown.Markdown, id int64) error {
	run, err := db.GetRun(cmd.Context(), id)
	if err != nil {
		return err
	}

	outcomes, err := db.Targets(cmd.Context(), id)
	if err != nil {
		return err
	}

	md.H2(fmt.Sprintf("Run %d: %s", run.ID, run.Name))
	md.PlainText("")

	rows := make([][]string, len(outcomes))
	for i, o := range outcomes {
		detail := o.Error
		if detail == "" {
			detail = "-"
		}
		rows[i] = []string{strconv.Itoa(o.Index + 1), o.URL, o.Status, detail}
	}

	md.Table(markdown.TableSet{
		Header: []string{"#", "URL", "Status", "Detail"},
		Rows:   rows,
	})
	return nil
}
