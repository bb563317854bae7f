package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/quelio/engine/accounting"
)

func newComputeCmd(a *app) *cobra.Command {
	var (
		format string
		at     string
		legacy bool
	)
	cmd := &cobra.Command{
		Use:   "compute FILE",
		Short: "Compute a report from a JSON punch file",
		Long: `Reads punches from FILE ("-" for stdin) and prints the weekly report.

FILE holds either one object mapping days to punch lists,
  {"14/01/2026": ["08:30", "12:00", "13:00", "18:30"]}
or a list of such objects, one per portal page. Days may be written
DD/MM/YYYY or DD-MM-YYYY.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			punches, err := decodePunches(data)
			if err != nil {
				return err
			}
			now, err := parseNow(at)
			if err != nil {
				return err
			}
			loc, err := a.cfg.Location()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if legacy {
				local := now.In(loc)
				today, minute := accounting.DayKeyOf(local), accounting.MinuteOfDay(local)
				effective, err := accounting.ComputeTotal(punches, a.cfg.Rules, 0, today, minute)
				if err != nil {
					return err
				}
				paid, err := accounting.ComputeTotal(punches, a.cfg.Rules, a.cfg.Rules.BreakCredit, today, minute)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "total_effective %s\ntotal_paid %s\n", effective, paid)
				return nil
			}

			report, err := accounting.Accountant{Rules: a.cfg.Rules, Location: loc}.Compute(punches, now)
			if err != nil {
				return err
			}
			return writeReport(out, report, format)
		},
	}
	cmd.Flags().StringVar(&format, "format", formatText, "Output format: text, json")
	cmd.Flags().StringVar(&at, "now", "", "Evaluate as of this RFC 3339 instant (default: current time)")
	cmd.Flags().BoolVar(&legacy, "legacy", false, "Print only the flat totals older clients display")
	return cmd
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		buf, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("reading stdin: %w", err)
		}
		return buf, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return data, nil
}

// decodePunches accepts a single fragment or a list of fragments and merges
// them.
func decodePunches(data []byte) (accounting.Punches, error) {
	var single accounting.RawFragment
	if err := json.Unmarshal(data, &single); err == nil {
		return accounting.Merge(single), nil
	}
	var pages []accounting.RawFragment
	if err := json.Unmarshal(data, &pages); err != nil {
		return nil, errors.New("punch file must be an object of day -> punches or a list of such objects")
	}
	return accounting.Merge(pages...), nil
}

func parseNow(value string) (time.Time, error) {
	if value == "" {
		return time.Now(), nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("--now: %w", err)
	}
	return t, nil
}
