package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"holidaycal/internal/dates"
	"holidaycal/internal/holiday"
	"holidaycal/internal/ics"
	"holidaycal/internal/report"
)

// viewFlags select what the read-only commands look at.
type viewFlags struct {
	query      string
	hideSchool bool
}

func (v *viewFlags) register(c *cobra.Command) {
	c.Flags().StringVarP(&v.query, "query", "q", "", `filter entries, e.g. "half term or easter and not 2025-04"`)
	c.Flags().BoolVar(&v.hideSchool, "hide-school", false, "hide standard school entries")
}

func (v *viewFlags) view() holiday.ViewState {
	return holiday.ViewState{Query: v.query, HideSchool: v.hideSchool}
}

func newLegendCmd(flags *rootFlags) *cobra.Command {
	var vf viewFlags
	c := &cobra.Command{
		Use:   "legend",
		Short: "Print the day counts of the selected year",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			sess, err := openSession(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			year, counts := sess.planner.Legend(vf.view())
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(tw, "Year\t%d\n", year)
			fmt.Fprintf(tw, "Public holidays\t%d\n", counts.Public)
			fmt.Fprintf(tw, "School holidays\t%d\n", counts.Standard)
			fmt.Fprintf(tw, "Manual school\t%d\n", counts.ManualSchool)
			fmt.Fprintf(tw, "Personal\t%d\n", counts.Personal)
			return tw.Flush()
		},
	}
	vf.register(c)
	return c
}

func newEventsCmd(flags *rootFlags) *cobra.Command {
	var vf viewFlags
	c := &cobra.Command{
		Use:   "events",
		Short: "Write the chronological events list of the selected year as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			sess, err := openSession(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			_, events := sess.planner.Events(vf.view())
			return report.WriteCSV(cmd.OutOrStdout(), events)
		},
	}
	vf.register(c)
	return c
}

func newClassifyCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "classify DATE",
		Short:   "Show how a single day is classified",
		Example: "holidaycal classify 2025-12-25",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			date := strings.TrimSpace(args[0])
			t, err := dates.Parse(date)
			if err != nil {
				return err
			}

			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			sess, err := openSession(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			if err := sess.planner.SetYear(cmd.Context(), t.Year()); err != nil {
				return err
			}

			snap := sess.planner.Snapshot()
			cl := holiday.ClassifyDate(date, snap.Public, snap.School)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %s\n", cl.Date, cl.Category)
			for _, l := range cl.Labels {
				fmt.Fprintf(out, "  %s\n", l)
			}
			return nil
		},
	}
}

func newImportCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "import URL|FILE",
		Short: "Merge an ICS calendar into the saved session",
		Long:  "Import events from a calendar URL (http, https or webcal) or a local .ics file and save the result.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			sess, err := openSession(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			target := args[0]
			var res ics.ImportResult
			if isURL(target) {
				res = sess.planner.Import(cmd.Context(), target)
			} else {
				body, err := os.ReadFile(target)
				if err != nil {
					return err
				}
				res = sess.planner.ImportData(target, body)
			}

			fmt.Fprintln(cmd.OutOrStdout(), res.Message)
			if !res.Success {
				return errors.New("import failed")
			}
			return sess.save()
		},
	}
}

func isURL(s string) bool {
	lower := strings.ToLower(s)
	for _, scheme := range []string{"http://", "https://", "webcal://"} {
		if strings.HasPrefix(lower, scheme) {
			return true
		}
	}
	return false
}

func newExportCmd(flags *rootFlags) *cobra.Command {
	var (
		vf  viewFlags
		out string
	)
	c := &cobra.Command{
		Use:   "export-ics",
		Short: "Export the visible entries of the selected year as an ICS calendar",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			sess, err := openSession(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			body, err := ics.ExportCalendar(sess.planner.Holidays(vf.view()), time.Now())
			if err != nil {
				return err
			}
			if out == "" || out == "-" {
				_, err = fmt.Fprint(cmd.OutOrStdout(), body)
				return err
			}
			return os.WriteFile(out, []byte(body), 0o644)
		},
	}
	vf.register(c)
	c.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")
	return c
}
