package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/warp/absence-engine/absence"
	"github.com/warp/absence-engine/engine"
	"github.com/warp/absence-engine/factory"
	"github.com/warp/absence-engine/generic"
)

func simulateCmd() *cobra.Command {
	var (
		personID, code, group, from, to, justified string
		minutes                                    int
	)
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Simulate an absence request without saving it",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := engine.Request{PersonID: personID, Code: code, GroupName: group}
			var err error
			if req.From, err = generic.ParseDate(from); err != nil {
				return fmt.Errorf("--from: %w", err)
			}
			req.To = req.From
			if to != "" {
				if req.To, err = generic.ParseDate(to); err != nil {
					return fmt.Errorf("--to: %w", err)
				}
			}
			if justified != "" {
				if req.JustifiedType, err = absence.ParseJustifiedType(justified); err != nil {
					return err
				}
			}
			if cmd.Flags().Changed("minutes") {
				req.Minutes = &minutes
			}

			return withDeps(func(rt *deps) error {
				report, err := rt.engine.Simulate(cmd.Context(), req)
				if err != nil {
					return err
				}
				renderRows(report.TemplateRows)
				renderLedgers(report.Ledgers)
				if len(report.Skipped) > 0 {
					fmt.Printf("skipped: %s\n", joinDays(report.Skipped))
				}
				fmt.Printf("accepted: %t\n", report.Accepted)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&personID, "person", "", "person id")
	cmd.Flags().StringVar(&code, "code", "", "absence code")
	cmd.Flags().StringVar(&group, "group", "", "group, for automatic groups without a code")
	cmd.Flags().StringVar(&from, "from", "", "first day (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "last day, defaults to --from")
	cmd.Flags().StringVar(&justified, "justified", "", "justified type")
	cmd.Flags().IntVar(&minutes, "minutes", 0, "minutes for minute-based justified types")
	_ = cmd.MarkFlagRequired("person")
	_ = cmd.MarkFlagRequired("from")
	return cmd
}

func recapCmd() *cobra.Command {
	var personID, group, from string
	cmd := &cobra.Command{
		Use:   "recap",
		Short: "Show the ledgers of a group chain around a date",
		RunE: func(cmd *cobra.Command, args []string) error {
			day, err := generic.ParseDate(from)
			if err != nil {
				return fmt.Errorf("--from: %w", err)
			}
			return withDeps(func(rt *deps) error {
				recap, err := rt.engine.Recap(cmd.Context(), personID, group, day)
				if err != nil {
					return err
				}
				ledgers := make([]engine.Ledger, 0, len(recap.Periods))
				for _, p := range recap.Periods {
					ledgers = append(ledgers, p.Ledger)
				}
				renderLedgers(ledgers)
				for _, p := range recap.Periods {
					if len(p.TemplateRows) == 0 {
						continue
					}
					fmt.Printf("\n%s %s\n", p.Group.Name, p.Period.Period)
					renderRows(p.TemplateRows)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&personID, "person", "", "person id")
	cmd.Flags().StringVar(&group, "group", "", "group name")
	cmd.Flags().StringVar(&from, "from", "", "reference day (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("person")
	_ = cmd.MarkFlagRequired("group")
	_ = cmd.MarkFlagRequired("from")
	return cmd
}

func catalogCmd() *cobra.Command {
	var export bool
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Validate the catalog and list its groups",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(func(rt *deps) error {
				cat := rt.engine.Catalog()
				if export {
					data, err := factory.ToYAML(cat)
					if err != nil {
						return err
					}
					_, err = os.Stdout.Write(data)
					return err
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Group", "Category", "Pattern", "Period", "Next", "Codes", "Flags"})
				for _, g := range cat.Groups() {
					var codes []string
					if g.Takable != nil {
						codes = g.Takable.TakableCodes
					}
					var flags []string
					if g.Automatic {
						flags = append(flags, "automatic")
					}
					if g.Initializable {
						flags = append(flags, "initializable")
					}
					if cat.IsReserved(g) {
						flags = append(flags, "reserved")
					}
					tw.AppendRow(table.Row{
						g.Name, g.Category, g.Pattern, g.PeriodType.String(), g.NextGroupToCheck,
						strings.Join(codes, " "), strings.Join(flags, ","),
					})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&export, "yaml", false, "print the normalized catalog as YAML")
	return cmd
}

// =============================================================================
// RENDERING
// =============================================================================

func renderRows(rows []engine.TemplateRow) {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"Date", "Code", "Justified", "Amount", "Group", "Status"})
	for _, r := range rows {
		status := "ok"
		if problems := r.Problems(); len(problems) > 0 {
			names := make([]string, 0, len(problems))
			for _, p := range problems {
				names = append(names, p.String())
			}
			status = strings.Join(names, ",")
		}
		if !r.Accepted {
			status = "rejected: " + status
		}
		tw.AppendRow(table.Row{r.Date, r.Code(), r.JustifiedType, r.Amount, r.Group, status})
	}
	tw.Render()
}

func renderLedgers(ledgers []engine.Ledger) {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"Group", "Period", "Child", "Consumed", "Limit", "Remaining"})
	for _, l := range ledgers {
		child, limit, remaining := "", "-", "-"
		if l.Period.Child != nil {
			child = l.Period.Child.Name
		}
		if l.Limit != nil {
			limit = l.Limit.String()
		}
		if rest, ok := l.Remaining(); ok {
			remaining = rest.String()
		}
		tw.AppendRow(table.Row{l.Group, l.Period.Period, child, l.Consumed, limit, remaining})
	}
	tw.Render()
}

func joinDays(days []generic.TimePoint) string {
	out := make([]string, 0, len(days))
	for _, d := range days {
		out = append(out, d.String())
	}
	return strings.Join(out, " ")
}
