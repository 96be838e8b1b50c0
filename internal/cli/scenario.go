package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/Additional-Code/orderlens/internal/app"
	"github.com/Additional-Code/orderlens/internal/presentation/console"
	scenariosvc "github.com/Additional-Code/orderlens/internal/service/scenario"
)

func newScenarioCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scenario",
		Short: "List, run and compare data-access scenarios",
	}
	cmd.AddCommand(newScenarioListCmd(), newScenarioRunCmd(), newScenarioCompareCmd())
	return cmd
}

func newScenarioListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered scenarios",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withScenarioService(cmd, func(_ context.Context, svc *scenariosvc.Service) error {
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "NAME\tVARIANT\tPATTERN\tCOUNTERPART")
				for _, def := range svc.List() {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", def.Name, def.Variant, def.Pattern, def.Counterpart)
				}
				return w.Flush()
			})
		},
	}
}

func newScenarioRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [name]",
		Short: "Run one scenario and report its round trips and audit findings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := scenarioParams(cmd)
			if err != nil {
				return err
			}
			return withScenarioService(cmd, func(ctx context.Context, svc *scenariosvc.Service) error {
				report, err := svc.Run(ctx, args[0], params)
				if err != nil {
					return err
				}
				return printScenario(cmd, report, func(r *console.Reporter) { r.Report(report) })
			})
		},
	}
	scenarioFlags(cmd)
	return cmd
}

func newScenarioCompareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare [name]",
		Short: "Run a scenario and its counterpart with the same parameters",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := scenarioParams(cmd)
			if err != nil {
				return err
			}
			return withScenarioService(cmd, func(ctx context.Context, svc *scenariosvc.Service) error {
				cmp, err := svc.Compare(ctx, args[0], params)
				if err != nil {
					return err
				}
				return printScenario(cmd, cmp, func(r *console.Reporter) { r.Compare(cmp) })
			})
		},
	}
	scenarioFlags(cmd)
	return cmd
}

func scenarioFlags(cmd *cobra.Command) {
	cmd.Flags().Int("page", 0, "Zero-based page for paginated scenarios")
	cmd.Flags().Int("size", scenariosvc.DefaultPageSize, "Page size for paginated scenarios")
	cmd.Flags().String("status", "", "Status filter for orders-by-status")
	cmd.Flags().Int64Slice("ids", nil, "Order ids for the update scenarios")
	cmd.Flags().String("new-status", "", "Target status for the update scenarios")
	cmd.Flags().Bool("audit", true, "Print statement audit findings")
	cmd.Flags().BoolP("verbose", "v", false, "Print every statement issued")
	cmd.Flags().Bool("json", false, "Print the report as JSON")
}

func scenarioParams(cmd *cobra.Command) (scenariosvc.Params, error) {
	var p scenariosvc.Params
	var err error
	if p.Page, err = cmd.Flags().GetInt("page"); err != nil {
		return p, err
	}
	if p.Size, err = cmd.Flags().GetInt("size"); err != nil {
		return p, err
	}
	if p.Status, err = cmd.Flags().GetString("status"); err != nil {
		return p, err
	}
	if p.IDs, err = cmd.Flags().GetInt64Slice("ids"); err != nil {
		return p, err
	}
	if p.NewStatus, err = cmd.Flags().GetString("new-status"); err != nil {
		return p, err
	}
	return p, nil
}

func printScenario(cmd *cobra.Command, v any, render func(*console.Reporter)) error {
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	verbose, _ := cmd.Flags().GetBool("verbose")
	withAudit, _ := cmd.Flags().GetBool("audit")
	r := console.New(cmd.OutOrStdout(), verbose)
	if !withAudit {
		r = r.WithoutIssues()
	}
	render(r)
	return nil
}

func withScenarioService(cmd *cobra.Command, fn func(context.Context, *scenariosvc.Service) error) error {
	var svc *scenariosvc.Service
	opts := fx.Options(app.Core, fx.Populate(&svc))
	return runOnce(cmd, opts, func(ctx context.Context) error {
		return fn(ctx, svc)
	})
}
