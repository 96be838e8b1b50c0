package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/orderlens/internal/app"
	"github.com/Additional-Code/orderlens/internal/migration"
	"github.com/Additional-Code/orderlens/internal/seeder"
)

const stopTimeout = 10 * time.Second

// NewRootCommand builds the root orderlens CLI command.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "orderlens",
		Short:         "Measure and audit database access patterns over an order store",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().Bool("logs", false, "Keep application logs on stderr for one-shot commands")

	root.AddCommand(
		newStartCmd(),
		newWorkerCmd(),
		newMigrateCmd(),
		newSeedCmd(),
		newScenarioCmd(),
	)
	return root
}

// Execute runs the orderlens CLI until it finishes or the process is
// interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return err
	}
	return nil
}

func newStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "start",
		Aliases: []string{"serve"},
		Short:   "Run the HTTP and gRPC servers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), app.HTTP)
		},
	}
}

func newWorkerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Manage background workers",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Consume scenario completion events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), app.Worker)
		},
	})
	return cmd
}

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, func(ctx context.Context, mig *migration.Migrator) error {
				if err := mig.Up(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
				return nil
			})
		},
	}

	downCmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			steps, _ := cmd.Flags().GetInt("steps")
			all, _ := cmd.Flags().GetBool("all")
			return withMigrator(cmd, func(ctx context.Context, mig *migration.Migrator) error {
				if err := mig.Down(ctx, steps, all); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "migrations rolled back")
				return nil
			})
		},
	}
	downCmd.Flags().Int("steps", 1, "Number of migrations to roll back")
	downCmd.Flags().Bool("all", false, "Roll back every applied migration")

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "List migrations and whether they are applied",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, func(ctx context.Context, mig *migration.Migrator) error {
				status, err := mig.Status(ctx)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "VERSION\tSTATE\tAPPLIED AT\tFILE")
				for _, s := range status {
					state, at := "pending", "-"
					if s.Applied {
						state, at = "applied", s.AppliedAt.Format(time.RFC3339)
					}
					fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", s.Version, state, at, s.Path)
				}
				return w.Flush()
			})
		},
	}

	cmd.AddCommand(upCmd, downCmd, statusCmd)
	return cmd
}

func newSeedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Write the sample customers, products and orders",
		RunE: func(cmd *cobra.Command, args []string) error {
			migrate, _ := cmd.Flags().GetBool("migrate")
			var (
				seed *seeder.Seeder
				mig  *migration.Migrator
			)
			opts := fx.Options(app.Core, seeder.Module, migration.Module, fx.Populate(&seed, &mig))
			return runOnce(cmd, opts, func(ctx context.Context) error {
				if migrate {
					if err := mig.Up(ctx); err != nil {
						return err
					}
				}
				sum, err := seed.Seed(ctx)
				if err != nil {
					return err
				}
				if sum.Skipped {
					fmt.Fprintln(cmd.OutOrStdout(), "data already present; seed skipped")
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "seeded %d customers, %d products, %d orders, %d items\n",
					sum.Customers, sum.Products, sum.Orders, sum.Items)
				return nil
			})
		},
	}
	cmd.Flags().Bool("migrate", false, "Apply migrations before seeding")
	return cmd
}

func withMigrator(cmd *cobra.Command, fn func(context.Context, *migration.Migrator) error) error {
	var mig *migration.Migrator
	opts := fx.Options(app.Core, migration.Module, fx.Populate(&mig))
	return runOnce(cmd, opts, func(ctx context.Context) error {
		return fn(ctx, mig)
	})
}

// serve runs a long-lived graph until ctx is cancelled.
func serve(ctx context.Context, opts fx.Option) error {
	application := fx.New(opts)
	if err := application.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	return application.Stop(stopCtx)
}

// runOnce starts a graph, runs fn and stops the graph. Application logs
// are dropped unless --logs is set so command output stays readable.
func runOnce(cmd *cobra.Command, opts fx.Option, fn func(context.Context) error) error {
	all := []fx.Option{opts, fx.NopLogger}
	if logs, _ := cmd.Flags().GetBool("logs"); !logs {
		all = append(all, fx.Decorate(func() *zap.Logger { return zap.NewNop() }))
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	application := fx.New(all...)
	if err := application.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		defer cancel()
		_ = application.Stop(stopCtx)
	}()
	return fn(ctx)
}
