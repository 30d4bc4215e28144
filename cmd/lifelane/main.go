package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/lifelane/lifelane/internal/auth"
	"github.com/lifelane/lifelane/internal/config"
	"github.com/lifelane/lifelane/internal/store"
	"github.com/lifelane/lifelane/internal/store/jsonfile"
	"github.com/lifelane/lifelane/internal/store/postgres"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "lifelane: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lifelane",
		Short: "LifeLane operations CLI",
		Long: `LifeLane CLI wraps the common operational workflows: running the API server or
the expiry worker, promoting administrators, and inspecting current requests.
Configuration comes from the same LIFELANE_* environment variables the
binaries read.`,
		SilenceUsage: true,
	}
	cmd.AddCommand(
		newServeCmd(),
		newWorkerCmd(),
		newPromoteCmd(),
		newRequestsCmd(),
	)
	return cmd
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCommand(cmd.Context(), "go", "run", "./cmd/server")
		},
	}
}

func newWorkerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run the siren-expiry worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCommand(cmd.Context(), "go", "run", "./cmd/worker")
		},
	}
}

func newPromoteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "promote <email>",
		Short: "Grant the admin capability to a registered user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			registry, cleanup, err := openRegistry(ctx, cfg)
			if err != nil {
				return err
			}
			defer cleanup()
			// Go through the service so the email gets the same
			// normalization registration and login apply.
			svc := auth.New(registry, cfg.JWTSecret, cfg.TokenTTL)
			if err := svc.Promote(ctx, args[0]); err != nil {
				return err
			}
			fmt.Printf("%s is now an administrator\n", args[0])
			return nil
		},
	}
}

func newRequestsCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "requests",
		Short: "List emergency requests in the configured store",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			requestStore, cleanup, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer cleanup()
			requests, err := requestStore.ListAll(ctx, store.Filter{})
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tPATIENT\tSTATUS\tCODE\tCREATED")
			for _, rec := range requests {
				if status != "" && string(rec.Status) != status {
					continue
				}
				code := "-"
				if rec.Code != nil {
					code = *rec.Code
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					rec.ID, rec.PatientName, rec.Status, code, rec.CreatedAt.Format("2006-01-02 15:04:05"))
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Only show requests with this status")
	return cmd
}

// openStore opens the durable backend named by the configuration. The
// memory backend lives inside the server process, so there is nothing for
// the CLI to inspect there.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, func(), error) {
	policy := store.TransitionPolicy(cfg.TransitionPolicy)
	noop := func() {}
	switch cfg.StoreBackend {
	case config.StoreFile:
		s, err := jsonfile.New(cfg.DataFile, policy)
		return s, noop, err
	case config.StorePostgres:
		pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, noop, err
		}
		return postgres.New(pool, policy), pool.Close, nil
	}
	return nil, noop, fmt.Errorf("store backend %q is not reachable from the CLI", cfg.StoreBackend)
}

func openRegistry(ctx context.Context, cfg *config.Config) (auth.Registry, func(), error) {
	noop := func() {}
	switch cfg.StoreBackend {
	case config.StoreFile:
		users, err := jsonfile.NewUsers(cfg.UsersFile)
		return users, noop, err
	case config.StorePostgres:
		pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, noop, err
		}
		return postgres.NewUsers(pool), pool.Close, nil
	}
	return nil, noop, fmt.Errorf("store backend %q is not reachable from the CLI", cfg.StoreBackend)
}

func runCommand(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Stdin = os.Stdin
	return cmd.Run()
}
