// Command estatectl inspects and edits persisted search filters and runs
// searches against the configured record store.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/mohammed-shakir/estate-search/internal/app"
	"github.com/mohammed-shakir/estate-search/internal/cache/keys"
	"github.com/mohammed-shakir/estate-search/internal/core/config"
	"github.com/mohammed-shakir/estate-search/internal/filterstate"
	"github.com/mohammed-shakir/estate-search/internal/logger"
)

func main() {
	if err := newRootCmd(os.Stdout, nil).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

type opener func(ctx context.Context, envFile string) (*app.App, error)

type cli struct {
	out     io.Writer
	envFile string
	scope   string
	session string
	open    opener
}

func newRootCmd(out io.Writer, open opener) *cobra.Command {
	if open == nil {
		open = openApp
	}
	c := &cli{out: out, open: open}

	root := &cobra.Command{
		Use:           "estatectl",
		Short:         "Inspect filters and run property searches",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			if !keys.ValidScope(c.scope) {
				return fmt.Errorf("unknown scope %q (want %s or %s)", c.scope, keys.ScopeMap, keys.ScopeProperty)
			}
			return nil
		},
	}
	root.SetOut(out)
	root.PersistentFlags().StringVar(&c.envFile, "env-file", ".env", "optional dotenv file read before the environment")
	root.PersistentFlags().StringVar(&c.scope, "scope", keys.ScopeProperty, "filter view: map or property")
	root.PersistentFlags().StringVar(&c.session, "session", "", "session id; empty uses the shared state")

	root.AddCommand(c.filtersCmd(), c.searchCmd(), c.explainCmd())
	return root
}

func openApp(ctx context.Context, envFile string) (*app.App, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, err
	}
	zl := logger.Build(logger.Config{
		Level:     "warn",
		Console:   true,
		Service:   "estate-search",
		Component: "estatectl",
	}, os.Stderr)
	return app.New(ctx, cfg, logger.NewSlog(&zl), false)
}

func (c *cli) withApp(ctx context.Context, fn func(*app.App) error) error {
	a, err := c.open(ctx, c.envFile)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()
	return fn(a)
}

func (c *cli) filterStore(a *app.App) *filterstate.Store {
	lg := a.Logger
	if lg == nil {
		lg = slog.Default()
	}
	return filterstate.New(a.KV, keys.FilterKey(c.scope, c.session), lg,
		filterstate.WithOpTimeout(a.Config.KVOpTimeout))
}
