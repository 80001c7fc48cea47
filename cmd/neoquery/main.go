// Command neoquery checks Neo4j connectivity and runs simple node lookups
// built with the neoquery package.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/saulfrancisco-ruizacevedo/go-neoquery"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type globalFlags struct {
	configPath string
	url        string
	user       string
	password   string
	database   string
	verbose    bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := newRootCmd().ExecuteContext(ctx)
	if shutdownErr := neoquery.Shutdown(context.Background()); shutdownErr != nil {
		fmt.Fprintln(os.Stderr, "shutdown:", shutdownErr)
	}
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}
	root := &cobra.Command{
		Use:          "neoquery",
		Short:        "Query a Neo4j database with the neoquery builder",
		SilenceUsage: true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "path to a YAML config file")
	pf.StringVar(&flags.url, "url", "", "database URL (overrides config and "+neoquery.EnvURL+")")
	pf.StringVar(&flags.user, "user", "", "username")
	pf.StringVar(&flags.password, "password", "", "password")
	pf.StringVar(&flags.database, "database", "", "database name")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "log queries")

	root.AddCommand(newPingCmd(flags), newMatchCmd(flags))
	return root
}

func newPingCmd(flags *globalFlags) *cobra.Command {
	var (
		attempts int
		interval time.Duration
	)
	cmd := &cobra.Command{
		Use:   "ping",
		Short: "Wait until the database answers RETURN 1",
		RunE: func(cmd *cobra.Command, _ []string) error {
			conn, err := flags.connect()
			if err != nil {
				return err
			}
			defer conn.Close(cmd.Context())

			if err := conn.WaitReady(cmd.Context(), attempts, interval); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}
	cmd.Flags().IntVar(&attempts, "attempts", 20, "number of attempts")
	cmd.Flags().DurationVar(&interval, "interval", 100*time.Millisecond, "delay between attempts")
	return cmd
}

func newMatchCmd(flags *globalFlags) *cobra.Command {
	var (
		labels []string
		props  []string
		limit  int64
	)
	cmd := &cobra.Command{
		Use:   "match",
		Short: "Match nodes by label and properties and print them as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			conditions, err := parseProps(props)
			if err != nil {
				return err
			}
			conn, err := flags.connect()
			if err != nil {
				return err
			}
			defer conn.Close(cmd.Context())

			q := conn.MatchNode("n", labels, conditions).Return("n")
			if limit > 0 {
				q = q.Limit(limit)
			}
			rows, err := q.Run(cmd.Context())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(rows)
		},
	}
	cmd.Flags().StringSliceVarP(&labels, "label", "l", nil, "node label (repeatable)")
	cmd.Flags().StringArrayVarP(&props, "prop", "p", nil, "property condition key=value (repeatable)")
	cmd.Flags().Int64Var(&limit, "limit", 0, "maximum number of rows")
	return cmd
}

// config merges defaults, the config file, the environment and flags, in
// increasing order of precedence.
func (f *globalFlags) config() (neoquery.Config, error) {
	cfg := neoquery.DefaultConfig()
	if f.configPath != "" {
		var err error
		if cfg, err = neoquery.LoadConfig(f.configPath); err != nil {
			return cfg, err
		}
	}
	cfg, err := cfg.ApplyEnv(os.LookupEnv)
	if err != nil {
		return cfg, err
	}
	if f.url != "" {
		cfg.URL = f.url
	}
	if f.user != "" {
		cfg.Username = f.user
	}
	if f.password != "" {
		cfg.Password = f.password
	}
	if f.database != "" {
		cfg.Database = f.database
	}
	return cfg, nil
}

func (f *globalFlags) connect() (*neoquery.Connection, error) {
	cfg, err := f.config()
	if err != nil {
		return nil, err
	}
	logger := zap.NewNop()
	if f.verbose {
		if logger, err = zap.NewDevelopment(); err != nil {
			return nil, err
		}
	}
	return neoquery.NewConnectionFromConfig(cfg, neoquery.WithLogger(logger))
}

// parseProps turns key=value pairs into property conditions. Values that
// parse as integers, floats or booleans are bound with that type.
func parseProps(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid property %q, want key=value", pair)
		}
		out[key] = parseScalar(value)
	}
	return out, nil
}

func parseScalar(s string) any {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return s
}
