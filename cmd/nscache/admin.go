package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/nscache"
	"github.com/unkn0wn-root/nscache/internal/selftest"
)

// withCache runs fn against a connected cache and closes it afterwards.
func withCache(g *globalFlags, fn func(cmd *cobra.Command, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd.Context(), g)
		if err != nil {
			return err
		}
		defer a.close(cmd.Context())
		if err := a.requireCache(); err != nil {
			return err
		}
		return fn(cmd, a, args)
	}
}

func statsCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print the keys and store counters under the prefix",
		Args:  cobra.NoArgs,
		RunE: withCache(g, func(cmd *cobra.Command, a *app, _ []string) error {
			st := a.cache.Stats(cmd.Context())
			if st.Status == nscache.StatusError {
				return fmt.Errorf("stats: %s", st.Message)
			}
			return printJSON(cmd.OutOrStdout(), st)
		}),
	}
}

func flushCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "flush",
		Short: "Delete every key under the prefix",
		Args:  cobra.NoArgs,
		RunE: withCache(g, func(cmd *cobra.Command, a *app, _ []string) error {
			n, err := a.cache.Flush(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d keys under %q\n", n, a.cache.Prefix())
			return nil
		}),
	}
}

func purgeCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "purge <pattern>",
		Short:   "Delete keys matching a glob below the prefix",
		Example: "  nscache purge 'page:home:*'",
		Args:    cobra.ExactArgs(1),
		RunE: withCache(g, func(cmd *cobra.Command, a *app, args []string) error {
			n, err := a.cache.DeletePattern(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d keys matching %q\n", n, args[0])
			return nil
		}),
	}
}

func ttlCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "ttl <key>",
		Short: "Show the remaining lifetime of a key",
		Args:  cobra.ExactArgs(1),
		RunE: withCache(g, func(cmd *cobra.Command, a *app, args []string) error {
			ttl, ok, err := a.cache.TTL(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			switch {
			case !ok:
				fmt.Fprintf(out, "%s: not found\n", args[0])
			case ttl == nscache.NoExpiry:
				fmt.Fprintf(out, "%s: no expiry\n", args[0])
			default:
				fmt.Fprintf(out, "%s: %s\n", args[0], ttl)
			}
			return nil
		}),
	}
}

func selftestCmd(g *globalFlags) *cobra.Command {
	var iterations int
	cmd := &cobra.Command{
		Use:   "selftest",
		Short: "Check write/read/delete against the store and run a small benchmark",
		Args:  cobra.NoArgs,
		RunE: withCache(g, func(cmd *cobra.Command, a *app, _ []string) error {
			presets := a.cfg.Cache.Presets.Map()
			r := selftest.Runner{TTL: presets["temporary"], Presets: presets}
			rep, err := r.Run(cmd.Context(), a.cache, iterations)
			if err != nil {
				return err
			}
			if err := printJSON(cmd.OutOrStdout(), rep); err != nil {
				return err
			}
			if !rep.Passed() {
				return fmt.Errorf("selftest failed")
			}
			return nil
		}),
	}
	cmd.Flags().IntVar(&iterations, "iterations", selftest.DefaultIterations, "Benchmark iterations")
	return cmd
}
