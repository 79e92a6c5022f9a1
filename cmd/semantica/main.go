// Package main is the semantica CLI entry point.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/hyperjump/semantica/internal/cli"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/semantica/config.yaml"

// usageError is reported together with the command's usage text.
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }

func (e *usageError) Unwrap() error { return e.err }

func usagef(format string, args ...any) error {
	return &usageError{err: fmt.Errorf(format, args...)}
}

// globalOptions are shared by the root command and every subcommand.
type globalOptions struct {
	configPath string
	indexPath  string
	debug      bool
	output     string
}

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the CLI and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := newRootCommand()
	root.SetArgs(normalizeArgs(args))
	root.SetOut(stdout)
	root.SetErr(stderr)

	cmd, err := root.ExecuteContextC(ctx)
	if err == nil {
		return 0
	}
	fmt.Fprintf(stderr, "Error: %v\n", err)
	var uerr *usageError
	if errors.As(err, &uerr) {
		fmt.Fprintln(stderr)
		fmt.Fprint(stderr, cmd.UsageString())
	}
	return 1
}

func newRootCommand() *cobra.Command {
	g := &globalOptions{}
	var (
		search  string
		removes []string
		adds    []string
	)

	root := &cobra.Command{
		Use:   "semantica",
		Short: "Approximate semantic lookup of stored values by label",
		Long: `semantica stores integer values under free-text labels and looks them up
by meaning: a search returns the value whose label is most similar to the
query, or null when nothing is similar enough.

Without --search, removals (-x) are applied first, then additions (-a),
and the index is written back.`,
		Example: `  semantica -a "house cat" 1 "golden retriever" 2
  semantica -s feline
  semantica -x 0 1`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return usagef("unexpected argument %q", args[0])
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			req, err := parseRequest(cmd.Flags().Changed("search"), search, removes, adds)
			if err != nil {
				return err
			}
			format, err := outputFormat(g)
			if err != nil {
				return err
			}
			a, err := openApp(cmd.Context(), g, false)
			if err != nil {
				return err
			}
			defer a.Close()
			return a.execute(cmd.Context(), req, format, cmd.OutOrStdout())
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&g.configPath, "config", defaultConfigPath, "config file path")
	pf.StringVarP(&g.indexPath, "filepath", "f", "", "index file path (overrides index.path)")
	pf.BoolVar(&g.debug, "debug", false, "enable debug logging")
	pf.StringVarP(&g.output, "output", "o", "text", "output format: text or json")

	f := root.Flags()
	f.StringVarP(&search, "search", "s", "", "look up NAME and print the matched value or null")
	f.StringArrayVarP(&removes, "remove", "x", nil, "remove entries by position (ID...)")
	f.StringArrayVarP(&adds, "add", "a", nil, "add label/value pairs (NAME VALUE...)")

	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err: err}
	})
	root.SetVersionTemplate("semantica version {{.Version}}\n")

	root.AddCommand(newServeCommand(g), newStatsCommand(g), newConfigCommand(g), newVersionCommand())
	return root
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "semantica version %s\n", version)
		},
	}
}

// normalizeArgs rewrites greedy multi-value flags into repeated flags so
// pflag can parse them: "-x 1 2" becomes "-x 1 -x 2" and "-a n1 v1 n2 v2"
// becomes "-a n1 -a v1 -a n2 -a v2". A value list ends at the next flag or
// at "--".
func normalizeArgs(args []string) []string {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		out = append(out, arg)
		if arg == "--" {
			out = append(out, args[i+1:]...)
			break
		}
		if !isGreedyFlag(arg) || i+1 >= len(args) {
			continue
		}
		// The first value is always taken, even if it looks like a flag.
		i++
		out = append(out, args[i])
		for i+1 < len(args) && !isFlag(args[i+1]) {
			i++
			out = append(out, arg, args[i])
		}
	}
	return out
}

func isGreedyFlag(arg string) bool {
	switch arg {
	case "-x", "--remove", "-a", "--add":
		return true
	}
	return false
}

// isFlag reports whether arg starts a new flag. Negative numbers are values.
func isFlag(arg string) bool {
	if len(arg) < 2 || arg[0] != '-' {
		return false
	}
	c := arg[1]
	return !(c >= '0' && c <= '9') && c != '.'
}

func outputFormat(g *globalOptions) (cli.OutputFormat, error) {
	format, err := cli.ParseOutputFormat(g.output)
	if err != nil {
		return "", &usageError{err: err}
	}
	return format, nil
}
