// cmd/symgo — command-line front end for the symgo engine.
//
// Expressions are supplied as JSON trees (the format produced by
// symgo.ToJSON), either as a file argument or on stdin with "-".
//
// Usage:
//
//	symgo series expr.json --var x --order 6
//	echo '{"type":"func","name":"sin","args":[{"type":"sym","name":"x"}]}' | symgo diff - --var x
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	symgo "github.com/njchilds90/symgo"
)

// Config holds the optional YAML configuration.
type Config struct {
	Precision uint32   `yaml:"precision"` // decimal digits for eval
	Order     int      `yaml:"order"`     // default series order
	Hints     []string `yaml:"hints"`     // default expand hints
}

func defaultConfig() Config {
	return Config{Precision: 34, Order: 6}
}

func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	if cfg.Precision == 0 {
		cfg.Precision = 34
	}
	if cfg.Order == 0 {
		cfg.Order = 6
	}
	return cfg, nil
}

type rootOptions struct {
	ConfigPath string
	Verbose    bool
	JSONOut    bool

	cfg Config
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "symgo",
		Short: "Symbolic differentiation and series expansion",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts.ConfigPath)
			if err != nil {
				return err
			}
			opts.cfg = cfg
			symgo.SetDefaultPrecision(cfg.Precision)
			if opts.Verbose {
				l, err := zap.NewDevelopment()
				if err != nil {
					return err
				}
				symgo.SetLogger(l)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to YAML config")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "trace engine decisions")
	cmd.PersistentFlags().BoolVar(&opts.JSONOut, "json", false, "emit the result as a JSON tree")

	cmd.AddCommand(newDiffCommand(opts))
	cmd.AddCommand(newSeriesCommand(opts))
	cmd.AddCommand(newExpandCommand(opts))
	cmd.AddCommand(newEvalCommand(opts))
	return cmd
}

func readExpr(arg string) (symgo.Expr, error) {
	var data []byte
	var err error
	if arg == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(arg)
	}
	if err != nil {
		return nil, err
	}
	return symgo.ParseJSON(data)
}

// catching converts engine argument panics into returned errors so a bad
// flag combination prints a usage message instead of a stack trace.
func catching(fn func() symgo.Expr) (e symgo.Expr, err error) {
	defer func() {
		if r := recover(); r != nil {
			ae, ok := r.(*symgo.ArgumentError)
			if !ok {
				panic(r)
			}
			err = ae
		}
	}()
	return fn(), nil
}

func emit(cmd *cobra.Command, opts *rootOptions, e symgo.Expr) error {
	if opts.JSONOut {
		s, err := symgo.ToJSON(e)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), s)
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), e.String())
	return nil
}

func newDiffCommand(opts *rootOptions) *cobra.Command {
	var variable string
	var count int

	cmd := &cobra.Command{
		Use:   "diff <expr.json>",
		Short: "Differentiate an expression",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := readExpr(args[0])
			if err != nil {
				return err
			}
			result, err := catching(func() symgo.Expr {
				if variable == "" {
					return symgo.Diff(e)
				}
				return symgo.Diff(e, variable, count)
			})
			if err != nil {
				return err
			}
			return emit(cmd, opts, result)
		},
	}
	cmd.Flags().StringVar(&variable, "var", "", "differentiation variable (default: the sole free symbol)")
	cmd.Flags().IntVar(&count, "count", 1, "derivative order")
	return cmd
}

func newSeriesCommand(opts *rootOptions) *cobra.Command {
	var variable string
	var order int

	cmd := &cobra.Command{
		Use:   "series <expr.json>",
		Short: "Expand an expression in a truncated series around 0",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := readExpr(args[0])
			if err != nil {
				return err
			}
			if order == 0 {
				order = opts.cfg.Order
			}
			var serr error
			s, err := catching(func() symgo.Expr {
				r, e2 := symgo.NSeries(e, variable, order)
				serr = e2
				return r
			})
			if err == nil {
				err = serr
			}
			if err != nil {
				if symgo.IsPoleError(err) {
					return fmt.Errorf("pole at the expansion point: %w", err)
				}
				return err
			}
			return emit(cmd, opts, s)
		},
	}
	cmd.Flags().StringVar(&variable, "var", "x", "expansion variable")
	cmd.Flags().IntVar(&order, "order", 0, "truncation order (default from config)")
	return cmd
}

func newExpandCommand(opts *rootOptions) *cobra.Command {
	var hintList string

	cmd := &cobra.Command{
		Use:   "expand <expr.json>",
		Short: "Expand products, powers, and logarithms",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := readExpr(args[0])
			if err != nil {
				return err
			}
			names := opts.cfg.Hints
			if hintList != "" {
				names = strings.Split(hintList, ",")
			}
			h, err := hintsFromNames(names)
			if err != nil {
				return err
			}
			return emit(cmd, opts, symgo.Expand(e, h))
		},
	}
	cmd.Flags().StringVar(&hintList, "hints", "", "comma-separated hints (mul,log,multinomial,power_base,power_exp,trig,func,complex)")
	return cmd
}

func hintsFromNames(names []string) (symgo.Hints, error) {
	if len(names) == 0 {
		return symgo.DefaultHints(), nil
	}
	h := symgo.Hints{Basic: true, Deep: true}
	for _, name := range names {
		switch strings.TrimSpace(name) {
		case "mul":
			h.Mul = true
		case "log":
			h.Log = true
		case "multinomial":
			h.Multinomial = true
		case "power_base":
			h.PowerBase = true
		case "power_exp":
			h.PowerExp = true
		case "trig":
			h.Trig = true
		case "func":
			h.Func = true
		case "complex":
			h.Complex = true
		case "":
		default:
			return h, fmt.Errorf("unknown hint %q", name)
		}
	}
	return h, nil
}

func newEvalCommand(opts *rootOptions) *cobra.Command {
	var digits uint32

	cmd := &cobra.Command{
		Use:   "eval <expr.json>",
		Short: "Evaluate a closed expression numerically",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := readExpr(args[0])
			if err != nil {
				return err
			}
			if digits == 0 {
				digits = opts.cfg.Precision
			}
			v, err := symgo.EvalF(e, digits)
			if err != nil {
				return err
			}
			return emit(cmd, opts, v)
		},
	}
	cmd.Flags().Uint32Var(&digits, "digits", 0, "significant decimal digits (default from config)")
	return cmd
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		var ae *symgo.ArgumentError
		if errors.As(err, &ae) {
			fmt.Fprintln(os.Stderr, "usage error:", ae.Message)
		} else {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}
