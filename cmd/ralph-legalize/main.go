package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/raymyers/ralph-legalize/pkg/config"
	"github.com/raymyers/ralph-legalize/pkg/gmir"
	"github.com/raymyers/ralph-legalize/pkg/legalizer"
	"github.com/raymyers/ralph-legalize/pkg/targetdesc"
)

var version = "0.1.0"

// Debug flags for dumping intermediate results
var (
	dVerify bool
	dLegal  bool
	dTrace  bool
)

// Settings that override the config file
var (
	targetPath string
	configPath string
	jobs       int
	logLevel   string
	noColor    bool
)

var (
	errorColor   = color.New(color.FgRed, color.Bold)
	summaryColor = color.New(color.FgGreen)
	noteColor    = color.New(color.FgYellow)
)

func main() {
	os.Exit(run())
}

func run() int {
	rootCmd := newRootCmd(os.Stdout, os.Stderr)
	// Accept single-dash debug flags such as -dlegal
	rootCmd.SetArgs(normalizeFlags(os.Args[1:]))
	if err := rootCmd.Execute(); err != nil {
		return 1
	}
	return 0
}

// debugFlagNames lists the debug flags that also accept single-dash style
var debugFlagNames = []string{"dverify", "dlegal", "dtrace"}

// normalizeFlags converts single-dash flags like -dlegal to --dlegal
func normalizeFlags(args []string) []string {
	result := make([]string, len(args))
	for i, arg := range args {
		for _, flagName := range debugFlagNames {
			if arg == "-"+flagName {
				result[i] = "--" + flagName
				break
			}
		}
		if result[i] == "" {
			result[i] = arg
		}
	}
	return result
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "ralph-legalize [file.gmir]",
		Short: "ralph-legalize rewrites generic machine IR into types a target supports",
		Long: `ralph-legalize loads a target's legalization rules from a YAML
description, verifies them, and rewrites every instruction of a
generic machine IR file until the target accepts its types.`,
		Version:       version,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if noColor {
				color.NoColor = true
			}
			if len(args) == 0 && !dVerify {
				return cmd.Help()
			}

			cfg, err := loadConfig(cmd)
			if err != nil {
				reportError(errOut, err)
				return err
			}
			logger := slog.New(slog.NewTextHandler(errOut, &slog.HandlerOptions{Level: cfg.SlogLevel()}))

			catalog, err := loadCatalog(cfg, logger)
			if err != nil {
				reportError(errOut, err)
				return err
			}
			if dVerify {
				printCatalog(out, catalog)
			}
			if len(args) == 0 {
				return nil
			}

			opts := append(cfg.DriverOptions(), legalizer.WithLogger(logger))
			return doLegalize(cmd, args[0], catalog, opts, out, errOut)
		},
	}
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)

	rootCmd.Flags().BoolVarP(&dVerify, "dverify", "", false, "Verify the target and dump its rule counts")
	rootCmd.Flags().BoolVarP(&dLegal, "dlegal", "", false, "Dump the legalized program")
	rootCmd.Flags().BoolVarP(&dTrace, "dtrace", "", false, "Dump the steps taken for each instruction")

	rootCmd.Flags().StringVarP(&targetPath, "target", "t", "", "Target description (YAML)")
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "Settings file (TOML)")
	rootCmd.Flags().IntVarP(&jobs, "jobs", "j", 0, "Functions legalized at once (0 = GOMAXPROCS)")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn or error")
	rootCmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	return rootCmd
}

// loadConfig reads --config if given and applies the flags on top
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg := config.Default()
	if configPath != "" {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return config.Config{}, err
		}
	}
	flags := cmd.Flags()
	if flags.Changed("target") {
		cfg.Target.Description = targetPath
	}
	if flags.Changed("jobs") {
		cfg.Driver.Jobs = jobs
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func loadCatalog(cfg config.Config, logger *slog.Logger) (*legalizer.Catalog, error) {
	st, err := cfg.ResolveSubtarget()
	if err != nil {
		return nil, err
	}
	logger.Debug("loading target", "path", cfg.Target.Description, "subtarget", st.String())
	return targetdesc.Load(cfg.Target.Description, targetdesc.WithSubtarget(st), targetdesc.WithLogger(logger))
}

// printCatalog writes the rule count of every opcode with an entry
func printCatalog(w io.Writer, c *legalizer.Catalog) {
	fmt.Fprintf(w, "target %s\n", c.Name())
	for _, op := range c.Opcodes() {
		n := len(c.Rules(op))
		if _, ok := c.CustomHandler(op); ok {
			fmt.Fprintf(w, "  %-24s %3d rules (custom)\n", op, n)
		} else {
			fmt.Fprintf(w, "  %-24s %3d rules\n", op, n)
		}
	}
	fmt.Fprintf(w, "  %-24s %3d rules\n", "default", len(c.Defaults()))
}

// doLegalize legalizes filename, prints what the debug flags ask for and
// writes the result next to the input with -dlegal
func doLegalize(cmd *cobra.Command, filename string, c *legalizer.Catalog, opts []legalizer.Option, out, errOut io.Writer) error {
	content, err := os.ReadFile(filename)
	if err != nil {
		fmt.Fprintf(errOut, "ralph-legalize: error reading %s: %v\n", filename, err)
		return err
	}
	prog, err := gmir.Parse(string(content))
	if err != nil {
		reportError(errOut, fmt.Errorf("%s: %w", filename, err))
		return err
	}

	rep, err := legalizer.NewDriver(c, opts...).LegalizeProgram(cmd.Context(), prog)
	if err != nil {
		reportError(errOut, err)
		return err
	}

	if dLegal {
		outputFilename := legalOutputFilename(filename)
		outFile, err := os.Create(outputFilename)
		if err != nil {
			fmt.Fprintf(errOut, "ralph-legalize: error creating %s: %v\n", outputFilename, err)
			return err
		}
		defer outFile.Close()

		gmir.NewPrinter(outFile).PrintProgram(prog)
		// Also print to stdout
		gmir.NewPrinter(out).PrintProgram(prog)
	}
	if dTrace {
		printTrace(out, rep)
	}

	steps := 0
	for _, fn := range rep.Functions {
		steps += fn.Steps
	}
	summaryColor.Fprintf(errOut, "ralph-legalize: %s: legalized %d functions in %d steps\n", filename, len(rep.Functions), steps)
	return nil
}

// legalOutputFilename returns the output filename for -dlegal
// input.gmir -> input.legal.gmir
func legalOutputFilename(filename string) string {
	ext := ".gmir"
	if strings.HasSuffix(filename, ext) {
		return filename[:len(filename)-len(ext)] + ".legal.gmir"
	}
	return filename + ".legal.gmir"
}

// printTrace writes the provenance chain of every original instruction
func printTrace(w io.Writer, rep *legalizer.Report) {
	for _, fn := range rep.Functions {
		fmt.Fprintf(w, "@%s: %d steps", fn.Function, fn.Steps)
		if fn.Combines > 0 {
			fmt.Fprintf(w, ", %d combines", fn.Combines)
		}
		fmt.Fprintln(w)
		for _, p := range fn.Provenance {
			fmt.Fprintf(w, "  %s\n", p.Origin)
			for _, s := range p.Steps {
				marker := " "
				if s.Derived {
					marker = "+"
				}
				fmt.Fprintf(w, "   %s %s\n", marker, s)
			}
		}
	}
}

// reportError writes err to w, one line per joined error, with the
// offending instruction of a legalization failure on its own line
func reportError(w io.Writer, err error) {
	errorColor.Fprint(w, "error: ")
	lines := strings.Split(err.Error(), "\n")
	fmt.Fprintln(w, lines[0])
	for _, line := range lines[1:] {
		fmt.Fprintf(w, "       %s\n", line)
	}
	var lerr *legalizer.LegalizeError
	if errors.As(err, &lerr) {
		noteColor.Fprint(w, "note: ")
		fmt.Fprintf(w, "while legalizing %s in @%s\n", lerr.Instr, lerr.Function)
	}
}
