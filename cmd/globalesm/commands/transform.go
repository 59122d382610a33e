package commands

import (
	"errors"
	"fmt"
	"io"
	"maps"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/globalesm/internal/build"
	"github.com/Sumatoshi-tech/globalesm/internal/observability"
	"github.com/Sumatoshi-tech/globalesm/pkg/esm"
)

// stdinArg names standard input as a path argument.
const stdinArg = "-"

// Sentinel errors for flag combinations.
var (
	// ErrOutWithStdin is returned when --out is combined with stdin input.
	ErrOutWithStdin = errors.New("--out cannot be used when reading from stdin")
	// ErrModuleNameAmbiguous is returned when --module-name matches several modules.
	ErrModuleNameAmbiguous = errors.New("--module-name needs exactly one module")
)

type transformFlags struct {
	moduleName  string
	static      bool
	registry    string
	importPaths map[string]string
	out         string
	workers     int
	keepGoing   bool
	diff        bool
	language    string
}

func newTransformCommand(globals *Globals) *cobra.Command {
	flags := &transformFlags{}

	cmd := &cobra.Command{
		Use:   "transform [paths...]",
		Short: "Lower module declarations in files, directories or stdin",
		Long: `Lower the import/export declarations of each module into registry calls,
or canonicalize them with --static.

Directories are searched for .js/.mjs/.cjs/.jsx/.ts/.mts/.cts/.tsx files,
skipping hidden directories and node_modules. With no paths, or "-", the
module is read from stdin and --module-name keys its registry calls.

Examples:
  globalesm transform --module-name app.js < app.js
  globalesm transform src --out dist --keep-going
  globalesm transform --import-path react=/vendor/react.js src/main.ts
  globalesm transform --diff src/main.ts`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTransform(cmd, globals, flags, args)
		},
	}

	cmd.Flags().StringVarP(&flags.moduleName, "module-name", "m", "", "registry key of the module (stdin or a single file)")
	cmd.Flags().BoolVar(&flags.static, "static", false, "canonicalize static import/export syntax instead of lowering")
	cmd.Flags().StringVar(&flags.registry, "registry", "", "dotted registry expression (default from config, else "+esm.DefaultRegistry+")")
	cmd.Flags().StringToStringVar(&flags.importPaths, "import-path", nil, "remap an import source, key=value (repeatable)")
	cmd.Flags().StringVarP(&flags.out, "out", "o", "", "output directory mirroring the inputs (default: stdout)")
	cmd.Flags().IntVarP(&flags.workers, "workers", "j", 0, "concurrent compiles (default: number of CPUs)")
	cmd.Flags().BoolVarP(&flags.keepGoing, "keep-going", "k", false, "compile every module even after failures")
	cmd.Flags().BoolVar(&flags.diff, "diff", false, "print a colored diff of each module instead of writing it")
	cmd.Flags().StringVar(&flags.language, "language", "", "grammar to use: javascript, typescript or tsx (default: detected)")

	return cmd
}

func runTransform(cmd *cobra.Command, globals *Globals, flags *transformFlags, args []string) error {
	application, err := newApp(globals, appOptions{mode: observability.ModeCLI, logOutput: cmd.ErrOrStderr()})
	if err != nil {
		return err
	}
	defer application.close()

	err = applyTransformFlags(cmd, application, flags)
	if err != nil {
		return err
	}

	cfg := application.cfg
	stdin := readsStdin(args)

	if stdin && cfg.Build.OutDir != "" && cmd.Flags().Changed("out") {
		return ErrOutWithStdin
	}

	jobs, err := planJobs(cmd.InOrStdin(), args, planOptions{
		moduleName: flags.moduleName,
		prefix:     cfg.ModulePrefix,
		outDir:     outDirFor(cfg.Build.OutDir, stdin, flags.diff),
		load:       flags.diff,
	})
	if err != nil {
		return err
	}

	builder := build.New(application.comp, build.Config{
		Workers:   cfg.Build.Workers,
		KeepGoing: cfg.Build.KeepGoing,
		Language:  flags.language,
		Options:   cfg.Options,
		Logger:    application.logger(),
	})

	summary, runErr := builder.Run(cmd.Context(), jobs)

	stdout := cmd.OutOrStdout()
	stderr := cmd.ErrOrStderr()

	printFailures(stderr, summary, cfg.Build.KeepGoing)

	switch {
	case flags.diff:
		err = printDiffs(stdout, summary)
	case stdin || cfg.Build.OutDir == "":
		printCode(stdout, summary)
	}

	if err != nil {
		return err
	}

	if !globals.Quiet && !stdin {
		printSummary(stderr, summary, application.store)
	}

	return runErr
}

// applyTransformFlags overlays explicitly set flags on the loaded config.
func applyTransformFlags(cmd *cobra.Command, application *app, flags *transformFlags) error {
	cfg := application.cfg
	changed := cmd.Flags().Changed

	if changed("static") {
		cfg.RuntimeModule = !flags.static
	}

	if changed("registry") {
		cfg.Registry = flags.registry
	}

	if changed("import-path") {
		if cfg.ImportPaths == nil {
			cfg.ImportPaths = make(map[string]string, len(flags.importPaths))
		}

		maps.Copy(cfg.ImportPaths, flags.importPaths)
	}

	if changed("out") {
		cfg.Build.OutDir = flags.out
	}

	if changed("workers") {
		cfg.Build.Workers = flags.workers
	}

	if changed("keep-going") {
		cfg.Build.KeepGoing = flags.keepGoing
	}

	return cfg.Validate()
}

func readsStdin(args []string) bool {
	return len(args) == 0 || (len(args) == 1 && args[0] == stdinArg)
}

// outDirFor drops the output directory when nothing should be written.
func outDirFor(outDir string, stdin, diff bool) string {
	if stdin || diff {
		return ""
	}

	return outDir
}

type planOptions struct {
	moduleName string
	prefix     string
	outDir     string
	// load reads every source up front so it can be diffed afterwards.
	load bool
}

// planJobs turns arguments into jobs. Stdin becomes a single in-memory job.
func planJobs(stdin io.Reader, args []string, opts planOptions) ([]build.Job, error) {
	if readsStdin(args) {
		src, err := build.ReadStdin(stdin)
		if err != nil {
			return nil, err
		}

		return []build.Job{{Source: src, ModuleName: opts.moduleName}}, nil
	}

	sources, err := build.Discover(args)
	if err != nil {
		return nil, err
	}

	jobs := build.Plan(sources, opts.outDir, opts.prefix)

	if opts.moduleName != "" {
		if len(jobs) != 1 {
			return nil, fmt.Errorf("%w: got %d", ErrModuleNameAmbiguous, len(jobs))
		}

		jobs[0].ModuleName = opts.moduleName
	}

	if !opts.load {
		return jobs, nil
	}

	for i := range jobs {
		src, readErr := build.ReadSource(jobs[i].Path)
		if readErr != nil {
			return nil, readErr
		}

		jobs[i].Source = src
	}

	return jobs, nil
}
