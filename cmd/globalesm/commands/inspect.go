package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/globalesm/internal/build"
	"github.com/Sumatoshi-tech/globalesm/internal/observability"
	"github.com/Sumatoshi-tech/globalesm/pkg/esm"
	"github.com/Sumatoshi-tech/globalesm/pkg/jsast"
)

// Output formats of the inspect command.
const (
	formatTable = "table"
	formatYAML  = "yaml"
	formatJSON  = "json"
)

// stdinModuleName keys registry calls of a module inspected from stdin.
const stdinModuleName = "stdin.js"

// ErrUnknownFormat is returned for an unsupported --format value.
var ErrUnknownFormat = errors.New("unknown format")

// ModuleReport is the inspect view of one module.
type ModuleReport struct {
	File     string              `json:"file"               yaml:"file"`
	Module   string              `json:"module"             yaml:"module"`
	Language string              `json:"language"           yaml:"language"`
	Imports  []esm.ImportBinding `json:"imports"            yaml:"imports"`
	Exports  []esm.ExportBinding `json:"exports"            yaml:"exports"`
	Handles  []esm.Handle        `json:"handles,omitempty"  yaml:"handles,omitempty"`
	Warnings []esm.Warning       `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

func newInspectCommand(globals *Globals) *cobra.Command {
	var format, language string

	cmd := &cobra.Command{
		Use:   "inspect [paths...]",
		Short: "Print the bindings each module imports and exports",
		Long: `Collect the import and export bindings of each module without writing
anything. With no paths, or "-", the module is read from stdin.

Examples:
  globalesm inspect src
  globalesm inspect --format yaml src/main.ts
  globalesm inspect --format json < app.js`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(cmd, globals, format, language, args)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", formatTable, "output format (table, yaml, json)")
	cmd.Flags().StringVar(&language, "language", "", "grammar to use: javascript, typescript or tsx (default: detected)")

	return cmd
}

func runInspect(cmd *cobra.Command, globals *Globals, format, language string, args []string) error {
	switch format {
	case formatTable, formatYAML, formatJSON:
	default:
		return fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}

	application, err := newApp(globals, appOptions{mode: observability.ModeCLI, logOutput: cmd.ErrOrStderr()})
	if err != nil {
		return err
	}
	defer application.close()

	cfg := application.cfg

	jobs, err := planJobs(cmd.InOrStdin(), args, planOptions{prefix: cfg.ModulePrefix})
	if err != nil {
		return err
	}

	if len(jobs) == 1 && jobs[0].Path == "" {
		jobs[0].ModuleName = stdinModuleName
	}

	builder := build.New(application.comp, build.Config{
		Workers:   cfg.Build.Workers,
		KeepGoing: cfg.Build.KeepGoing,
		Language:  language,
		Options:   cfg.Options,
		Logger:    application.logger(),
	})

	summary, runErr := builder.Run(cmd.Context(), jobs)

	printFailures(cmd.ErrOrStderr(), summary, cfg.Build.KeepGoing)

	err = writeReports(cmd.OutOrStdout(), format, reportsOf(summary))
	if err != nil {
		return err
	}

	return runErr
}

func reportsOf(summary build.Summary) []ModuleReport {
	reports := make([]ModuleReport, 0, len(summary.Results))

	for _, res := range summary.Results {
		if res.Output == nil {
			continue
		}

		reports = append(reports, ModuleReport{
			File:     jobName(res.Job),
			Module:   res.Job.ModuleName,
			Language: res.Output.Language,
			Imports:  res.Output.Imports,
			Exports:  res.Output.Exports,
			Handles:  res.Output.Handles,
			Warnings: res.Output.Warnings,
		})
	}

	return reports
}

func writeReports(w io.Writer, format string, reports []ModuleReport) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")

		err := enc.Encode(reports)
		if err != nil {
			return fmt.Errorf("failed to encode JSON: %w", err)
		}
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)

		err := enc.Encode(reports)
		if err != nil {
			return fmt.Errorf("failed to encode YAML: %w", err)
		}

		err = enc.Close()
		if err != nil {
			return fmt.Errorf("failed to encode YAML: %w", err)
		}
	default:
		for _, report := range reports {
			fmt.Fprintln(w, renderReportTable(report))
		}
	}

	return nil
}

// renderReportTable renders one module as a go-pretty table.
func renderReportTable(report ModuleReport) string {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.SetTitle("%s (%s, %s)", report.File, report.Module, report.Language)
	tbl.AppendHeader(table.Row{"Direction", "Kind", "Local", "Name", "Source", "Retained"})

	for _, imp := range report.Imports {
		tbl.AppendRow(table.Row{"import", imp.Kind, imp.Local, imp.ImportedName(), imp.Source, strconv.FormatBool(imp.Retained)})
	}

	for _, exp := range report.Exports {
		tbl.AppendRow(table.Row{"export", exp.Kind, exp.Local, exp.ExportedName(), "", strconv.FormatBool(exp.Retained)})
	}

	tbl.AppendFooter(table.Row{"", "", "", "", fmt.Sprintf("%d imports", len(report.Imports)), fmt.Sprintf("%d exports", len(report.Exports))})

	out := tbl.Render()

	for _, warning := range report.Warnings {
		out += "\n" + formatWarning(report.File, warning.Pos, warning.Msg)
	}

	return out
}

func formatWarning(file string, pos jsast.Position, msg string) string {
	return fmt.Sprintf("warning: %s:%d:%d: %s", file, pos.Line, pos.Column, msg)
}
