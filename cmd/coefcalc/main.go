// Command coefcalc computes demand/SWAT adjustment coefficients from CSV
// exports and writes the Excel report.
//
// Usage:
//
//	coefcalc -demand 'exports/demand_*.csv' -swat exports/swat.csv [-out dir|report.xlsx] [-csv] [-keyset union]
//
// -demand and -swat may be repeated and accept files, directories or globs.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"coefcalc/internal/config"
	apperrors "coefcalc/internal/errors"
	"coefcalc/internal/exporter"
	"coefcalc/internal/infrastructure"
	"coefcalc/internal/ingest"
	"coefcalc/internal/services"
	"coefcalc/internal/validation"
	"coefcalc/pkg/contracts"
	"coefcalc/pkg/contracts/domain"
)

// Exit codes
const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

// listFlag collects a repeatable string flag
type listFlag []string

func (l *listFlag) String() string { return strings.Join(*l, ",") }

func (l *listFlag) Set(v string) error {
	*l = append(*l, v)
	return nil
}

type options struct {
	demand     listFlag
	swat       listFlag
	out        string
	csv        bool
	keyset     string
	configFile string
	logLevel   string
	version    bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintln(stderr, err)
		return exitUsage
	}
	if opts.version {
		fmt.Fprintln(stdout, contracts.GetFullVersionString())
		return exitOK
	}

	cfg, err := loadConfig(opts.configFile)
	if err != nil {
		fmt.Fprintf(stderr, "configuration error: %v\n", err)
		return exitUsage
	}
	cfg.Logging.Output = "console"
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}

	logger, err := infrastructure.NewLogger(cfg.Logging, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "logger error: %v\n", err)
		return exitError
	}

	if err := calculate(ctx, cfg, opts, logger, stdout); err != nil {
		logger.ErrorContext(ctx, "Calculation failed", slog.String("error", err.Error()))
		fmt.Fprintf(stderr, "error: %s\n", apperrors.UserMessage(err))
		return exitError
	}
	return exitOK
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Load()
	}
	return config.LoadFile(path)
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	opts := &options{}
	fs := flag.NewFlagSet("coefcalc", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Var(&opts.demand, "demand", "demand CSV file, directory or glob (repeatable)")
	fs.Var(&opts.swat, "swat", "SWAT CSV file, directory or glob (repeatable)")
	fs.StringVar(&opts.out, "out", "", "output directory or .xlsx path (defaults to the reports directory)")
	fs.BoolVar(&opts.csv, "csv", false, "also write a CSV export next to the workbook")
	fs.StringVar(&opts.keyset, "keyset", "", "product set: demand or union (defaults to configuration)")
	fs.StringVar(&opts.configFile, "config", "", "YAML configuration file")
	fs.StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error")
	fs.BoolVar(&opts.version, "version", false, "print version information and exit")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if opts.version {
		return opts, nil
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	if len(opts.demand) == 0 || len(opts.swat) == 0 {
		return nil, errors.New("at least one -demand and one -swat input are required")
	}
	return opts, nil
}

func calculate(ctx context.Context, cfg *config.Config, opts *options, logger *slog.Logger, stdout io.Writer) error {
	validator := validation.NewFileValidator(logger)

	demandPaths, err := validator.ResolveInputs(opts.demand)
	if err != nil {
		return apperrors.NewAppValidationError(err.Error())
	}
	swatPaths, err := validator.ResolveInputs(opts.swat)
	if err != nil {
		return apperrors.NewAppValidationError(err.Error())
	}

	maxBytes := cfg.Limits.MaxFileBytes
	demand, err := ingest.ReadFiles(demandPaths, domain.FamilyDemand, maxBytes)
	if err != nil {
		return err
	}
	swat, err := ingest.ReadFiles(swatPaths, domain.FamilySwat, maxBytes)
	if err != nil {
		return err
	}

	guard := ingest.NewGuard(ingest.LimitsFromConfig(cfg.Limits), nil, logger)
	svc, err := services.NewCalculationService(guard, cfg.Calculation, nil, logger)
	if err != nil {
		return err
	}

	reporter := services.ProgressFunc(func(ctx context.Context, stage string, percent int, message string) {
		logger.InfoContext(ctx, "Progress",
			slog.String("stage", stage),
			slog.Int("percent", percent),
			slog.String("message", message))
	})

	res, err := svc.Calculate(ctx, append(demand, swat...), services.CalculationOptions{
		Keyset:   opts.keyset,
		Reporter: reporter,
	})
	if err != nil {
		return err
	}

	paths := cfg.ResolvedPaths()
	outDir, reportPath := reportTarget(paths, opts.out, res)
	if err := validator.ValidateOutputDirectory(outDir); err != nil {
		return apperrors.NewStorageError(err.Error(), err)
	}

	workbook := exporter.NewWorkbookWriter(paths, logger)
	csvWriter := exporter.NewCSVWriter(paths, logger)
	if opts.out == "" {
		reportPath, err = workbook.Save(ctx, res)
	} else {
		reportPath, err = workbook.SaveAs(ctx, reportPath, res)
	}
	if err != nil {
		return err
	}

	var csvPath string
	if opts.csv {
		if opts.out == "" {
			csvPath, err = csvWriter.Save(ctx, res)
		} else {
			csvPath, err = csvWriter.SaveAs(ctx, strings.TrimSuffix(reportPath, filepath.Ext(reportPath))+".csv", res)
		}
		if err != nil {
			return err
		}
	}

	printSummary(stdout, res, reportPath, csvPath)
	return nil
}

// reportTarget resolves -out into the output directory and workbook path.
// A .xlsx value names the workbook; anything else is a directory. Empty
// means the configured reports directory.
func reportTarget(paths *config.Paths, out string, res *domain.CalculationResult) (string, string) {
	switch {
	case out == "":
		return paths.ReportsDir, paths.GetReportPath(exporter.ReportFilename(res.GeneratedAt))
	case strings.EqualFold(filepath.Ext(out), ".xlsx"):
		return filepath.Dir(out), out
	default:
		return out, filepath.Join(out, exporter.ReportFilename(res.GeneratedAt))
	}
}

func printSummary(out io.Writer, res *domain.CalculationResult, reportPath, csvPath string) {
	s := res.Summary
	st := res.Statistics
	fmt.Fprintf(out, "Products:        %d (keyset %s)\n", s.Products, s.Keyset)
	fmt.Fprintf(out, "Input files:     %d demand, %d SWAT\n", s.DemandFileCount, s.SwatFileCount)
	fmt.Fprintf(out, "Coefficient 1.00: %d\n", st.AtParity)
	fmt.Fprintf(out, "Coefficient 0.80: %d\n", st.AtFloor)
	fmt.Fprintf(out, "Coefficient 1.50: %d\n", st.AtCeiling)
	fmt.Fprintf(out, "Average bias:    %.3f%%\n", st.AverageBiasPercent)
	if s.Warning != "" {
		fmt.Fprintf(out, "Warning:         %s\n", s.Warning)
	}
	fmt.Fprintf(out, "Report:          %s\n", reportPath)
	if csvPath != "" {
		fmt.Fprintf(out, "CSV:             %s\n", csvPath)
	}
}
