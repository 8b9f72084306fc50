package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/sonido-clave/analysis"
	"github.com/RyanBlaney/sonido-clave/logging"
)

type analyzeOptions struct {
	noCache      bool
	refresh      bool
	json         bool
	workers      int
	alternatives int
}

// fileReport is one analyzed file in command output
type fileReport struct {
	File       string                `json:"file"`
	Artist     string                `json:"artist"`
	Track      string                `json:"track"`
	Hash       string                `json:"hash,omitempty"`
	Key        string                `json:"key,omitempty"`
	Scale      string                `json:"scale,omitempty"`
	Estimate   *analysis.KeyEstimate `json:"estimate,omitempty"`
	Cache      string                `json:"cache,omitempty"`
	CacheError string                `json:"cache_error,omitempty"`
	Error      string                `json:"error,omitempty"`
}

type analyzeReport struct {
	Results     []fileReport          `json:"results"`
	Transitions []analysis.Transition `json:"transitions,omitempty"`
}

func newAnalyzeCommand(ctx *commandContext) *cobra.Command {
	var opts analyzeOptions

	cmd := &cobra.Command{
		Use:   "analyze <file>...",
		Short: "Detect the key of one or more audio files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, ctx, opts, args)
		},
	}

	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "Neither read nor write the result cache")
	cmd.Flags().BoolVar(&opts.refresh, "refresh", false, "Recompute and overwrite cached results")
	cmd.Flags().BoolVar(&opts.json, "json", false, "Print results as JSON")
	cmd.Flags().IntVarP(&opts.workers, "workers", "w", 0, "Files analyzed in parallel (default from config)")
	cmd.Flags().IntVarP(&opts.alternatives, "alternatives", "a", 0, "Alternative keys to report (default from config)")

	return cmd
}

func runAnalyze(cmd *cobra.Command, ctx *commandContext, opts analyzeOptions, files []string) error {
	var extra []analysis.Option
	if cmd.Flags().Changed("workers") {
		extra = append(extra, analysis.WithWorkers(opts.workers))
	}
	if cmd.Flags().Changed("alternatives") {
		if opts.alternatives < 1 || opts.alternatives > 23 {
			return fmt.Errorf("--alternatives must be between 1 and 23, got %d", opts.alternatives)
		}
		extra = append(extra, analysis.WithAlternatives(opts.alternatives))
	}

	useCache := !opts.noCache
	engine, closeCache, err := ctx.newEngine(useCache, extra...)
	if err != nil {
		return err
	}
	defer closeCache()

	decoder, err := ctx.newDecoder()
	if err != nil {
		return err
	}

	reports := make([]fileReport, len(files))
	inputs := make([]analysis.Input, 0, len(files))
	positions := make([]int, 0, len(files))

	for i, path := range files {
		info := analysis.TrackInfoFromFilename(path)
		reports[i] = fileReport{File: path, Artist: info.Artist, Track: info.Track}

		in, err := analysis.FileInput(path, decoder)
		if err != nil {
			reports[i].Error = err.Error()
			continue
		}
		in.Refresh = opts.refresh
		reports[i].Hash = in.Hash
		inputs = append(inputs, in)
		positions = append(positions, i)
	}

	results, batchErr := engine.AnalyzeBatch(cmd.Context(), inputs, useCache)

	var estimates []analysis.KeyEstimate
	for _, r := range results {
		report := &reports[positions[r.Index]]
		if r.Err != nil {
			report.Error = r.Err.Error()
			continue
		}

		estimate := r.Analysis.Estimate
		report.Estimate = &estimate
		report.Key = estimate.Name()
		report.Scale = estimate.Scale()
		report.Cache = string(r.Analysis.Cache)
		if r.Analysis.CacheErr != nil {
			report.CacheError = r.Analysis.CacheErr.Error()
		}
		estimates = append(estimates, estimate)
	}

	report := analyzeReport{
		Results:     reports,
		Transitions: analysis.KeyTransitions(estimates),
	}

	if opts.json {
		if err := writeJSON(cmd, report); err != nil {
			return err
		}
	} else {
		printAnalyzeReport(cmd.OutOrStdout(), report)
	}

	if batchErr != nil {
		return batchErr
	}

	failed := 0
	for _, r := range reports {
		if r.Error != "" {
			failed++
			ctx.logger.Warn("Analysis failed", logging.Fields{
				"file":  r.File,
				"error": r.Error,
			})
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(files))
	}
	return nil
}

func printAnalyzeReport(out io.Writer, report analyzeReport) {
	headers := []string{"File", "Artist", "Track", "Key", "Scale", "Confidence", "BPM", "Energy", "Brightness", "Cache"}
	aligns := []columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignLeft}

	rows := make([][]string, 0, len(report.Results))
	for _, r := range report.Results {
		name := filepath.Base(r.File)
		if r.Estimate == nil {
			rows = append(rows, []string{name, r.Artist, r.Track, "error", "", "", "", "", "", ""})
			continue
		}
		e := r.Estimate
		rows = append(rows, []string{
			name,
			r.Artist,
			r.Track,
			r.Key,
			r.Scale,
			formatPercent(e.Confidence),
			strconv.FormatFloat(e.TempoBPM, 'f', 1, 64),
			strconv.FormatFloat(e.Energy, 'f', 4, 64),
			strconv.FormatFloat(e.Brightness, 'f', 0, 64) + " Hz",
			r.Cache,
		})
	}
	fmt.Fprintln(out, renderTable(headers, rows, aligns))

	for _, r := range report.Results {
		if r.Estimate == nil || len(r.Estimate.Alternatives) == 0 {
			continue
		}
		fmt.Fprintf(out, "%s alternatives:", filepath.Base(r.File))
		for _, alt := range r.Estimate.Alternatives {
			fmt.Fprintf(out, " %s (%s)", alt.Key(), formatPercent(alt.Confidence))
		}
		fmt.Fprintln(out)
	}

	if len(report.Transitions) == 0 {
		return
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Key transitions:")
	tRows := make([][]string, 0, len(report.Transitions))
	for _, t := range report.Transitions {
		tRows = append(tRows, []string{
			strconv.Itoa(t.Position),
			t.From.String(),
			t.To.String(),
			strconv.Itoa(t.Distance),
			string(t.Kind),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"#", "From", "To", "Semitones", "Relation"},
		tRows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft},
	))
}

func formatPercent(v float64) string {
	return strconv.FormatFloat(v*100, 'f', 1, 64) + "%"
}
