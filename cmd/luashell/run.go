package main

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"github.com/dshills/luashell/internal/plugin"
)

type runOptions struct {
	allowOverride bool
	strict        bool
	metrics       bool
	serve         string
	failOnPartial bool
}

func newRunCmd(root *rootOptions) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Load every package and report the outcome",
		Long: `Load every package found in the packages directories, wait for their
initialization to complete and print a report. Failed and unresolved
packages are reported but do not change the exit status unless
--fail-on-partial is given.

With --serve the loader metrics are served over HTTP at /metrics until the
process is interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRun(cmd, root, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.allowOverride, "allow-override", false, "reload packages whose name is already registered")
	cmd.Flags().BoolVar(&opts.strict, "strict", false, "register packages only once their initialization completes")
	cmd.Flags().BoolVar(&opts.metrics, "metrics", false, "print loader metrics after the report")
	cmd.Flags().StringVar(&opts.serve, "serve", "", "serve loader metrics on this address (e.g. :9090)")
	cmd.Flags().BoolVar(&opts.failOnPartial, "fail-on-partial", false, "exit with status 2 when any package failed or stayed unresolved")
	return cmd
}

func runRun(cmd *cobra.Command, root *rootOptions, opts *runOptions) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	if opts.allowOverride {
		cfg.Packages.AllowOverride = true
	}
	if opts.strict {
		cfg.Packages.RegisterOnCompletion = true
	}
	if opts.metrics || opts.serve != "" {
		cfg.Metrics.Enabled = true
	}

	application, report, err := root.startApp(cmd, cfg)
	if err != nil {
		return err
	}
	defer shutdown(application)

	out := cmd.OutOrStdout()
	printReport(out, report)

	if opts.metrics {
		if err := writeMetrics(out, application.Metrics()); err != nil {
			return err
		}
	}

	if opts.serve != "" {
		if err := serveMetrics(cmd, opts.serve, application.Metrics()); err != nil {
			return err
		}
	}

	if err := report.Err(); err != nil && opts.failOnPartial {
		return &exitError{Code: 2}
	}
	return nil
}

func printReport(w io.Writer, report *plugin.Report) {
	fmt.Fprintln(w, titleStyle.Render("Packages"))

	for _, name := range report.Order {
		fmt.Fprintf(w, "%s %s\n", successIcon, nameStyle.Render(name))
	}
	for _, name := range report.Skipped {
		fmt.Fprintf(w, "%s %s %s\n", infoIcon, nameStyle.Render(name), pathStyle.Render("(already loaded, skipped)"))
	}
	for _, f := range report.Failures() {
		label := f.Package
		if label == "" {
			label = f.Dir
		}
		fmt.Fprintf(w, "%s %s %s\n", errorIcon, nameStyle.Render(label), errorStyle.Render(f.Err.Error()))
	}
	for _, u := range report.Unresolved {
		fmt.Fprintf(w, "%s %s %s\n", errorIcon, nameStyle.Render(u.Name),
			errorStyle.Render("missing "+strings.Join(u.Missing, ", ")))
	}
	for _, cycle := range report.Cycles {
		fmt.Fprintf(w, "%s %s\n", errorIcon, errorStyle.Render("dependency cycle: "+strings.Join(cycle, " -> ")))
	}
	if report.Interrupted != nil {
		fmt.Fprintf(w, "%s %s\n", errorIcon, errorStyle.Render("interrupted: "+report.Interrupted.Error()))
	}

	fmt.Fprintf(w, "\n%d initialized, %d failed, %d unresolved\n",
		len(report.Order), len(report.Failures()), len(report.Unresolved))
}

// writeMetrics prints the loader metrics in the text exposition format.
func writeMetrics(w io.Writer, metrics *plugin.Metrics) error {
	families, err := metrics.Registry().Gather()
	if err != nil {
		return fmt.Errorf("gathering metrics: %w", err)
	}
	fmt.Fprintln(w)
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}

// serveMetrics serves /metrics until the command context ends.
func serveMetrics(cmd *cobra.Command, addr string, metrics *plugin.Metrics) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe()
	}()
	fmt.Fprintf(cmd.OutOrStdout(), "%s serving metrics on %s\n", infoIcon, pathStyle.Render(addr))

	select {
	case err := <-errc:
		return err
	case <-cmd.Context().Done():
	}

	ctx, cancel := contextWithShutdownTimeout()
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
