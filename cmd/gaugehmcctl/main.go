package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gaugehmc/internal/action"
	"gaugehmc/internal/integrator"
	"gaugehmc/internal/measure"
	"gaugehmc/internal/storage"
	api "gaugehmc/pkg/gaugehmc"
)

const (
	artifactsDir = "runs"
	exportsDir   = "exports"
	defaultDB    = "gaugehmc.db"
)

var stdout io.Writer = os.Stdout

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "init":
		return runInit(ctx, args[1:])
	case "run":
		return runRun(ctx, args[1:])
	case "sweep":
		return runSweep(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "trajectories":
		return runTrajectories(ctx, args[1:])
	case "measurements":
		return runMeasurements(ctx, args[1:])
	case "export":
		return runExport(ctx, args[1:])
	case "list":
		return runList(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

type commonFlags struct {
	storeKind *string
	dbPath    *string
	runsDir   *string
	logLevel  *string
	logFormat *string
}

func addCommonFlags(fs *flag.FlagSet) commonFlags {
	return commonFlags{
		storeKind: fs.String("store", "memory", "store backend: memory|sqlite"),
		dbPath:    fs.String("db-path", defaultDB, "sqlite database path"),
		runsDir:   fs.String("runs-dir", artifactsDir, "run artifacts directory"),
		logLevel:  fs.String("log-level", "info", "log level: debug|info|warn|error"),
		logFormat: fs.String("log-format", "auto", "log format: auto|text|json"),
	}
}

func (c commonFlags) client(reg prometheus.Registerer) (*api.Client, error) {
	logger, err := newLogger(os.Stderr, *c.logLevel, *c.logFormat)
	if err != nil {
		return nil, err
	}
	return api.New(api.Options{
		StoreKind:    *c.storeKind,
		DBPath:       *c.dbPath,
		ArtifactsDir: *c.runsDir,
		ExportsDir:   exportsDir,
		Logger:       logger,
		Registerer:   reg,
	})
}

func runInit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	common := addCommonFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := common.client(nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	if err := client.Init(ctx); err != nil {
		return err
	}

	fmt.Fprintf(stdout, "initialized store=%s\n", *common.storeKind)
	return nil
}

func runRun(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	common := addCommonFlags(fs)
	paramsPath := fs.String("params", "", "parameter file (yaml or json)")
	runID := fs.String("run-id", "", "explicit run id (optional)")
	seed := fs.Int64("seed", 1, "rng seed")
	equilibration := fs.Int("equilibration", 5, "unmeasured trajectories before measuring")
	measured := fs.Int("measured", 20, "measured trajectories")
	resumeFrom := fs.String("resume-from", "", "start from the stored configuration of this run id")
	saveConfig := fs.Bool("save-config", false, "store the final gauge configuration")
	metricsAddr := fs.String("metrics-addr", "", "serve prometheus metrics on this address while running")
	jsonOut := fs.Bool("json", false, "emit the run summary as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	setFlags := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		setFlags[f.Name] = true
	})

	var reg *prometheus.Registry
	if *metricsAddr != "" {
		reg = prometheus.NewRegistry()
		srv, err := serveMetrics(*metricsAddr, reg)
		if err != nil {
			return err
		}
		defer func() {
			_ = srv.Close()
		}()
	}

	client, err := common.client(registerer(reg))
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	req := api.RunRequest{
		RunID:             *runID,
		ParamsFile:        *paramsPath,
		ResumeFrom:        *resumeFrom,
		SaveConfiguration: *saveConfig,
	}
	if setFlags["seed"] {
		req.Seed = seed
	}
	if setFlags["equilibration"] {
		req.Equilibration = equilibration
	}
	if setFlags["measured"] {
		req.Measured = measured
	}

	summary, err := client.Run(ctx, req)
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(summary)
	}

	fmt.Fprintf(stdout, "run completed run_id=%s trajectories=%s configurations=%s acceptance=%.3f hdiff=%.4g exp_hdiff=%.4f\n",
		summary.RunID,
		humanize.Comma(int64(summary.Trajectories)),
		humanize.Comma(int64(summary.Configurations)),
		summary.AcceptanceRate,
		summary.HDiff,
		summary.ExpHDiff,
	)
	for _, m := range summary.Measurements {
		fmt.Fprintf(stdout, "  %s(%d): %s +- %s (n=%d)\n", m.Name, m.ID, formatFloat(m.Mean), formatFloat(m.Error), m.Count)
	}
	if summary.ArtifactsDir != "" {
		fmt.Fprintf(stdout, "artifacts=%s\n", summary.ArtifactsDir)
	}
	return nil
}

func runSweep(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("sweep", flag.ContinueOnError)
	common := addCommonFlags(fs)
	paramsPath := fs.String("params", "", "parameter file (yaml or json)")
	sweepID := fs.String("sweep-id", "", "explicit sweep id (optional)")
	actionID := fs.Int("action-id", 0, "id of the action whose parameter is scanned (0 = first action)")
	parameter := fs.String("param", "", "action parameter to scan, for example beta or omega")
	values := fs.String("values", "", "comma separated parameter values")
	jsonOut := fs.Bool("json", false, "emit the sweep summary as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *parameter == "" {
		return errors.New("sweep requires --param")
	}
	scan, err := parseFloats(*values)
	if err != nil {
		return err
	}
	if len(scan) == 0 {
		return errors.New("sweep requires --values")
	}

	client, err := common.client(nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	sw, err := client.Sweep(ctx, api.SweepRequest{
		SweepID:    *sweepID,
		ParamsFile: *paramsPath,
		ActionID:   *actionID,
		Parameter:  *parameter,
		Values:     scan,
	})
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(sw)
	}
	fmt.Fprintf(stdout, "sweep completed sweep_id=%s param=%s points=%d\n", sw.SweepID, sw.Parameter, len(sw.Points))
	for _, p := range sw.Points {
		fmt.Fprintf(stdout, "  %s=%s run_id=%s acceptance=%.3f", sw.Parameter, formatFloat(p.Value), p.RunID, p.AcceptanceRate)
		for _, m := range p.Measurements {
			fmt.Fprintf(stdout, " %s=%s+-%s", m.Name, formatFloat(m.Mean), formatFloat(m.Error))
		}
		fmt.Fprintln(stdout)
	}
	return nil
}

func runRuns(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	common := addCommonFlags(fs)
	limit := fs.Int("limit", 20, "max runs to list")
	jsonOut := fs.Bool("json", false, "emit runs list as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}

	client, err := common.client(nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	runs, err := client.Runs(ctx, api.RunsRequest{Limit: *limit})
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(runs)
	}
	if len(runs) == 0 {
		fmt.Fprintln(stdout, "no runs found")
		return nil
	}
	now := time.Now()
	for _, r := range runs {
		created := r.CreatedAtUTC
		if ts, err := time.Parse(time.RFC3339Nano, r.CreatedAtUTC); err == nil {
			created = humanize.RelTime(ts, now, "ago", "from now")
		}
		fmt.Fprintf(stdout, "run_id=%s created=%s lattice=%s boundary=%s actions=%s integrator=%s seed=%d trajectories=%s acceptance=%.3f\n",
			r.RunID,
			created,
			formatLengths(r.Lengths),
			r.Boundary,
			strings.Join(r.Actions, ","),
			r.Integrator,
			r.Seed,
			humanize.Comma(int64(r.Trajectories)),
			r.AcceptanceRate,
		)
	}
	return nil
}

func runTrajectories(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("trajectories", flag.ContinueOnError)
	common := addCommonFlags(fs)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "use the most recent run from run index")
	limit := fs.Int("limit", 0, "max trajectories to show (0 = all)")
	jsonOut := fs.Bool("json", false, "emit trajectories as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID != "" && *latest {
		return errors.New("use either --run-id or --latest, not both")
	}

	client, err := common.client(nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	items, err := client.Trajectories(ctx, api.TrajectoriesRequest{RunID: *runID, Latest: *latest, Limit: *limit})
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(items)
	}
	for _, t := range items {
		fmt.Fprintf(stdout, "trajectory=%d configuration=%d measured=%t accepted=%t delta_h=%.6g\n",
			t.Index, t.Configuration, t.Measured, t.Accepted, t.DeltaH)
	}
	return nil
}

func runMeasurements(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("measurements", flag.ContinueOnError)
	common := addCommonFlags(fs)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "use the most recent run from run index")
	values := fs.Bool("values", false, "print every measured value")
	jsonOut := fs.Bool("json", false, "emit measurements as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID != "" && *latest {
		return errors.New("use either --run-id or --latest, not both")
	}

	client, err := common.client(nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	ms, err := client.Measurements(ctx, api.MeasurementsRequest{RunID: *runID, Latest: *latest})
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(ms)
	}
	for _, m := range ms {
		fmt.Fprintf(stdout, "%s(%d): %s +- %s (n=%d)\n", m.Name, m.ID, formatFloat(m.Mean), formatFloat(m.Error), m.Count)
		if *values {
			for i, v := range m.Values {
				fmt.Fprintf(stdout, "  %d %.12g\n", i, v)
			}
		}
	}
	return nil
}

func runExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	common := addCommonFlags(fs)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "export the most recent run from run index")
	outDir := fs.String("out", exportsDir, "export output directory")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID != "" && *latest {
		return errors.New("use either --run-id or --latest, not both")
	}
	if *runID == "" && !*latest {
		return errors.New("export requires --run-id or --latest")
	}

	client, err := common.client(nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	exported, err := client.Export(ctx, api.ExportRequest{RunID: *runID, Latest: *latest, OutDir: *outDir})
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "exported run_id=%s to=%s\n", exported.RunID, filepath.Clean(exported.Directory))
	return nil
}

// runList prints the registered components and the storage backends.
func runList(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "actions: %s\n", strings.Join(action.ListActions(), ", "))
	fmt.Fprintf(stdout, "integrators: %s\n", strings.Join(integrator.ListIntegrators(), ", "))
	fmt.Fprintf(stdout, "measurements: %s\n", strings.Join(measure.ListMeasurements(), ", "))
	fmt.Fprintf(stdout, "stores: %s\n", strings.Join(storage.Backends(), ", "))
	return nil
}

func serveMetrics(addr string, reg *prometheus.Registry) (*http.Server, error) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		return nil, fmt.Errorf("metrics server: %w", err)
	case <-time.After(50 * time.Millisecond):
		return srv, nil
	}
}

// registerer keeps a nil *Registry from becoming a non-nil interface.
func registerer(reg *prometheus.Registry) prometheus.Registerer {
	if reg == nil {
		return nil
	}
	return reg
}

func writeJSON(v any) error {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseFloats(s string) ([]float64, error) {
	var out []float64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, fmt.Errorf("parse value %q: %w", part, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', 6, 64)
}

func formatLengths(l [4]int) string {
	parts := make([]string, len(l))
	for i, n := range l {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, "x")
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: gaugehmcctl <init|run|sweep|runs|trajectories|measurements|export|list> [flags]", msg)
}
