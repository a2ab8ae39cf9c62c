package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/himanishpuri/HammerCheck/internal/trackio"
	"github.com/himanishpuri/HammerCheck/pkg/hammercheck"
	"github.com/himanishpuri/HammerCheck/pkg/hammercheck/storage"
	"github.com/himanishpuri/HammerCheck/pkg/logger"
	"github.com/himanishpuri/HammerCheck/pkg/models"
	"github.com/himanishpuri/HammerCheck/pkg/utils"
)

// Global flags
var (
	dbPath      string
	minDuration int64
	minPressure int
	thresholds  string
	envCfg      hammercheck.EnvConfig
)

func init() {
	cfg, err := hammercheck.LoadEnvConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid environment: %v\n", err)
		os.Exit(1)
	}
	envCfg = cfg

	flag.StringVar(&dbPath, "db", cfg.DBPath, "Path to the SQLite database file (env: HAMMERCHECK_DB_PATH)")
	flag.Int64Var(&minDuration, "min-duration", cfg.MinDuration, "Drop events shorter than this before matching, 0 disables (env: HAMMERCHECK_MIN_DURATION)")
	flag.IntVar(&minPressure, "min-pressure", cfg.MinPressure, "Drop events whose peak pressure is below this, 0 disables (env: HAMMERCHECK_MIN_PRESSURE)")
	flag.StringVar(&thresholds, "thresholds", cfg.ThresholdsPath, "Motor threshold JSON used to drop inaudible strikes (env: HAMMERCHECK_THRESHOLDS)")
}

// createService creates a new HammerCheck service with configured options
func createService(extra ...hammercheck.Option) (hammercheck.Service, error) {
	cfg := envCfg
	cfg.DBPath = dbPath
	cfg.MinDuration = minDuration
	cfg.MinPressure = minPressure
	cfg.ThresholdsPath = thresholds

	opts, err := cfg.Options()
	if err != nil {
		return nil, err
	}
	return hammercheck.NewService(append(opts, extra...)...)
}

func main() {
	flag.Usage = printUsage
	flag.Parse()

	log := logger.GetLogger().Named("cli")

	args := flag.Args()
	if len(args) < 1 {
		printUsage()
		os.Exit(1)
	}

	command := args[0]
	log.Debugf("Executing command: %s", command)

	switch command {
	case "analyze":
		handleAnalyze(args[1:])
	case "history":
		handleHistory(args[1:])
	case "show":
		handleShow(args[1:])
	case "delete":
		handleDelete(args[1:])
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// splitPositional pulls the first non-flag argument out of args so flags may
// follow it.
func splitPositional(args []string) (string, []string) {
	for i, arg := range args {
		if !strings.HasPrefix(arg, "-") {
			rest := append(append([]string{}, args[:i]...), args[i+1:]...)
			return arg, rest
		}
	}
	return "", args
}

func fail(format string, args ...any) {
	fmt.Printf(format+"\n", args...)
	os.Exit(1)
}

func handleAnalyze(args []string) {
	log := logger.GetLogger().Named("analyze")

	tracksPath, flagArgs := splitPositional(args)

	analyzeCmd := flag.NewFlagSet("analyze", flag.ExitOnError)
	name := analyzeCmd.String("name", "", "Run name (default: derived from the track digest)")
	noHistory := analyzeCmd.Bool("no-history", false, "Do not store the run")
	limit := analyzeCmd.Int("limit", 20, "Maximum anomalies to print per kind, 0 prints all")
	exceeds := analyzeCmd.String("exceeds", "", "Comma-separated record:replay index pairs matched beyond tolerance")
	analyzeCmd.Parse(flagArgs)

	if tracksPath == "" {
		fmt.Println("Usage: hammercheck analyze <tracks.json> [--name <name>] [--no-history] [--exceeds 3:4,7:9]")
		os.Exit(1)
	}

	pairs, err := parseIndexPairs(*exceeds)
	if err != nil {
		fail("Invalid --exceeds: %v", err)
	}

	tracks, err := trackio.LoadFile(tracksPath)
	if err != nil {
		log.Errorf("Loading tracks failed: %v", err)
		fail("Failed to load tracks: %v", err)
	}

	var extra []hammercheck.Option
	if *noHistory {
		extra = append(extra, hammercheck.WithoutHistory())
	}
	svc, err := createService(extra...)
	if err != nil {
		log.Errorf("Service initialization failed: %v", err)
		fail("Failed to create service: %v", err)
	}
	defer svc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	report, err := svc.Analyze(ctx, hammercheck.AnalyzeRequest{
		Name:             *name,
		Record:           tracks.Record,
		Replay:           tracks.Replay,
		ExceedsTolerance: pairs,
	})
	if err != nil {
		log.Errorf("Analyze failed: %v", err)
		fail("Analysis failed: %v", err)
	}

	printReport(report, *limit)
}

func parseIndexPairs(s string) ([]hammercheck.IndexPair, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var out []hammercheck.IndexPair
	for _, part := range strings.Split(s, ",") {
		rec, rep, ok := strings.Cut(strings.TrimSpace(part), ":")
		if !ok {
			return nil, fmt.Errorf("%q is not record:replay", part)
		}
		r, err := strconv.Atoi(rec)
		if err != nil {
			return nil, fmt.Errorf("record index %q: %w", rec, err)
		}
		p, err := strconv.Atoi(rep)
		if err != nil {
			return nil, fmt.Errorf("replay index %q: %w", rep, err)
		}
		out = append(out, hammercheck.IndexPair{Record: r, Replay: p})
	}
	return out, nil
}

func printReport(r *hammercheck.Report, limit int) {
	s := r.Summary
	fmt.Printf("\nRun %s (%s)\n", r.Name, r.RunID)
	if r.Existing {
		fmt.Println("   These tracks were analyzed before; showing a fresh computation of the stored run")
	}
	fmt.Printf("   Record:     %s events (%s filtered)\n", humanize.Comma(int64(s.RecordCount)), humanize.Comma(int64(r.RecordStats.Invalid)))
	fmt.Printf("   Replay:     %s events (%s filtered)\n", humanize.Comma(int64(s.ReplayCount)), humanize.Comma(int64(r.ReplayStats.Invalid)))
	fmt.Printf("   Matched:    %s (%s)\n", humanize.Comma(int64(s.MatchedCount)), percent(s.SuccessRate))
	fmt.Printf("   Dropped:    %s\n", humanize.Comma(int64(s.DroppedCount)))
	fmt.Printf("   Duplicated: %s\n", humanize.Comma(int64(s.DuplicatedCount)))

	d := r.Delay
	if d.Count > 0 {
		fmt.Println("\nKey-on delay (replay - record):")
		fmt.Printf("   ME %s | MAE %s | SD %s | RMSE %s | CV %s%%\n",
			humanize.FormatFloat("#,###.##", d.Mean), humanize.FormatFloat("#,###.##", d.MAE),
			humanize.FormatFloat("#,###.##", d.StdDev), humanize.FormatFloat("#,###.##", d.RMSE),
			humanize.FormatFloat("#,###.#", d.CV))
		fmt.Printf("   min %d | max %d over %s pairs\n", d.Min, d.Max, humanize.Comma(int64(d.Count)))
	}

	w := hammercheck.DefaultWindow()
	printAnomalies("Dropped (record only)", r.Dropped, w, limit)
	printAnomalies("Duplicated (replay only)", r.Duplicated, w, limit)
}

func percent(rate float64) string {
	return humanize.FormatFloat("#.#", rate*100) + "%"
}

func printAnomalies(title string, list []models.AnomalyRecord, w hammercheck.Window, limit int) {
	if len(list) == 0 {
		return
	}
	fmt.Printf("\n%s: %d\n", title, len(list))
	shown := len(list)
	if limit > 0 && shown > limit {
		shown = limit
	}
	for _, a := range list[:shown] {
		fmt.Printf("   %s[%d] key %d on=%d off=%d window x%.2f  %s\n",
			a.Side(), a.Index, a.Event.KeyID, a.Event.KeyOn(), a.Event.KeyOff(),
			w.Factor(a.Event.Duration()), a.Reason)
	}
	if shown < len(list) {
		fmt.Printf("   ... and %d more\n", len(list)-shown)
	}
}

func handleHistory(args []string) {
	log := logger.GetLogger().Named("history")

	historyCmd := flag.NewFlagSet("history", flag.ExitOnError)
	limit := historyCmd.Int("limit", 20, "Maximum runs to list, 0 lists all")
	historyCmd.Parse(args)

	svc, err := createService()
	if err != nil {
		log.Errorf("Service initialization failed: %v", err)
		fail("Failed to create service: %v", err)
	}
	defer svc.Close()

	runs, err := svc.ListRuns(*limit)
	if err != nil {
		log.Errorf("ListRuns failed: %v", err)
		fail("Failed to list runs: %v", err)
	}

	if len(runs) == 0 {
		fmt.Println("\nNo runs in history")
		return
	}

	fmt.Printf("\nFound %d run(s):\n\n", len(runs))
	for i, run := range runs {
		fmt.Printf("%d. %s (ID: %s)\n", i+1, run.Name, run.ID)
		fmt.Printf("   %s | matched %s/%s (%s) | dropped %s | duplicated %s\n",
			humanize.Time(run.CreatedAt),
			humanize.Comma(int64(run.MatchedCount)), humanize.Comma(int64(run.RecordCount)),
			percent(run.SuccessRate),
			humanize.Comma(int64(run.DroppedCount)), humanize.Comma(int64(run.DuplicatedCount)))
		fmt.Println()
	}
}

func handleShow(args []string) {
	log := logger.GetLogger().Named("show")

	if len(args) < 1 {
		fmt.Println("Usage: hammercheck show <run_id>")
		os.Exit(1)
	}
	runID := args[0]
	if !utils.ValidRunID(runID) {
		fail("Invalid run ID: %s", runID)
	}

	svc, err := createService()
	if err != nil {
		log.Errorf("Service initialization failed: %v", err)
		fail("Failed to create service: %v", err)
	}
	defer svc.Close()

	run, err := svc.GetRun(runID)
	if err != nil {
		if errors.Is(err, storage.ErrRunNotFound) {
			fail("Run not found (ID: %s)", runID)
		}
		fail("Failed to load run: %v", err)
	}
	anomalies, err := svc.RunAnomalies(runID)
	if err != nil {
		fail("Failed to load anomalies: %v", err)
	}

	fmt.Printf("\nRun %s (ID: %s)\n", run.Name, run.ID)
	fmt.Printf("   Created:    %s (%s)\n", run.CreatedAt.Format(time.RFC3339), humanize.Time(run.CreatedAt))
	fmt.Printf("   Digest:     %s\n", run.Digest)
	fmt.Printf("   Matched:    %s/%s (%s)\n", humanize.Comma(int64(run.MatchedCount)), humanize.Comma(int64(run.RecordCount)), percent(run.SuccessRate))
	fmt.Printf("   Mean error: %s | MAE %s | SD %s\n",
		humanize.FormatFloat("#,###.##", run.MeanError),
		humanize.FormatFloat("#,###.##", run.MAE),
		humanize.FormatFloat("#,###.##", run.StdDev))

	if len(anomalies) == 0 {
		fmt.Println("\nNo anomalies")
		return
	}
	fmt.Printf("\nAnomalies: %d\n", len(anomalies))
	for _, a := range anomalies {
		fmt.Printf("   %-10s %-17s #%d key %d on=%d  %s\n", a.Kind, a.Status, a.EventIndex, a.KeyID, a.KeyOn, a.Reason)
	}
}

func handleDelete(args []string) {
	log := logger.GetLogger().Named("delete")

	if len(args) < 1 {
		fmt.Println("Usage: hammercheck delete <run_id>")
		os.Exit(1)
	}
	runID := args[0]
	if !utils.ValidRunID(runID) {
		fail("Invalid run ID: %s", runID)
	}

	svc, err := createService()
	if err != nil {
		log.Errorf("Service initialization failed: %v", err)
		fail("Failed to create service: %v", err)
	}
	defer svc.Close()

	run, err := svc.GetRun(runID)
	if err != nil {
		log.Warnf("Run %s not found: %v", runID, err)
		fail("Run not found (ID: %s)", runID)
	}

	if err := svc.DeleteRun(runID); err != nil {
		log.Errorf("DeleteRun failed: %v", err)
		fail("Failed to delete run: %v", err)
	}

	fmt.Printf("\nDeleted run:\n")
	fmt.Printf("   ID:   %s\n", run.ID)
	fmt.Printf("   Name: %s\n", run.Name)
	log.Infof("Deleted run ID=%s ('%s')", run.ID, run.Name)
}

func printUsage() {
	fmt.Println("HammerCheck - piano record/replay anomaly analysis")
	fmt.Println("\nGlobal Options:")
	fmt.Println("  --db <path>            Path to SQLite database (env: HAMMERCHECK_DB_PATH, default: hammercheck.sqlite3)")
	fmt.Println("  --min-duration <n>     Minimum event duration kept before matching (env: HAMMERCHECK_MIN_DURATION)")
	fmt.Println("  --min-pressure <n>     Minimum peak pressure kept before matching (env: HAMMERCHECK_MIN_PRESSURE)")
	fmt.Println("  --thresholds <file>    Motor threshold JSON (env: HAMMERCHECK_THRESHOLDS)")
	fmt.Println("\nUsage:")
	fmt.Println("  hammercheck [global-options] analyze <tracks.json> [--name <name>] [--no-history] [--limit <n>] [--exceeds 3:4,7:9]")
	fmt.Println("  hammercheck [global-options] history [--limit <n>]")
	fmt.Println("  hammercheck [global-options] show <run_id>")
	fmt.Println("  hammercheck [global-options] delete <run_id>")
	fmt.Println("\nExamples:")
	fmt.Println("  hammercheck analyze take1.json --name \"Etude op.10 no.1\"")
	fmt.Println("  hammercheck --min-duration 300 --min-pressure 500 analyze take1.json --no-history")
}
