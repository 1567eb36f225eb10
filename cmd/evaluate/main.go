package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/schollz/progressbar/v3"

	"plate-reader/config"
	app "plate-reader/internal/application"
	"plate-reader/internal/container"
	"plate-reader/internal/infrastructure/vision"
	"plate-reader/pkg/log"
)

func main() {
	var (
		dataset = flag.String("dataset", "", "directory with images and .txt ground truth")
		sample  = flag.Int("random", 0, "evaluate a random sample of N images")
		workers = flag.Int("workers", 0, "number of workers (default: one per CPU)")
		logPath = flag.String("save-log", "", "write failures to this file")
		verbose = flag.Bool("verbose", false, "log pipeline details to stderr")
	)
	flag.Parse()

	if *dataset == "" {
		fmt.Fprintln(os.Stderr, "usage: evaluate -dataset DIR [-random N] [-workers N] [-save-log FILE]")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := log.Discard()
	if *verbose {
		logger = log.NewLogger(log.Options{Level: cfg.LogLevel, File: cfg.LogFile, Env: cfg.AppEnv})
	}

	files, err := app.ListImages(*dataset, *sample, rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())))
	if err != nil {
		fmt.Fprintf(os.Stderr, "dataset: %v\n", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Println("No images to evaluate.")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	factory := func() (app.FrameReader, io.Closer, error) {
		return container.NewPipeline(cfg, logger)
	}
	evaluator := app.NewEvaluator(factory, vision.NewCodec(), *workers, logger)

	bar := progressbar.Default(int64(len(files)), "evaluating")
	report, err := evaluator.Run(ctx, files, func(app.EvalResult) { _ = bar.Add(1) })
	_ = bar.Finish()
	if report == nil {
		fmt.Fprintf(os.Stderr, "evaluation failed: %v\n", err)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "evaluation interrupted: %v\n", err)
	}

	printReport(os.Stdout, report, len(files))

	if *logPath != "" {
		if err := writeFailures(*logPath, report.Failures()); err != nil {
			fmt.Fprintf(os.Stderr, "failure log: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("\nFailure log written to %s\n", *logPath)
	}
}

func printReport(w io.Writer, r *app.EvalReport, total int) {
	secs := r.Elapsed.Seconds()
	fmt.Fprintln(w, "\n--- End-to-end evaluation ---")
	fmt.Fprintf(w, "Time: %.2fs (%.2f images/s)\n", secs, float64(total)/(secs+1e-6))
	fmt.Fprintf(w, "Processed: %d\n", len(r.Results))
	fmt.Fprintln(w, strings.Repeat("-", 50))
	fmt.Fprintf(w, "Correct: %d (%.2f%%)\n", r.Counts[app.EvalCorrect], r.Accuracy*100)
	fmt.Fprintln(w, strings.Repeat("-", 50))
	fmt.Fprintf(w, "Incorrect: %d\n", r.Counts[app.EvalIncorrect])
	fmt.Fprintf(w, "Detection failures: %d\n", r.Counts[app.EvalDetectionFailed])
	fmt.Fprintf(w, "OCR/validation failures: %d\n", r.Counts[app.EvalOCRFailed])
	fmt.Fprintf(w, "Read errors: %d\n", r.Counts[app.EvalReadError])
	fmt.Fprintf(w, "No ground truth: %d\n", r.Counts[app.EvalNoGroundTruth])
	fmt.Fprintf(w, "Critical errors: %d\n", r.Counts[app.EvalCriticalError])
	if r.MeanIoU > 0 {
		fmt.Fprintf(w, "Mean IoU of top candidate: %.3f\n", r.MeanIoU)
	}
}

func writeFailures(path string, lines []string) error {
	var sb strings.Builder
	sb.WriteString("--- Failures ---\n\n")
	for _, l := range lines {
		sb.WriteString(l)
		sb.WriteByte('\n')
	}
	return os.WriteFile(path, []byte(sb.String()), 0o644)
}
