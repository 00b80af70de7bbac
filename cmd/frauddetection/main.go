// Command frauddetection trains UPI fraud classifiers on a transaction CSV
// and either prints an evaluation report or serves the detection API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mailgun/mailgun-go/v4"

	"github.com/FlavioCFOliveira/upifraud/internal/alert"
	"github.com/FlavioCFOliveira/upifraud/internal/api"
	"github.com/FlavioCFOliveira/upifraud/internal/config"
	"github.com/FlavioCFOliveira/upifraud/internal/dataset"
	"github.com/FlavioCFOliveira/upifraud/internal/fraud"
	"github.com/FlavioCFOliveira/upifraud/internal/logger"
	"github.com/FlavioCFOliveira/upifraud/internal/net"
	"github.com/FlavioCFOliveira/upifraud/internal/session"
	"github.com/FlavioCFOliveira/upifraud/internal/stream"
)

func main() {
	dataFlag := flag.String("data", "", "Transaction CSV to load (bundled sample when empty)")
	modelFlag := flag.String("model", "all", "Model to train: logistic, random_forest, deep_net or all")
	seedFlag := flag.Int64("seed", 0, "Seed for the split and weight initialisation (SPLIT_SEED when 0)")
	historyFlag := flag.String("history", "", "Write per-epoch training loss to this CSV file")
	serveFlag := flag.Bool("serve", false, "Serve the HTTP API instead of printing a report")
	envFlag := flag.String("env", "", "Load settings from this .env file")
	flag.Parse()

	var envFiles []string
	if *envFlag != "" {
		envFiles = append(envFiles, *envFlag)
	}
	cfg, err := config.Load(envFiles...)
	if err != nil {
		log.Fatal(err)
	}
	if *seedFlag != 0 {
		cfg.SplitSeed = *seedFlag
	}

	l := logger.New(cfg.LogLevel, os.Stderr)
	slog.SetDefault(l)

	notifier := alert.NewNotifier(newDispatcher(cfg, l), alertSettings(cfg, l), l)
	defer notifier.Close()

	opts := session.Options{
		TestRatio:   cfg.TestRatio,
		Seed:        cfg.SplitSeed,
		LogInterval: 10,
		SampleURL:   cfg.SampleDatasetURL,
		Alerts:      notifier,
		Logger:      l,
	}
	var history *net.CSVLogger
	if *historyFlag != "" {
		history = net.NewCSVLogger(*historyFlag, true)
		history.Log = l
		opts.Callbacks = append(opts.Callbacks, history)
	}
	s := session.New(opts)

	if *serveFlag {
		if err := serve(cfg, s, notifier, *dataFlag, l); err != nil {
			l.Error("server stopped", "error", err)
			notifier.Close()
			os.Exit(1)
		}
		return
	}

	if err := report(s, *dataFlag, *modelFlag); err != nil {
		notifier.Close()
		log.Fatal(err)
	}
	if history != nil && history.Err() != nil {
		fmt.Fprintf(os.Stderr, "warning: training history incomplete: %v\n", history.Err())
	}
}

// newDispatcher picks the alert channel, falling back to the log when Mailgun
// is selected but not fully configured.
func newDispatcher(cfg *config.Config, l *slog.Logger) alert.Dispatcher {
	switch cfg.AlertProvider {
	case "mailgun":
		if !cfg.MailgunConfigured() {
			l.Warn("Mailgun configuration incomplete (domain, API key, sender or recipient missing). Falling back to log alerts.")
			return alert.LogDispatcher{Log: l}
		}
		mg := mailgun.NewMailgun(cfg.MailgunDomain, cfg.MailgunAPIKey)
		l.Info("Mailgun alert channel initialized", "domain", cfg.MailgunDomain)
		return alert.NewMailgunDispatcher(mg, cfg.AlertSender, cfg.AlertRecipient, l)
	default:
		return alert.LogDispatcher{Log: l}
	}
}

func alertSettings(cfg *config.Config, l *slog.Logger) alert.Settings {
	priority, err := alert.ParsePriority(cfg.AlertPriority)
	if err != nil {
		l.Warn("Invalid ALERT_PRIORITY, defaulting to high", "configured", cfg.AlertPriority)
		priority = alert.PriorityHigh
	}
	return alert.Settings{
		Priority:      priority,
		RatePerMinute: cfg.AlertRatePerMinute,
		DedupeTTL:     cfg.AlertDedupeTTL,
		Timeout:       cfg.AlertTimeout,
	}
}

func load(ctx context.Context, s *session.Session, path string) (dataset.ParseResult, error) {
	if path == "" {
		return s.LoadSample(ctx)
	}
	f, err := os.Open(path)
	if err != nil {
		return dataset.ParseResult{}, err
	}
	defer f.Close()
	return s.LoadCSV(f)
}

func serve(cfg *config.Config, s *session.Session, notifier *alert.Notifier, dataPath string, l *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if dataPath != "" {
		if _, err := load(ctx, s, dataPath); err != nil {
			return fmt.Errorf("loading %s: %w", dataPath, err)
		}
	}

	runner := stream.New(s, cfg.StreamInterval, cfg.StreamCapacity, l)
	defer runner.Stop()

	app := api.NewApp(&api.Handler{
		Session:       s,
		Stream:        runner,
		Alerts:        notifier,
		BandedMetrics: cfg.MetricDisplayBanded,
		BaseContext:   ctx,
		Log:           l,
	})

	errCh := make(chan error, 1)
	go func() {
		l.Info("HTTP server listening", "port", cfg.Port)
		errCh <- app.Listen(":" + cfg.Port)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	l.Info("shutting down")
	s.CancelTraining()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return app.ShutdownWithContext(shutdownCtx)
}

func report(s *session.Session, dataPath, model string) error {
	ctx := context.Background()

	fmt.Println("=============================================================")
	fmt.Println("  UPI Fraud Detection")
	fmt.Println("=============================================================")
	fmt.Println()

	// Step 1: Load data
	fmt.Println("--- Step 1: Loading Transactions ---")
	source := dataPath
	if source == "" {
		source = "bundled sample"
	}
	res, err := load(ctx, s, dataPath)
	if err != nil {
		return fmt.Errorf("loading %s: %w", source, err)
	}
	fmt.Printf("Source: %s\n", source)
	fmt.Printf("Rows: %d (labeled %d, skipped %d, with warnings %d)\n", res.RowCount, res.LabeledCount, res.SkippedCount, res.WarningCount)
	for _, issue := range res.Errors {
		fmt.Printf("  skipped %s\n", issue)
	}
	for _, issue := range res.Warnings {
		fmt.Printf("  warning %s\n", issue)
	}

	fraudCount := 0
	for _, r := range s.Dataset() {
		if r.HasLabel && r.FraudLabel == 1 {
			fraudCount++
		}
	}
	if res.LabeledCount > 0 {
		fmt.Printf("Fraudulent transactions: %d (%.2f%%)\n", fraudCount, float64(fraudCount)/float64(res.LabeledCount)*100)
	}
	fmt.Println()

	// Step 2: Encoders
	fmt.Println("--- Step 2: Building Encoders ---")
	enc := s.Encoders()
	fmt.Printf("Transaction types (%d): %s\n", len(enc.TransTypes), strings.Join(enc.TransTypes, ", "))
	fmt.Printf("Locations (%d): %s\n", len(enc.Locations), strings.Join(enc.Locations, ", "))
	fmt.Printf("Devices (%d)\n", len(enc.Devices))
	for _, name := range []string{"Amount", "hour", "dow"} {
		st := enc.Stat(name)
		fmt.Printf("  %-7s mean=%10.2f std=%10.2f\n", name, st.Mean, st.Std)
	}
	fmt.Printf("Feature vector width: %d\n", enc.Width())
	fmt.Println()

	// Step 3: Train
	var archs []fraud.Architecture
	if model == "all" {
		archs = []fraud.Architecture{fraud.Logistic, fraud.RandomForest}
	} else {
		arch, err := fraud.ParseArchitecture(model)
		if err != nil {
			return err
		}
		archs = []fraud.Architecture{arch}
	}

	fmt.Println("--- Step 3: Training Models ---")
	var trained *fraud.TrainedModel
	for _, arch := range archs {
		m, err := s.Train(ctx, arch)
		if err != nil {
			if errors.Is(err, fraud.ErrInsufficientData) {
				return fmt.Errorf("%w (upload a CSV with at least %d labeled rows)", err, fraud.MinLabeledRecords)
			}
			return err
		}
		trained = m

		fmt.Printf("Model: %s (train %d, test %d, %d epochs, final loss %.4f)\n", m.ModelType, m.TrainSize, m.TestSize, m.Epochs, m.FinalLoss)
		m.Summary(os.Stdout)
		fmt.Printf("  Accuracy:  %.2f%%\n", m.Metrics.Accuracy*100)
		fmt.Printf("  Precision: %.2f%%\n", m.Metrics.Precision*100)
		fmt.Printf("  Recall:    %.2f%%\n", m.Metrics.Recall*100)
		fmt.Printf("  F1 Score:  %.2f%%\n", m.Metrics.F1*100)
		fmt.Printf("  Confusion: TP=%d TN=%d FP=%d FN=%d\n", m.Confusion.TP, m.Confusion.TN, m.Confusion.FP, m.Confusion.FN)
		fmt.Println()
	}

	// Step 4: Predict
	fmt.Printf("--- Step 4: Sample Predictions (%s) ---\n", trained.ModelType)
	samples := s.Preview()
	samples = append(samples, dataset.Record{
		TransactionID:   "MANUAL-1",
		Amount:          95000,
		Timestamp:       time.Date(2024, 3, 9, 2, 30, 0, 0, time.UTC),
		Location:        "Unknown",
		TransactionType: "Transfer",
	})
	for _, r := range samples {
		p, err := s.Predict(ctx, r)
		if err != nil {
			return err
		}
		actual := "-"
		if r.HasLabel {
			actual = fraud.LabelGenuine
			if r.FraudLabel == 1 {
				actual = fraud.LabelFraud
			}
		}
		fmt.Printf("  %-10s ₹%10.2f %-10s p=%.3f -> %-7s (actual %s)\n", r.TransactionID, r.Amount, r.TransactionType, p.Probability, p.Label, actual)
	}
	fmt.Println()
	fmt.Println("Done.")
	return nil
}
