package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/docextract/internal/document"
	"github.com/sells-group/docextract/internal/model"
	"github.com/sells-group/docextract/internal/pipeline"
	"github.com/sells-group/docextract/internal/report"
	"github.com/sells-group/docextract/internal/resilience"
)

var (
	batchClass       string
	batchConcurrency int
	batchReport      string
	batchManifest    string
	batchDLQ         string
	batchLimit       int
)

var batchCmd = &cobra.Command{
	Use:   "batch [dir]",
	Short: "Extract every document in a directory or manifest",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if batchConcurrency > 0 {
			cfg.Batch.Concurrency = batchConcurrency
		}
		env, err := initExtractor(ctx, "batch")
		if err != nil {
			return err
		}
		defer env.Close()

		defaultClass := batchClass
		if defaultClass == "" {
			defaultClass = cfg.Extraction.DefaultClass
		}

		var jobs []batchJob
		switch {
		case batchManifest != "":
			jobs, err = jobsFromManifest(batchManifest, defaultClass)
		case len(args) == 1:
			jobs, err = jobsFromDir(args[0], defaultClass)
		default:
			return eris.New("batch: a directory or --manifest is required")
		}
		if err != nil {
			return err
		}
		if batchLimit > 0 && len(jobs) > batchLimit {
			jobs = jobs[:batchLimit]
		}

		var dlq *resilience.DLQWriter
		dlqPath := batchDLQ
		if dlqPath == "" {
			dlqPath = cfg.Batch.DLQPath
		}
		if dlqPath != "" {
			f, err := os.OpenFile(dlqPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
			if err != nil {
				return eris.Wrap(err, "batch: open dlq")
			}
			defer f.Close() //nolint:errcheck
			dlq = resilience.NewDLQWriter(f)
		}

		rows := processBatch(ctx, jobs, cfg.Batch.Concurrency, dlq, func(ctx context.Context, job batchJob) (*model.ExtractionResult, error) {
			class, err := env.Classes.Get(job.Class)
			if err != nil {
				return nil, resilience.NewPermanentError(err, "unknown_class")
			}
			doc, err := document.Load(job.Path)
			if err != nil {
				return nil, err
			}
			return env.Extractor.Extract(ctx, doc, class, pipeline.Options{CompanyName: job.Company})
		})

		if batchReport != "" {
			if err := report.WriteXLSX(batchReport, rows); err != nil {
				return err
			}
			zap.L().Info("batch report written", zap.String("path", batchReport))
		}

		snap := env.Stats.Snapshot()
		zap.L().Info("batch telemetry",
			zap.Int("model_calls", snap.Calls),
			zap.Int("model_calls_failed", snap.CallsFailed),
			zap.Float64("cost_usd", snap.CostUSD),
			zap.Float64("avg_score", snap.AvgScore),
		)
		return nil
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchClass, "class", "", "document class for entries without one (default from config)")
	batchCmd.Flags().IntVar(&batchConcurrency, "concurrency", 0, "documents processed at once (default from config)")
	batchCmd.Flags().StringVar(&batchReport, "report", "", "write an xlsx report to this path")
	batchCmd.Flags().StringVar(&batchManifest, "manifest", "", "xlsx manifest with file, class and company columns")
	batchCmd.Flags().StringVar(&batchDLQ, "dlq", "", "append failed documents as JSON lines to this file")
	batchCmd.Flags().IntVar(&batchLimit, "limit", 0, "max number of documents to process")
	rootCmd.AddCommand(batchCmd)
}

// batchJob is one document to extract.
type batchJob struct {
	Path    string
	Class   string
	Company string
}

// extractFunc runs the extraction for one job.
type extractFunc func(ctx context.Context, job batchJob) (*model.ExtractionResult, error)

// jobsFromDir lists the supported documents directly inside dir, sorted by name.
func jobsFromDir(dir, class string) ([]batchJob, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, eris.Wrapf(err, "batch: read dir %s", dir)
	}
	var jobs []batchJob
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !document.HasKnownExtension(name) {
			continue
		}
		jobs = append(jobs, batchJob{Path: filepath.Join(dir, name), Class: class})
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].Path < jobs[j].Path })
	return jobs, nil
}

func jobsFromManifest(path, class string) ([]batchJob, error) {
	entries, err := report.ReadManifest(path, report.ManifestOptions{})
	if err != nil {
		return nil, err
	}
	jobs := make([]batchJob, len(entries))
	for i, e := range entries {
		jobs[i] = batchJob{Path: e.Path, Class: e.Class, Company: e.Company}
		if jobs[i].Class == "" {
			jobs[i].Class = class
		}
	}
	return jobs, nil
}

// processBatch extracts jobs concurrently. A failed document never aborts
// the batch; it is recorded in its row and, when dlq is set, appended there.
// Rows keep the order of jobs.
func processBatch(ctx context.Context, jobs []batchJob, concurrency int, dlq *resilience.DLQWriter, extract extractFunc) []report.Row {
	if len(jobs) == 0 {
		zap.L().Info("no documents found")
		return nil
	}
	if concurrency < 1 {
		concurrency = 1
	}

	zap.L().Info("processing batch",
		zap.Int("documents", len(jobs)),
		zap.Int("concurrency", concurrency),
	)

	rows := make([]report.Row, len(jobs))
	var succeeded, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, job := range jobs {
		g.Go(func() error {
			log := zap.L().With(zap.String("document", job.Path), zap.String("class", job.Class))
			rows[i] = report.Row{File: job.Path, Class: job.Class}

			result, err := extract(gctx, job)
			if err != nil {
				failed.Add(1)
				rows[i].Err = err
				log.Error("extraction failed",
					zap.String("kind", string(resilience.Classify(err))),
					zap.Error(err),
				)
				if dlq != nil {
					entry := resilience.NewDLQEntry(job.Path, job.Class, err, cfgDLQRetries(), time.Minute, time.Now())
					if dErr := dlq.Append(entry); dErr != nil {
						log.Warn("failed to write dlq entry", zap.Error(dErr))
					}
				}
				return nil // don't abort batch on individual failure
			}

			succeeded.Add(1)
			rows[i].Result = result
			log.Info("extraction complete",
				zap.Int("score", result.QualityScore.Score),
				zap.String("tier", result.Tier),
				zap.Int("passes", len(result.Passes)),
			)
			return nil
		})
	}
	_ = g.Wait()

	zap.L().Info("batch complete",
		zap.Int64("succeeded", succeeded.Load()),
		zap.Int64("failed", failed.Load()),
	)
	return rows
}

func cfgDLQRetries() int {
	if cfg == nil {
		return 0
	}
	return cfg.Batch.DLQRetries
}
