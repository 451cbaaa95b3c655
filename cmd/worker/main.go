package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dvloznov/statement-parser/internal/config"
	"github.com/dvloznov/statement-parser/internal/document"
	"github.com/dvloznov/statement-parser/internal/domain"
	"github.com/dvloznov/statement-parser/internal/jobs"
	"github.com/dvloznov/statement-parser/internal/jobs/inmemory"
	"github.com/dvloznov/statement-parser/internal/logger"
	"github.com/dvloznov/statement-parser/internal/ocr"
	"github.com/dvloznov/statement-parser/internal/ocr/tesseract"
	"github.com/dvloznov/statement-parser/internal/output"
	"github.com/dvloznov/statement-parser/internal/pipeline"
	"github.com/dvloznov/statement-parser/internal/source"
)

// worker parses a batch of statements concurrently and writes one artifact
// per input. It exits non-zero when any input could not be processed.
func main() {
	cfg := config.Load()

	var (
		workers = flag.Int("workers", cfg.API.JobWorkers, "Number of statements processed at once")
		outDir  = flag.String("out", cfg.Output.Dir, "Directory for the artifacts")
		xlsx    = flag.Bool("xlsx", cfg.Output.XLSX, "Also write Excel workbooks")
		test    = flag.Bool("test", cfg.TestMode, "Use fixture data for every input")
		local   = flag.Bool("local", cfg.DisableRemote, "Skip the remote model")
		timeout = flag.Duration("timeout", 5*time.Minute, "Time limit per statement")
	)
	flag.Usage = func() {
		fmt.Fprintln(flag.CommandLine.Output(), "Usage: worker [options] <file|gs://bucket/object>...")
		flag.PrintDefaults()
	}
	flag.Parse()

	log := logger.NewWithLevel(cfg.LogLevel)

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(1)
	}

	cfg.TestMode = *test
	cfg.DisableRemote = *local
	cfg.Output.Dir = *outDir
	cfg.Output.XLSX = *xlsx
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	var recognizer ocr.Recognizer
	if !cfg.TestMode {
		recognizer = tesseract.New(cfg.OCR.Language, cfg.OCR.TessdataPrefix)
	}
	runner := pipeline.NewFromConfig(ctx, cfg, recognizer)
	reader := source.NewReader(cfg.Storage)
	writer := &output.Writer{Dir: cfg.Output.Dir, XLSX: cfg.Output.XLSX}

	var (
		mu      sync.Mutex
		written = make(map[string]string)
	)

	// Each job carries its input location as Filename and reads it lazily.
	handler := func(ctx context.Context, job *jobs.ParseJob) (domain.Artifact, error) {
		ctx, cancel := context.WithTimeout(ctx, *timeout)
		defer cancel()

		in := pipeline.Input{Name: job.Filename, TestMode: job.TestMode}
		if !job.TestMode {
			file, err := reader.Read(ctx, job.Filename)
			if err != nil {
				return domain.Artifact{}, jobs.Permanent(err)
			}
			in.Name, in.Data = file.Name, file.Data
		}

		artifact, err := runner.Run(ctx, in)
		if err != nil {
			var unsupported *document.UnsupportedFormatError
			if errors.As(err, &unsupported) || errors.Is(err, context.Canceled) {
				return domain.Artifact{}, jobs.Permanent(err)
			}
			return domain.Artifact{}, err
		}

		paths, err := writer.Write(ctx, in.Name, artifact)
		if err != nil {
			return domain.Artifact{}, err
		}
		mu.Lock()
		written[job.JobID] = paths.JSON
		mu.Unlock()
		return artifact, nil
	}

	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(jobStore, inmemory.Options{
		BufferSize: flag.NArg(),
		Workers:    *workers,
		MaxRetries: cfg.API.JobMaxRetries,
	})
	if err := jobQueue.Start(ctx, handler); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job workers")
	}

	submitted := make([]*jobs.ParseJob, 0, flag.NArg())
	for _, location := range flag.Args() {
		job := &jobs.ParseJob{Filename: location, TestMode: cfg.TestMode}
		if err := jobQueue.Publish(ctx, job); err != nil {
			log.Fatal().Err(err).Str("input", location).Msg("Failed to enqueue statement")
		}
		submitted = append(submitted, job)
	}
	log.Info().Int("statements", len(submitted)).Int("workers", *workers).Msg("Batch started")

	results := waitForJobs(ctx, jobStore, submitted)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}

	failed := 0
	for _, job := range results {
		switch job.Status {
		case jobs.JobStatusCompleted:
			mu.Lock()
			path := written[job.JobID]
			mu.Unlock()
			fmt.Printf("OK     %s -> %s\n", job.Filename, path)
		default:
			failed++
			fmt.Printf("FAILED %s: %s\n", job.Filename, orStatus(job))
		}
	}

	log.Info().Int("statements", len(results)).Int("failed", failed).Msg("Batch finished")
	if failed > 0 {
		os.Exit(1)
	}
}

// waitForJobs polls the store until every job has finished or ctx ends.
func waitForJobs(ctx context.Context, store jobs.JobStore, submitted []*jobs.ParseJob) []*jobs.ParseJob {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		results := make([]*jobs.ParseJob, 0, len(submitted))
		done := true
		for _, s := range submitted {
			job, err := store.GetJob(context.WithoutCancel(ctx), s.JobID)
			if err != nil {
				job = &jobs.ParseJob{JobID: s.JobID, Filename: s.Filename, Status: jobs.JobStatusFailed, Error: err.Error()}
			}
			if !job.Finished() {
				done = false
			}
			results = append(results, job)
		}
		if done {
			return results
		}

		select {
		case <-ctx.Done():
			return results
		case <-ticker.C:
		}
	}
}

func orStatus(job *jobs.ParseJob) string {
	if job.Error != "" {
		return job.Error
	}
	return string(job.Status)
}
