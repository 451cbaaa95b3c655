package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/statement-parser/internal/config"
	"github.com/dvloznov/statement-parser/internal/domain"
	"github.com/dvloznov/statement-parser/internal/logger"
	"github.com/dvloznov/statement-parser/internal/ocr"
	"github.com/dvloznov/statement-parser/internal/ocr/tesseract"
	"github.com/dvloznov/statement-parser/internal/output"
	"github.com/dvloznov/statement-parser/internal/pipeline"
	"github.com/dvloznov/statement-parser/internal/source"
)

func main() {
	cfg := config.Load()
	log := logger.NewWithLevel(cfg.LogLevel)

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "parse":
		err = runParse(log, cfg, os.Args[2:])
	case "inspect":
		err = runInspect(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "ERROR:", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Bank Statement Parser")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  parse     Parse a statement (PDF or image, local path or gs:// URI)")
	fmt.Println("  inspect   Summarize a saved artifact JSON file")
	fmt.Println("  help      Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

func runParse(log zerolog.Logger, cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("parse", flag.ExitOnError)
	testMode := fs.Bool("test", cfg.TestMode, "Use fixture data; the input is not read and no network is used")
	local := fs.Bool("local", cfg.DisableRemote, "Skip the remote model and use local OCR only")
	outDir := fs.String("out", cfg.Output.Dir, "Directory for the artifact (default: current directory)")
	xlsx := fs.Bool("xlsx", cfg.Output.XLSX, "Also write an Excel workbook")
	quiet := fs.Bool("quiet", false, "Do not print the artifact to stdout")
	timeout := fs.Duration("timeout", 5*time.Minute, "Overall time limit for the run")
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "Usage: cli parse [options] <file|gs://bucket/object>")
		fs.PrintDefaults()
	}
	fs.Parse(args)

	if fs.NArg() != 1 {
		fs.Usage()
		return errors.New("exactly one input file is required")
	}
	location := fs.Arg(0)

	cfg.TestMode = *testMode
	cfg.DisableRemote = *local
	cfg.Output.Dir = *outDir
	cfg.Output.XLSX = *xlsx
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	in := pipeline.Input{Name: location, TestMode: cfg.TestMode}
	if source.IsGCSURI(location) {
		in.Name = source.FilenameFromGCSURI(location)
	}
	if !cfg.TestMode {
		file, err := source.NewReader(cfg.Storage).Read(ctx, location)
		if err != nil {
			return err
		}
		in.Name, in.Data = file.Name, file.Data
	}

	var recognizer ocr.Recognizer
	if !cfg.TestMode {
		recognizer = tesseract.New(cfg.OCR.Language, cfg.OCR.TessdataPrefix)
	}
	runner := pipeline.NewFromConfig(ctx, cfg, recognizer)

	artifact, err := runner.Run(ctx, in)
	if err != nil {
		return err
	}

	writer := &output.Writer{Dir: cfg.Output.Dir, XLSX: cfg.Output.XLSX}
	paths, err := writer.Write(ctx, in.Name, artifact)
	if err != nil {
		return err
	}

	if !*quiet {
		data, err := output.Marshal(artifact)
		if err != nil {
			return err
		}
		os.Stdout.Write(data)
	}
	fmt.Printf("\nSaved JSON -> %s\n", paths.JSON)
	if paths.XLSX != "" {
		fmt.Printf("Saved XLSX -> %s\n", paths.XLSX)
	}
	return nil
}

func runInspect(args []string) error {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	xlsx := fs.String("xlsx", "", "Write the artifact as an Excel workbook to this path")
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "Usage: cli inspect [options] <artifact.json>")
		fs.PrintDefaults()
	}
	fs.Parse(args)

	if fs.NArg() != 1 {
		fs.Usage()
		return errors.New("exactly one artifact file is required")
	}

	data, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return err
	}
	var artifact domain.Artifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		return fmt.Errorf("decode %s: %w", fs.Arg(0), err)
	}

	printArtifact(artifact)

	if *xlsx != "" {
		book, err := output.Workbook(artifact)
		if err != nil {
			return err
		}
		if err := os.WriteFile(*xlsx, book, 0o644); err != nil {
			return err
		}
		fmt.Printf("\nSaved XLSX -> %s\n", *xlsx)
	}
	return nil
}

func printArtifact(a domain.Artifact) {
	info := a.Fields.AccountInfo
	q := a.Quality

	fmt.Println("=== Statement ===")
	fmt.Printf("Bank:          %s\n", orDash(info.BankName))
	fmt.Printf("Holder:        %s\n", orDash(info.HolderName))
	fmt.Printf("Account:       %s\n", orDash(info.AccountNumber))
	fmt.Printf("Period:        %s\n", orDash(info.StatementPeriod))
	fmt.Printf("Transactions:  %d\n", len(a.Fields.Transactions))

	fmt.Println("\n=== Quality ===")
	fmt.Printf("Path:          %s (remote model: %t)\n", q.ExtractionPath, q.UsedRemoteModel)
	if len(q.MissingSections) > 0 {
		fmt.Printf("Missing:       %s\n", strings.Join(q.MissingSections, ", "))
	}
	if q.OCRConfidence != nil {
		fmt.Printf("OCR:           %.2f\n", *q.OCRConfidence)
	}
	if q.ReconciliationResidual != nil {
		fmt.Printf("Residual:      %.2f\n", *q.ReconciliationResidual)
	}
	if q.DuplicateEntries {
		fmt.Println("Duplicates:    yes")
	}
	for _, note := range q.Notes {
		fmt.Printf("  - %s\n", note)
	}

	fmt.Println("\n=== Insights ===")
	for _, insight := range a.Insights {
		fmt.Printf("  - %s\n", insight)
	}
}

func orDash(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}
