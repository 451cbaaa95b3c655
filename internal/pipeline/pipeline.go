// Package pipeline runs one statement through loading, extraction,
// normalization and insight generation, producing an Artifact.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dvloznov/statement-parser/internal/config"
	"github.com/dvloznov/statement-parser/internal/document"
	"github.com/dvloznov/statement-parser/internal/domain"
	"github.com/dvloznov/statement-parser/internal/extraction"
	"github.com/dvloznov/statement-parser/internal/insights"
	"github.com/dvloznov/statement-parser/internal/llm"
	"github.com/dvloznov/statement-parser/internal/logger"
	"github.com/dvloznov/statement-parser/internal/normalize"
	"github.com/dvloznov/statement-parser/internal/ocr"
)

// Input is one statement to process.
type Input struct {
	// Name is the original file name; its extension helps format sniffing.
	Name string
	Data []byte
	// TestMode forces the fixture path for this run only.
	TestMode bool
}

// Runner processes statements with a fixed set of collaborators.
type Runner struct {
	cfg       config.Config
	loader    DocumentLoader
	extractor Extractor
	insights  InsightGenerator
}

// New creates a Runner from explicit collaborators.
func New(cfg config.Config, loader DocumentLoader, extractor Extractor, gen InsightGenerator) *Runner {
	return &Runner{cfg: cfg, loader: loader, extractor: extractor, insights: gen}
}

// NewFromConfig wires the production collaborators. recognizer may be nil,
// which limits local recognition to PDF text layers. A remote model that
// cannot be initialized is logged and treated as unavailable.
func NewFromConfig(ctx context.Context, cfg config.Config, recognizer ocr.Recognizer) *Runner {
	log := logger.FromContext(ctx)

	rasterizer := document.Chain{
		document.NewPopplerRasterizer(cfg.OCR.PdftoppmPath, cfg.OCR.DPI),
		document.PdfcpuRasterizer{},
	}

	var gen llm.Generator
	if cfg.RemoteEnabled() {
		g, err := llm.NewGeminiGenerator(ctx, cfg.Gemini)
		if err != nil {
			log.Warn().Err(err).Msg("remote model unavailable; using local extraction")
		} else {
			log.Info().Str("model", g.Model()).Msg("remote model configured")
			gen = g
		}
	}

	engine := ocr.NewEngine(recognizer, ocr.Options{
		Concurrency:    cfg.OCR.Concurrency,
		MinTextDensity: cfg.OCR.MinTextDensity,
	})

	return New(cfg,
		document.NewLoader(rasterizer),
		extraction.NewInvoker(gen, engine),
		insights.New(gen, insights.Options{Tolerance: cfg.Normalize.Tolerance}),
	)
}

// Run processes one statement. It fails only when the input cannot be read
// as a PDF or image (outside test mode) or the context ends; every other
// problem degrades the artifact and is described in its quality metadata.
func (r *Runner) Run(ctx context.Context, in Input) (domain.Artifact, error) {
	runID := uuid.New().String()
	ctx = logger.WithRunID(ctx, runID)
	log := logger.FromContext(ctx)

	cfg := r.cfg
	if in.TestMode {
		cfg.TestMode = true
	}
	state := &PipelineState{
		Name:     in.Name,
		Data:     in.Data,
		Strategy: extraction.SelectStrategy(cfg),
	}

	log.Info().
		Str("document", in.Name).
		Int("bytes", len(in.Data)).
		Str("strategy", state.Strategy.String()).
		Msg("statement run started")
	start := time.Now()

	p := NewPipeline(
		&LoadDocumentStep{Loader: r.loader},
		&ExtractStep{Extractor: r.extractor},
		&NormalizeStep{Options: normalize.Options{Tolerance: cfg.Normalize.Tolerance, DayFirst: cfg.Normalize.DayFirst}},
		&InsightStep{Generator: r.insights},
		&AssembleStep{},
	)
	if err := p.Execute(ctx, state); err != nil {
		log.Error().Err(err).Str("document", in.Name).Msg("statement run failed")
		return domain.Artifact{}, err
	}

	q := state.Artifact.Quality
	log.Info().
		Str("extraction_path", q.ExtractionPath).
		Bool("used_remote_model", q.UsedRemoteModel).
		Int("transactions", len(state.Artifact.Fields.Transactions)).
		Int("insights", len(state.Artifact.Insights)).
		Strs("missing_sections", q.MissingSections).
		Int64("elapsed_ms", time.Since(start).Milliseconds()).
		Msg("statement run finished")
	return state.Artifact, nil
}
