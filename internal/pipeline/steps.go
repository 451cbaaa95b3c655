package pipeline

import (
	"context"
	"fmt"

	"github.com/dvloznov/statement-parser/internal/document"
	"github.com/dvloznov/statement-parser/internal/domain"
	"github.com/dvloznov/statement-parser/internal/extraction"
	"github.com/dvloznov/statement-parser/internal/logger"
	"github.com/dvloznov/statement-parser/internal/normalize"
	"github.com/dvloznov/statement-parser/internal/quality"
)

// PipelineStep represents a single step of a run.
type PipelineStep interface {
	Execute(ctx context.Context, state *PipelineState) error
}

// PipelineState holds the shared state across all pipeline steps.
type PipelineState struct {
	Name     string
	Data     []byte
	Strategy extraction.Strategy

	Document       *document.Document
	Outcome        extraction.Outcome
	Normalized     normalize.Result
	Insights       []string
	InsightQuality domain.QualityFragment

	Artifact domain.Artifact
}

// Step 1: LoadDocumentStep sniffs the input and renders its pages. Test
// mode never reads the input.
type LoadDocumentStep struct {
	Loader DocumentLoader
}

func (s *LoadDocumentStep) Execute(ctx context.Context, state *PipelineState) error {
	if state.Strategy == extraction.StrategyTest {
		log := logger.FromContext(ctx)
		log.Debug().Msg("test mode: document not loaded")
		return nil
	}
	doc, err := s.Loader.Load(ctx, state.Data, state.Name)
	if err != nil {
		return fmt.Errorf("load %s: %w", state.Name, err)
	}
	state.Document = doc
	return nil
}

// Step 2: ExtractStep produces the provisional record.
type ExtractStep struct {
	Extractor Extractor
}

func (s *ExtractStep) Execute(ctx context.Context, state *PipelineState) error {
	state.Outcome = s.Extractor.Extract(ctx, state.Strategy, state.Document)
	return nil
}

// Step 3: NormalizeStep validates, masks and reconciles the record.
type NormalizeStep struct {
	Options normalize.Options
}

func (s *NormalizeStep) Execute(ctx context.Context, state *PipelineState) error {
	state.Normalized = normalize.Normalize(state.Outcome.Record, s.Options)
	if n := len(state.Normalized.Warnings); n > 0 {
		log := logger.FromContext(ctx)
		log.Info().Int("warnings", n).Msg("normalization produced warnings")
	}
	return nil
}

// Step 4: InsightStep derives insights. The remote model is only asked when
// it also produced the record.
type InsightStep struct {
	Generator InsightGenerator
}

func (s *InsightStep) Execute(ctx context.Context, state *PipelineState) error {
	state.Insights, state.InsightQuality = s.Generator.Generate(ctx, state.Normalized.Record, state.Outcome.UsedRemote())
	return nil
}

// Step 5: AssembleStep merges the quality fragments into the artifact.
type AssembleStep struct{}

func (s *AssembleStep) Execute(ctx context.Context, state *PipelineState) error {
	insights := state.Insights
	if insights == nil {
		insights = []string{}
	}
	state.Artifact = domain.Artifact{
		Fields:   state.Normalized.Record,
		Insights: insights,
		Quality:  quality.Merge(state.Outcome.Quality, state.Normalized.Quality, state.InsightQuality),
	}
	return nil
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []PipelineStep
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps in the pipeline sequentially.
func (p *Pipeline) Execute(ctx context.Context, state *PipelineState) error {
	for i, step := range p.steps {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("pipeline step %d not started: %w", i+1, err)
		}
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d failed: %w", i+1, err)
		}
	}
	return nil
}
