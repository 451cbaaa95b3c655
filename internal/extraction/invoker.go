package extraction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dvloznov/statement-parser/internal/document"
	"github.com/dvloznov/statement-parser/internal/domain"
	"github.com/dvloznov/statement-parser/internal/llm"
	"github.com/dvloznov/statement-parser/internal/logger"
	"github.com/dvloznov/statement-parser/internal/ocr"
)

const previewLen = 200

// Outcome is the result of an extraction run.
type Outcome struct {
	Record domain.ExtractedRecord
	// Strategy is the path that produced Record.
	Strategy Strategy
	Quality  domain.QualityFragment
}

// UsedRemote reports whether Record came from the remote model.
func (o Outcome) UsedRemote() bool { return o.Strategy == StrategyRemote }

// Invoker runs the extraction strategies.
type Invoker struct {
	generator llm.Generator
	engine    *ocr.Engine
}

// NewInvoker creates an invoker. A nil generator makes every remote attempt
// fail over to the local path; a nil engine leaves the local path with no
// text to work on.
func NewInvoker(generator llm.Generator, engine *ocr.Engine) *Invoker {
	return &Invoker{generator: generator, engine: engine}
}

// Extract runs the given strategy, falling back along the strategy chain.
// It never fails: the local path always yields a (possibly empty) record.
func (inv *Invoker) Extract(ctx context.Context, strategy Strategy, doc *document.Document) Outcome {
	log := logger.FromContext(ctx)
	var q domain.QualityFragment

	for {
		log.Info().Str("strategy", strategy.String()).Msg("extraction started")
		switch strategy {
		case StrategyTest:
			return inv.fixture(q)
		case StrategyRemote:
			rec, err := inv.extractRemote(ctx, doc)
			if err == nil {
				return inv.remoteOutcome(rec, doc, q)
			}
			log.Warn().Err(err).Msg("remote extraction failed, falling back")
			q.RemoteError = err.Error()
			var rerr *RemoteExtractionError
			if errors.As(err, &rerr) && rerr.Stage == StageParse {
				q.Note(fmt.Sprintf("remote response could not be parsed: %v", rerr.Err))
			} else {
				q.Note(fmt.Sprintf("remote extraction unavailable: %v", err))
			}
		default:
			return inv.extractLocal(ctx, doc, q)
		}

		fallback, ok := next(strategy)
		if !ok {
			return inv.extractLocal(ctx, doc, q)
		}
		strategy = fallback
	}
}

func (inv *Invoker) fixture(q domain.QualityFragment) Outcome {
	used := false
	q.UsedRemoteModel = &used
	q.ExtractionPath = domain.PathTest
	q.Note("test mode: fixture data, no document was read")
	return Outcome{Record: FixtureRecord(), Strategy: StrategyTest, Quality: q}
}

func (inv *Invoker) extractRemote(ctx context.Context, doc *document.Document) (domain.ExtractedRecord, error) {
	if inv.generator == nil {
		return domain.ExtractedRecord{}, &RemoteExtractionError{Stage: StageCall, Err: errors.New("no remote model configured")}
	}
	if doc == nil || len(doc.Raw) == 0 {
		return domain.ExtractedRecord{}, &RemoteExtractionError{Stage: StageCall, Err: errors.New("no document content to send")}
	}

	start := time.Now()
	text, err := inv.generator.Generate(ctx, llm.Request{
		Prompt:      ExtractionPrompt(),
		Attachments: []llm.Attachment{{MIMEType: doc.MIMEType, Data: doc.Raw}},
	})
	if err != nil {
		return domain.ExtractedRecord{}, &RemoteExtractionError{Stage: StageCall, Err: err}
	}

	res := ParseResponse(text)
	log := logger.FromContext(ctx)
	log.Info().
		Str("prompt_version", ExtractionPromptVersion).
		Str("parse_status", res.Status.String()).
		Int("transactions", len(res.Record.Transactions)).
		Int64("elapsed_ms", time.Since(start).Milliseconds()).
		Msg("remote extraction response")

	switch res.Status {
	case ParseOK:
		return res.Record, nil
	case ParseEmpty:
		return domain.ExtractedRecord{}, &RemoteExtractionError{Stage: StageEmpty, Err: res.Err}
	default:
		return domain.ExtractedRecord{}, &RemoteExtractionError{
			Stage: StageParse,
			Err:   fmt.Errorf("%w (response: %q)", res.Err, preview(text, previewLen)),
		}
	}
}

func (inv *Invoker) remoteOutcome(rec domain.ExtractedRecord, doc *document.Document, q domain.QualityFragment) Outcome {
	used := true
	q.UsedRemoteModel = &used
	q.ExtractionPath = domain.PathRemote
	for _, p := range doc.Pages {
		if p.Rotation != 0 {
			q.RotationWarnings = append(q.RotationWarnings, p.Index)
		}
	}
	return Outcome{Record: rec, Strategy: StrategyRemote, Quality: q}
}

func (inv *Invoker) extractLocal(ctx context.Context, doc *document.Document, q domain.QualityFragment) Outcome {
	used := false
	q.UsedRemoteModel = &used
	q.ExtractionPath = domain.PathLocal
	q.Note("local OCR and heuristic parsing used")

	var pages []document.PageImage
	if doc != nil {
		pages = doc.Pages
	}
	var res ocr.Result
	if inv.engine != nil {
		res = inv.engine.RecognizePages(ctx, pages)
	} else {
		q.Note("no local recognizer available")
	}

	conf := res.Confidence
	q.OCRConfidence = &conf
	q.RotationWarnings = append(q.RotationWarnings, res.RotationWarnings...)
	for _, n := range res.Notes {
		q.Note(n)
	}

	rec := HeuristicExtract(res.Text())
	if len(rec.Transactions) == 0 {
		q.Note("no transactions recognized in local text")
	}
	log := logger.FromContext(ctx)
	log.Info().
		Int("transactions", len(rec.Transactions)).
		Float64("ocr_confidence", conf).
		Msg("local extraction finished")
	return Outcome{Record: rec, Strategy: StrategyLocal, Quality: q}
}
