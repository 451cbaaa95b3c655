package pipeline

import (
	"context"

	"github.com/dvloznov/statement-parser/internal/document"
	"github.com/dvloznov/statement-parser/internal/domain"
	"github.com/dvloznov/statement-parser/internal/extraction"
)

// DocumentLoader turns raw input bytes into a Document.
type DocumentLoader interface {
	Load(ctx context.Context, data []byte, name string) (*document.Document, error)
}

// Extractor runs an extraction strategy over a document. It never fails;
// degraded results are described by the outcome's quality fragment.
type Extractor interface {
	Extract(ctx context.Context, strategy extraction.Strategy, doc *document.Document) extraction.Outcome
}

// InsightGenerator derives insights from a normalized record.
type InsightGenerator interface {
	Generate(ctx context.Context, rec domain.NormalizedRecord, useRemote bool) ([]string, domain.QualityFragment)
}
