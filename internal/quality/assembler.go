// Package quality merges the partial quality reports produced by each
// pipeline stage into the artifact's quality metadata.
package quality

import (
	"github.com/dvloznov/statement-parser/internal/domain"
)

// Merge combines fragments in pipeline order. Lists are unioned keeping
// first-seen order, booleans are ORed, and scalar fields take the last value
// any fragment reported. Slices in the result are never nil.
func Merge(fragments ...domain.QualityFragment) domain.QualityMetadata {
	q := domain.QualityMetadata{
		MissingSections:  []string{},
		RotationWarnings: []int{},
		Notes:            []string{},
	}

	seenSections := map[string]bool{}
	seenPages := map[int]bool{}
	seenNotes := map[string]bool{}

	for _, f := range fragments {
		for _, s := range f.MissingSections {
			if !seenSections[s] {
				seenSections[s] = true
				q.MissingSections = append(q.MissingSections, s)
			}
		}
		for _, p := range f.RotationWarnings {
			if !seenPages[p] {
				seenPages[p] = true
				q.RotationWarnings = append(q.RotationWarnings, p)
			}
		}
		for _, n := range f.Notes {
			if n != "" && !seenNotes[n] {
				seenNotes[n] = true
				q.Notes = append(q.Notes, n)
			}
		}

		q.DuplicateEntries = q.DuplicateEntries || f.DuplicateEntries

		if f.OCRConfidence != nil {
			v := *f.OCRConfidence
			q.OCRConfidence = &v
		}
		if f.ReconciliationResidual != nil {
			v := *f.ReconciliationResidual
			q.ReconciliationResidual = &v
		}
		if f.UsedRemoteModel != nil {
			q.UsedRemoteModel = *f.UsedRemoteModel
		}
		if f.ExtractionPath != "" {
			q.ExtractionPath = f.ExtractionPath
		}
		if f.RemoteError != "" {
			q.RemoteError = f.RemoteError
		}
	}

	return q
}
