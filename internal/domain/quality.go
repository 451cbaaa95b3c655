package domain

// Extraction paths reported in QualityMetadata.ExtractionPath.
const (
	PathRemote = "remote"
	PathLocal  = "local"
	PathTest   = "test"
)

// QualityMetadata describes how trustworthy an artifact is.
type QualityMetadata struct {
	MissingSections        []string `json:"missing_sections"`
	DuplicateEntries       bool     `json:"duplicate_entries"`
	OCRConfidence          *float64 `json:"ocr_confidence"`
	RotationWarnings       []int    `json:"rotation_warnings"`
	UsedRemoteModel        bool     `json:"used_remote_model"`
	ExtractionPath         string   `json:"extraction_path,omitempty"`
	RemoteError            string   `json:"remote_error,omitempty"`
	ReconciliationResidual *float64 `json:"reconciliation_residual"`
	Notes                  []string `json:"notes"`
}

// QualityFragment is the partial quality report of one pipeline stage.
// Nil pointers and empty strings mean "not reported by this stage".
type QualityFragment struct {
	MissingSections        []string
	DuplicateEntries       bool
	OCRConfidence          *float64
	RotationWarnings       []int
	UsedRemoteModel        *bool
	ExtractionPath         string
	RemoteError            string
	ReconciliationResidual *float64
	Notes                  []string
}

// Note appends a free-form note.
func (f *QualityFragment) Note(note string) {
	f.Notes = append(f.Notes, note)
}

// Artifact is the final output of a run.
type Artifact struct {
	Fields   NormalizedRecord `json:"fields"`
	Insights []string         `json:"insights"`
	Quality  QualityMetadata  `json:"quality"`
}
