package extraction

import "fmt"

// Stages at which a remote extraction can fail.
const (
	StageCall  = "call"
	StageParse = "parse"
	StageEmpty = "empty"
)

// RemoteExtractionError reports a failed remote extraction. It is always
// recovered by switching to the local path.
type RemoteExtractionError struct {
	Stage string
	Err   error
}

func (e *RemoteExtractionError) Error() string {
	return fmt.Sprintf("remote extraction failed at %s: %v", e.Stage, e.Err)
}

func (e *RemoteExtractionError) Unwrap() error { return e.Err }
