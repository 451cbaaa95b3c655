// Package extraction turns a loaded document into a provisional
// ExtractedRecord, preferring the remote model and falling back to local
// OCR and heuristics.
package extraction

import "github.com/dvloznov/statement-parser/internal/config"

// Strategy is an extraction path.
type Strategy int

const (
	StrategyRemote Strategy = iota
	StrategyLocal
	StrategyTest
)

func (s Strategy) String() string {
	switch s {
	case StrategyRemote:
		return "remote"
	case StrategyLocal:
		return "local"
	case StrategyTest:
		return "test"
	default:
		return "unknown"
	}
}

// SelectStrategy picks the initial extraction path for a run.
func SelectStrategy(cfg config.Config) Strategy {
	switch {
	case cfg.TestMode:
		return StrategyTest
	case !cfg.RemoteEnabled():
		return StrategyLocal
	default:
		return StrategyRemote
	}
}

// next is the fallback transition taken when a strategy fails. Only the
// remote path can fail; local and test paths are terminal.
func next(s Strategy) (Strategy, bool) {
	if s == StrategyRemote {
		return StrategyLocal, true
	}
	return s, false
}
