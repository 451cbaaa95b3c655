// Package insights derives short human-readable observations from a
// normalized statement, using the remote model when it is reachable and
// deterministic rules otherwise.
package insights

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dvloznov/statement-parser/internal/domain"
	"github.com/dvloznov/statement-parser/internal/llm"
	"github.com/dvloznov/statement-parser/internal/logger"
)

// MaxInsights caps the number of insights in an artifact.
const MaxInsights = 8

// NoInsights is the single insight reported when no rule fires.
const NoInsights = "No strong insights from parsed data."

var errNoInsights = errors.New("response contained no usable insights")

// RemoteInsightError reports a failed remote insight call. It is always
// recovered by the rule-based generator.
type RemoteInsightError struct {
	Err error
}

func (e *RemoteInsightError) Error() string {
	return fmt.Sprintf("remote insights failed: %v", e.Err)
}

func (e *RemoteInsightError) Unwrap() error { return e.Err }

// Options tunes the rule-based generator.
type Options struct {
	// Tolerance is the reconciliation residual above which totals are
	// reported as not reconciling.
	Tolerance float64
}

// Generator produces insights for a normalized record.
type Generator struct {
	gen  llm.Generator
	opts Options
}

// New creates a Generator. gen may be nil, which limits it to rules.
func New(gen llm.Generator, opts Options) *Generator {
	return &Generator{gen: gen, opts: opts}
}

// Generate returns between one and MaxInsights insights. The remote model
// is asked only when useRemote is set; any remote failure falls back to
// rules and is recorded in the returned fragment.
func (g *Generator) Generate(ctx context.Context, rec domain.NormalizedRecord, useRemote bool) ([]string, domain.QualityFragment) {
	var q domain.QualityFragment
	if useRemote {
		out, err := g.Remote(ctx, rec)
		if err == nil {
			return out, q
		}
		log := logger.FromContext(ctx)
		log.Warn().Err(err).Msg("falling back to rule-based insights")
		q.Note(err.Error())
	}
	return Rules(rec, g.opts.Tolerance), q
}

// Remote asks the model for insights.
func (g *Generator) Remote(ctx context.Context, rec domain.NormalizedRecord) ([]string, error) {
	if g.gen == nil {
		return nil, &RemoteInsightError{Err: errors.New("no remote model configured")}
	}
	prompt, err := Prompt(rec)
	if err != nil {
		return nil, &RemoteInsightError{Err: err}
	}

	start := time.Now()
	text, err := g.gen.Generate(ctx, llm.Request{Prompt: prompt})
	if err != nil {
		return nil, &RemoteInsightError{Err: err}
	}
	out := ParseInsights(text)
	log := logger.FromContext(ctx)
	log.Info().
		Int("insights", len(out)).
		Int64("elapsed_ms", time.Since(start).Milliseconds()).
		Msg("remote insights response")
	if len(out) == 0 {
		return nil, &RemoteInsightError{Err: errNoInsights}
	}
	return out, nil
}

// Prompt builds the insight instruction for rec.
func Prompt(rec domain.NormalizedRecord) (string, error) {
	payload, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("marshal fields: %w", err)
	}
	var b strings.Builder
	b.WriteString("You are a personal finance assistant.\n")
	b.WriteString("Given the parsed bank statement JSON below (FIELDS), return a JSON object ")
	b.WriteString("{\"insights\": [ ... ]} with 3-8 concise bullets about spending, income and balances.\n")
	b.WriteString("Amounts are signed: positive for credits, negative for debits.\n")
	b.WriteString("Return ONLY valid raw JSON.\n\nFIELDS:\n")
	b.Write(payload)
	return b.String(), nil
}

// ParseInsights accepts {"insights": [...]}, a bare JSON array, or plain
// bullet lines. Entries are trimmed, empties dropped, and the list capped.
func ParseInsights(text string) []string {
	if clean := llm.CleanJSON(text); clean != "" {
		var v any
		if err := json.Unmarshal([]byte(clean), &v); err == nil {
			items, _ := insightItems(v)
			return capped(items)
		}
	}

	var out []string
	for _, line := range strings.Split(text, "\n") {
		if s := trimBullet(line); s != "" && !strings.HasPrefix(s, "```") {
			out = append(out, s)
		}
	}
	return capped(out)
}

func insightItems(v any) ([]string, bool) {
	var list []any
	switch val := v.(type) {
	case []any:
		list = val
	case map[string]any:
		found := false
		for k, item := range val {
			if strings.EqualFold(strings.TrimSpace(k), "insights") {
				list, found = item.([]any)
				break
			}
		}
		if !found {
			return nil, false
		}
	default:
		return nil, false
	}

	out := make([]string, 0, len(list))
	for _, item := range list {
		switch it := item.(type) {
		case string:
			if s := trimBullet(it); s != "" {
				out = append(out, s)
			}
		case float64:
			out = append(out, fmt.Sprint(it))
		}
	}
	return out, true
}

func trimBullet(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimLeft(s, "-•*· \t")
	// Numbered lists: "1. ", "2) ".
	if i := strings.IndexAny(s, ".)"); i > 0 && i <= 2 && i+1 < len(s) && s[i+1] == ' ' && isDigits(s[:i]) {
		s = s[i+1:]
	}
	return strings.TrimSpace(s)
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

func capped(items []string) []string {
	if len(items) > MaxInsights {
		return items[:MaxInsights]
	}
	return items
}
