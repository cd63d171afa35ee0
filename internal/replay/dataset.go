package replay

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/danielpatrickdp/cotherapist/internal/gate"
	"github.com/danielpatrickdp/cotherapist/internal/orchestrator"
)

// ErrEmptyDataset is returned when a dataset file holds no examples.
var ErrEmptyDataset = errors.New("dataset has no examples")

// #region interaction
// Interaction is one (query, response) pair to re-score offline.
type Interaction struct {
	TurnID   string              `json:"turn_id"`
	Query    string              `json:"query"`
	Response string              `json:"response"`
	Signals  *gate.SafetySignals `json:"signals,omitempty"`

	// Recorded is the overall score stored when the turn ran, if any.
	Recorded *float64 `json:"recorded_overall,omitempty"`
}

// FromTurns converts recorded turns. Blocked turns are kept so the crisis
// reply is scored against its signals.
func FromTurns(turns []orchestrator.Turn) []Interaction {
	out := make([]Interaction, 0, len(turns))
	for _, t := range turns {
		signals := t.Signals
		in := Interaction{
			TurnID:   t.ID,
			Query:    t.UserText,
			Response: t.ResponseText,
			Signals:  &signals,
		}
		if t.Evaluation != nil {
			overall := t.Evaluation.Overall
			in.Recorded = &overall
		}
		out = append(out, in)
	}
	return out
}

// FromExamples converts dataset rows with a reference answer. Rows without
// one are skipped.
func FromExamples(examples []orchestrator.Example) []Interaction {
	out := make([]Interaction, 0, len(examples))
	for i, ex := range examples {
		if strings.TrimSpace(ex.Assistant) == "" {
			continue
		}
		out = append(out, Interaction{
			TurnID:   fmt.Sprintf("example-%d", i),
			Query:    ex.User,
			Response: ex.Assistant,
		})
	}
	return out
}

// #endregion interaction

// #region loader
// LoadDataset reads examples from a JSON array or from JSON lines.
func LoadDataset(path string) ([]orchestrator.Example, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dataset %s: %w", path, err)
	}
	examples, err := ParseDataset(data)
	if err != nil {
		return nil, fmt.Errorf("parse dataset %s: %w", path, err)
	}
	return examples, nil
}

// ParseDataset decodes a JSON array or JSON lines. Blank lines are ignored
// and every example needs a user utterance.
func ParseDataset(data []byte) ([]orchestrator.Example, error) {
	trimmed := bytes.TrimSpace(data)
	var examples []orchestrator.Example
	if bytes.HasPrefix(trimmed, []byte("[")) {
		if err := json.Unmarshal(trimmed, &examples); err != nil {
			return nil, err
		}
	} else {
		sc := bufio.NewScanner(bytes.NewReader(trimmed))
		sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
		line := 0
		for sc.Scan() {
			line++
			text := bytes.TrimSpace(sc.Bytes())
			if len(text) == 0 {
				continue
			}
			var ex orchestrator.Example
			if err := json.Unmarshal(text, &ex); err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			examples = append(examples, ex)
		}
		if err := sc.Err(); err != nil {
			return nil, err
		}
	}
	if len(examples) == 0 {
		return nil, ErrEmptyDataset
	}
	for i, ex := range examples {
		if strings.TrimSpace(ex.User) == "" {
			return nil, fmt.Errorf("example %d: missing user utterance", i)
		}
	}
	return examples, nil
}

// #endregion loader
