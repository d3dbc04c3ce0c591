package emotion

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"bodyfeel/internal/domain"
)

//go:embed knowledge.yaml
var knowledgeYAML []byte

type Cue struct {
	Sensation domain.Sensation `yaml:"sensation" json:"sensation"`
	Regions   []string         `yaml:"regions" json:"regions"`
}

// Pattern is the expected sensation layout of one emotion.
type Pattern struct {
	Emotion     string   `yaml:"emotion" json:"emotion"`
	Cues        []Cue    `yaml:"cues" json:"cues"`
	Indicators  []string `yaml:"indicators" json:"indicators"`
	Description string   `yaml:"description" json:"description"`
}

// KnowledgeBase is immutable once built; it is safe for concurrent use.
type KnowledgeBase struct {
	patterns []Pattern
}

var defaultKnowledgeBase = mustParseKnowledgeBase(knowledgeYAML)

func DefaultKnowledgeBase() *KnowledgeBase {
	return defaultKnowledgeBase
}

func mustParseKnowledgeBase(data []byte) *KnowledgeBase {
	kb, err := ParseKnowledgeBase(data)
	if err != nil {
		panic(fmt.Sprintf("emotion: embedded knowledge base: %v", err))
	}
	return kb
}

func ParseKnowledgeBase(data []byte) (*KnowledgeBase, error) {
	var doc struct {
		Patterns []Pattern `yaml:"patterns"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode knowledge base: %w", err)
	}
	return NewKnowledgeBase(doc.Patterns)
}

func NewKnowledgeBase(patterns []Pattern) (*KnowledgeBase, error) {
	seen := make(map[string]struct{}, len(patterns))
	out := make([]Pattern, 0, len(patterns))
	for i, p := range patterns {
		name := strings.TrimSpace(p.Emotion)
		if name == "" {
			return nil, fmt.Errorf("pattern %d: emotion is required", i)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("pattern %q: duplicate emotion", name)
		}
		seen[name] = struct{}{}
		if len(p.Cues) == 0 {
			return nil, fmt.Errorf("pattern %q: at least one cue is required", name)
		}
		for _, c := range p.Cues {
			if _, ok := domain.ParseSensation(string(c.Sensation)); !ok {
				return nil, fmt.Errorf("pattern %q: unknown sensation %q", name, c.Sensation)
			}
			if len(c.Regions) == 0 {
				return nil, fmt.Errorf("pattern %q: cue %q has no regions", name, c.Sensation)
			}
		}
		p.Emotion = name
		out = append(out, clonePattern(p))
	}
	return &KnowledgeBase{patterns: out}, nil
}

// Patterns returns a copy of the patterns in scoring order.
func (kb *KnowledgeBase) Patterns() []Pattern {
	out := make([]Pattern, 0, len(kb.patterns))
	for _, p := range kb.patterns {
		out = append(out, clonePattern(p))
	}
	return out
}

func (kb *KnowledgeBase) Len() int {
	return len(kb.patterns)
}

func clonePattern(p Pattern) Pattern {
	cues := make([]Cue, 0, len(p.Cues))
	for _, c := range p.Cues {
		cues = append(cues, Cue{Sensation: c.Sensation, Regions: append([]string(nil), c.Regions...)})
	}
	return Pattern{
		Emotion:     p.Emotion,
		Cues:        cues,
		Indicators:  append([]string(nil), p.Indicators...),
		Description: p.Description,
	}
}
