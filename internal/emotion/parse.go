package emotion

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/kaptinlin/jsonrepair"

	"bodyfeel/internal/domain"
)

var requiredFields = []string{"emotion", "confidence", "description", "patterns", "source"}

// Checked in order; the first hit names the emotion.
var emotionKeywords = []string{
	"anger", "happiness", "sadness", "fear", "anxiety",
	"love", "disgust", "surprise", "shame", "pride",
	"joy", "excitement", "calm", "stress", "relaxation",
	"contentment", "frustration", "worry", "peace", "tension",
}

const (
	genericEmotion     = "Mixed_Emotions"
	keywordConfidence  = 0.8
	descriptionMaxRune = 200
)

// DecodeHypothesis is the strict stage: it reads the outermost {...} of a
// reply as the structured record. Almost-JSON is repaired once before giving up.
func DecodeHypothesis(text string) (domain.Hypothesis, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end <= start {
		return domain.Hypothesis{}, fmt.Errorf("no json object in reply")
	}
	raw := text[start : end+1]

	h, err := decodeRecord(raw)
	if err == nil {
		return h, nil
	}
	repaired, repairErr := jsonrepair.JSONRepair(raw)
	if repairErr != nil {
		return domain.Hypothesis{}, err
	}
	return decodeRecord(repaired)
}

func decodeRecord(raw string) (domain.Hypothesis, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return domain.Hypothesis{}, fmt.Errorf("decode reply: %w", err)
	}
	for _, f := range requiredFields {
		if _, ok := fields[f]; !ok {
			return domain.Hypothesis{}, fmt.Errorf("reply missing field %q", f)
		}
	}

	var rec struct {
		Emotion     string   `json:"emotion"`
		Confidence  float64  `json:"confidence"`
		Description string   `json:"description"`
		Patterns    []string `json:"patterns"`
	}
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return domain.Hypothesis{}, fmt.Errorf("decode reply: %w", err)
	}
	rec.Emotion = strings.TrimSpace(rec.Emotion)
	if rec.Emotion == "" {
		return domain.Hypothesis{}, fmt.Errorf("reply has empty emotion")
	}
	if math.IsNaN(rec.Confidence) || math.IsInf(rec.Confidence, 0) {
		return domain.Hypothesis{}, fmt.Errorf("reply confidence is not finite")
	}
	if rec.Patterns == nil {
		rec.Patterns = []string{}
	}
	return domain.Hypothesis{
		Emotion:     rec.Emotion,
		Confidence:  clamp(rec.Confidence, 0, 1),
		Description: rec.Description,
		Patterns:    rec.Patterns,
	}, nil
}

// ScanKeywords is the lenient stage: it names the emotion after the first
// known keyword in the reply.
func ScanKeywords(text, label, pattern string) domain.Hypothesis {
	lower := strings.ToLower(text)
	emotion := genericEmotion
	for _, kw := range emotionKeywords {
		if strings.Contains(lower, kw) {
			emotion = strings.ToUpper(kw[:1]) + kw[1:]
			break
		}
	}
	return domain.Hypothesis{
		Emotion:     emotion,
		Confidence:  keywordConfidence,
		Description: fmt.Sprintf("%s: %s...", label, truncateRunes(text, descriptionMaxRune)),
		Patterns:    []string{pattern},
	}
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
