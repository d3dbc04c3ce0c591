package domain

import (
	"sort"
	"strings"
	"time"
)

type Sensation string

const (
	SensationHot  Sensation = "hot"
	SensationWarm Sensation = "warm"
	SensationCool Sensation = "cool"
	SensationCold Sensation = "cold"
	SensationNumb Sensation = "numb"
)

// Sensations lists the vocabulary in display order.
var Sensations = []Sensation{SensationHot, SensationWarm, SensationCool, SensationCold, SensationNumb}

func ParseSensation(s string) (Sensation, bool) {
	v := Sensation(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Sensations {
		if v == known {
			return v, true
		}
	}
	return "", false
}

type SensationDetail struct {
	Label       string `json:"label"`
	Description string `json:"description"`
}

var SensationInfo = map[Sensation]SensationDetail{
	SensationHot:  {Label: "Hot", Description: "Strong, intense activation"},
	SensationWarm: {Label: "Warm", Description: "Mild activation or positive energy"},
	SensationCool: {Label: "Cool", Description: "Slight decrease in energy or detachment"},
	SensationCold: {Label: "Cold", Description: "Marked withdrawal or strong negative emotion"},
	SensationNumb: {Label: "Numb", Description: "No sensation, feeling disconnected"},
}

// SensationMap maps a body region to its reported sensation. An empty value
// means the region is unmarked. Callers own the map; analysis never writes to it.
type SensationMap map[string]Sensation

// Marked returns the regions carrying a sensation, sorted by region name.
func (m SensationMap) Marked() []string {
	regions := make([]string, 0, len(m))
	for region, s := range m {
		if s != "" {
			regions = append(regions, region)
		}
	}
	sort.Strings(regions)
	return regions
}

func (m SensationMap) Count(s Sensation) int {
	n := 0
	for _, v := range m {
		if v == s {
			n++
		}
	}
	return n
}

// MergeViews combines front and back markings into one map. A region marked
// on the back view wins over the same region on the front view.
func MergeViews(front, back SensationMap) SensationMap {
	out := make(SensationMap, len(front)+len(back))
	for region, s := range front {
		if s != "" {
			out[region] = s
		}
	}
	for region, s := range back {
		if s != "" {
			out[region] = s
		}
	}
	return out
}

type View string

const (
	ViewFront View = "front"
	ViewBack  View = "back"
)

func (v View) Valid() bool {
	return v == ViewFront || v == ViewBack
}

// Provenance tags.
const (
	SourceGemini = "gemini_api"
	SourceOpenAI = "openai_api"
	SourceClaude = "claude_api"
	SourceLocal  = "local_pattern_analysis"
	SourceError  = "error"
)

func KnownSource(source string) bool {
	switch source {
	case SourceGemini, SourceOpenAI, SourceClaude, SourceLocal, SourceError:
		return true
	default:
		return false
	}
}

type Hypothesis struct {
	Emotion     string   `json:"emotion"`
	Confidence  float64  `json:"confidence"`
	Description string   `json:"description"`
	Patterns    []string `json:"patterns"`
	Source      string   `json:"source"`
}

// Analysis is the outcome of one chain run: the provider that answered and
// its hypotheses, strongest first.
type Analysis struct {
	Source  string       `json:"source"`
	Results []Hypothesis `json:"results"`
}

func (a Analysis) Primary() Hypothesis {
	if len(a.Results) == 0 {
		return Hypothesis{}
	}
	return a.Results[0]
}

// Storage records

type Session struct {
	ID         string    `json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	MappingIDs []string  `json:"body_mappings"`
}

type BodyMapping struct {
	ID           string       `json:"id"`
	SessionID    string       `json:"session_id"`
	BodyMarkings SensationMap `json:"body_markings"`
	View         View         `json:"view"`
	CreatedAt    time.Time    `json:"created_at"`
}

type EmotionRecord struct {
	MappingID string    `json:"mapping_id"`
	Result    Analysis  `json:"result"`
	CreatedAt time.Time `json:"created_at"`
}

type StorageStats struct {
	TotalSessions       int    `json:"total_sessions"`
	TotalMappings       int    `json:"total_mappings"`
	TotalEmotionResults int    `json:"total_emotion_results"`
	Storage             string `json:"storage"`
}

// MQTT payloads

type MarkingsReport struct {
	RequestID    string       `json:"request_id,omitempty"`
	SessionID    string       `json:"session_id,omitempty"`
	View         View         `json:"view"`
	BodyMarkings SensationMap `json:"body_markings"`
}

type EmotionReport struct {
	RequestID  string   `json:"request_id"`
	TerminalID string   `json:"terminal_id"`
	MappingID  string   `json:"mapping_id,omitempty"`
	OK         bool     `json:"ok"`
	Analysis   Analysis `json:"analysis"`
	Error      string   `json:"error,omitempty"`
}

// HTTP payloads

type AnalyzeRequest struct {
	BodyMarkings SensationMap `json:"body_markings"`
	View         View         `json:"view"`
	MappingID    string       `json:"mapping_id,omitempty"`
}

type AnalyzeResponse struct {
	Analysis
	Emotion   Hypothesis `json:"emotion"`
	MappingID string     `json:"mapping_id,omitempty"`
}
