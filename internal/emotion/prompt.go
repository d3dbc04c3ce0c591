package emotion

import (
	"fmt"
	"strings"

	"bodyfeel/internal/domain"
)

const SystemPrompt = "You are an expert in somatic psychology and emotion analysis."

const promptTemplate = `Analyze the emotional state based on these body sensations from the %s view:
%s

Please provide:
1. Primary emotion(s) detected
2. Confidence level (0.0-1.0)
3. Brief explanation
4. Any patterns you notice

Format your response as JSON with these fields:
- emotion: string
- confidence: float
- description: string
- patterns: array of strings
- source: %q`

// FormatSensations renders marked regions as "region: sensation" pairs in
// region order so the same markings always produce the same prompt.
func FormatSensations(markings domain.SensationMap) string {
	regions := markings.Marked()
	parts := make([]string, 0, len(regions))
	for _, r := range regions {
		parts = append(parts, fmt.Sprintf("%s: %s", r, markings[r]))
	}
	return strings.Join(parts, ", ")
}

func BuildPrompt(markings domain.SensationMap, view domain.View, source string) string {
	return fmt.Sprintf(promptTemplate, view, FormatSensations(markings), source)
}
