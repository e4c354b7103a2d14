package classifier

import (
	"encoding/json"
	"fmt"
	"strings"

	"medjournal/internal/models"
)

const (
	maxSymptoms       = 8
	defaultMood       = "unknown"
	defaultSummary    = "No summary"
	defaultConfidence = 0.8
)

// rawAnalysis tolerates whatever shape the model produced; every field is
// coerced and defaulted afterwards instead of trusting the upstream schema.
type rawAnalysis struct {
	Symptoms   []interface{} `json:"symptoms"`
	Mood       interface{}   `json:"mood"`
	Severity   interface{}   `json:"severity"`
	Summary    interface{}   `json:"summary"`
	Confidence interface{}   `json:"confidence"`
}

// decodeAnalysis extracts a JSON object from the model output. It first
// strips markdown code fences, then tries a direct parse, then falls back to
// the substring between the first '{' and the last '}'.
func decodeAnalysis(output string) (*rawAnalysis, error) {
	clean := strings.TrimSpace(output)
	clean = strings.TrimPrefix(clean, "```json")
	clean = strings.TrimPrefix(clean, "```")
	clean = strings.TrimSuffix(clean, "```")
	clean = strings.TrimSpace(clean)

	var parsed rawAnalysis
	if err := json.Unmarshal([]byte(clean), &parsed); err == nil {
		return &parsed, nil
	}

	start := strings.Index(clean, "{")
	end := strings.LastIndex(clean, "}")
	if start == -1 || end == -1 || end <= start {
		return nil, fmt.Errorf("%w: no JSON object found", ErrUnparsable)
	}

	if err := json.Unmarshal([]byte(clean[start:end+1]), &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnparsable, err)
	}
	return &parsed, nil
}

// normalizeAnalysis validates and defaults every field of the parsed output.
func normalizeAnalysis(parsed *rawAnalysis) *models.AnalysisResult {
	raw := parsed.Symptoms
	if len(raw) > maxSymptoms {
		raw = raw[:maxSymptoms]
	}
	symptoms := make([]string, 0, len(raw))
	for _, item := range raw {
		s := strings.TrimSpace(asString(item))
		if s == "" {
			continue
		}
		symptoms = append(symptoms, s)
	}

	mood := strings.TrimSpace(asString(parsed.Mood))
	if mood == "" {
		mood = defaultMood
	}

	severity := strings.TrimSpace(asString(parsed.Severity))
	if !models.ValidSeverity(severity) {
		severity = models.SeverityMedium
	}

	summary := strings.TrimSpace(asString(parsed.Summary))
	if summary == "" {
		summary = defaultSummary
	}

	confidence, ok := asFloat(parsed.Confidence)
	if !ok {
		confidence = defaultConfidence
	}
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	return &models.AnalysisResult{
		Symptoms:   symptoms,
		Mood:       mood,
		Severity:   severity,
		Summary:    summary,
		Confidence: confidence,
	}
}

func asString(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%f", val), "0"), ".")
	case bool:
		return fmt.Sprintf("%t", val)
	default:
		return ""
	}
}

func asFloat(v interface{}) (float64, bool) {
	f, ok := v.(float64)
	return f, ok
}
