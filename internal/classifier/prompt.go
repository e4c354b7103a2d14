package classifier

import "fmt"

// SystemInstruction tells the model what role it plays and what shape the
// answer must take.
const SystemInstruction = `You are a medical note analyzer. You read a patient's free-text health journal entry and extract structured insights. You always answer with strict JSON and nothing else.`

// BuildPrompt builds the analysis prompt for a single journal entry.
func BuildPrompt(text string) string {
	return fmt.Sprintf(`Read the patient's free-text note below and extract structured insights.

Return ONLY strict JSON (no markdown, no code fences) with this shape:
{
  "symptoms": string[] (3-8 concise symptoms),
  "mood": string (short phrase),
  "severity": "low" | "medium" | "high",
  "summary": string (1-2 sentences plain English),
  "confidence": number (0..1 with 2 decimals)
}

Important:
- Infer symptoms from the text; do not invent unrelated facts.
- Choose severity based on urgency and intensity indicated by the text.
- Keep summary factual and concise.
- confidence is your overall certainty (0..1).

Patient note:
"""
%s
"""`, text)
}
