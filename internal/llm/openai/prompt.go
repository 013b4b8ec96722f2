package openai

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Message represents an OpenAI chat message.
type Message struct {
	Role    string
	Content string
}

const narrativeSystemPrompt = `You are a medical advertising compliance reviewer.
Assess the advertisement text below against medical advertising regulations.
Discuss exaggerated claims, treatment-effect guarantees, superlative or
comparative claims, patient inducement, testimonials and before/after imagery.
If the text is not an advertisement, say so explicitly. Answer in plain prose.`

const verdictSystemPrompt = `You convert a compliance review into a JSON verdict.
Respond with a single JSON object and nothing else. The object must match the
provided JSON schema exactly: no extra fields, all required fields present.
risk_contribution is the additional risk (0-100) the qualitative findings add
on top of a mechanical keyword scan.`

// BuildNarrativePrompt builds the messages for the narrative stage. Retrieved
// regulation passages, when present, are prepended as reference context.
func BuildNarrativePrompt(text string, passages []string) []Message {
	var user strings.Builder
	if len(passages) > 0 {
		user.WriteString("Reference regulation passages:\n")
		for i, p := range passages {
			fmt.Fprintf(&user, "[%d] %s\n", i+1, strings.TrimSpace(p))
		}
		user.WriteString("\n")
	}
	user.WriteString("Advertisement text:\n")
	user.WriteString(text)

	return []Message{
		{Role: "system", Content: narrativeSystemPrompt},
		{Role: "user", Content: user.String()},
	}
}

// BuildVerdictPrompt builds the messages for the verdict extraction stage.
func BuildVerdictPrompt(text, narrative string, schema map[string]any) []Message {
	schemaJSON, err := json.Marshal(schema)
	if err != nil {
		schemaJSON = []byte("{}")
	}

	var user strings.Builder
	fmt.Fprintf(&user, "JSON schema:\n%s\n\n", schemaJSON)
	fmt.Fprintf(&user, "Compliance review:\n%s\n\n", strings.TrimSpace(narrative))
	fmt.Fprintf(&user, "Advertisement text:\n%s", text)

	return []Message{
		{Role: "system", Content: verdictSystemPrompt},
		{Role: "user", Content: user.String()},
	}
}

// buildFixPrompt asks the model to repair malformed JSON from a previous turn.
func buildFixPrompt(schema map[string]any, raw []byte) []Message {
	schemaJSON, err := json.Marshal(schema)
	if err != nil {
		schemaJSON = []byte("{}")
	}

	var user strings.Builder
	user.WriteString("The following output was supposed to be a single JSON object matching this schema:\n")
	user.Write(schemaJSON)
	user.WriteString("\n\nOutput to fix:\n")
	user.Write(raw)
	user.WriteString("\n\nReturn only the corrected JSON object.")

	return []Message{
		{Role: "system", Content: verdictSystemPrompt},
		{Role: "user", Content: user.String()},
	}
}
