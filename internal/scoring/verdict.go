package scoring

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Violation is a single qualitative finding from the verdict stage.
type Violation struct {
	Category    string `json:"category"`
	Phrase      string `json:"phrase"`
	Explanation string `json:"explanation"`
	Severity    string `json:"severity"`
	Suggestion  string `json:"suggestion,omitempty"`
}

// Verdict is the strict stage-three payload extracted from the model.
type Verdict struct {
	IsAdvertisement  bool        `json:"is_advertisement"`
	RiskContribution int         `json:"risk_contribution"`
	Violations       []Violation `json:"violations"`
	Summary          string      `json:"summary"`
}

// BuildVerdictJSONSchema returns the verdict JSON-Schema (draft 2020-12
// subset) as a generic map. It is embedded in the extraction prompt and used
// locally to validate the model output.
func BuildVerdictJSONSchema() map[string]any {
	violation := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"category":    map[string]any{"type": "string", "minLength": 1},
			"phrase":      map[string]any{"type": "string"},
			"explanation": map[string]any{"type": "string"},
			"severity":    map[string]any{"type": "string", "enum": []string{"high", "medium", "low"}},
			"suggestion":  map[string]any{"type": "string"},
		},
		"required": []string{"category", "phrase", "explanation", "severity"},
	}

	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"is_advertisement":  map[string]any{"type": "boolean"},
			"risk_contribution": map[string]any{"type": "integer", "minimum": 0, "maximum": 100},
			"violations":        map[string]any{"type": "array", "items": violation},
			"summary":           map[string]any{"type": "string"},
		},
		"required": []string{"is_advertisement", "risk_contribution", "violations", "summary"},
	}
}

var verdictSchema = mustCompileVerdictSchema()

func mustCompileVerdictSchema() *jsonschema.Schema {
	b, err := json.Marshal(BuildVerdictJSONSchema())
	if err != nil {
		panic(fmt.Sprintf("marshal verdict schema: %v", err))
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("verdict.json", bytes.NewReader(b)); err != nil {
		panic(fmt.Sprintf("add verdict schema: %v", err))
	}
	schema, err := compiler.Compile("verdict.json")
	if err != nil {
		panic(fmt.Sprintf("compile verdict schema: %v", err))
	}
	return schema
}

// ParseVerdict extracts and validates a verdict payload. ok is false whenever
// the payload is not valid JSON or does not satisfy the schema; callers then
// fall back to the keyword-only score.
func ParseVerdict(raw []byte) (Verdict, bool) {
	payload := extractJSONBlock(raw)
	if len(payload) == 0 {
		return Verdict{}, false
	}

	var generic any
	if err := json.Unmarshal(payload, &generic); err != nil {
		return Verdict{}, false
	}
	if err := verdictSchema.Validate(generic); err != nil {
		return Verdict{}, false
	}

	var verdict Verdict
	if err := json.Unmarshal(payload, &verdict); err != nil {
		return Verdict{}, false
	}
	if verdict.Violations == nil {
		verdict.Violations = []Violation{}
	}
	verdict.Summary = strings.TrimSpace(verdict.Summary)
	return verdict, true
}

// extractJSONBlock unwraps a fenced ```json block when the model returned
// markdown, otherwise slices from the first '{' to the last '}'.
func extractJSONBlock(raw []byte) []byte {
	s := strings.TrimSpace(string(raw))
	if s == "" {
		return nil
	}

	if idx := strings.Index(s, "```json"); idx >= 0 {
		rest := s[idx+len("```json"):]
		if end := strings.Index(rest, "```"); end >= 0 {
			return []byte(strings.TrimSpace(rest[:end]))
		}
	}
	if strings.HasPrefix(s, "```") {
		trimmed := strings.TrimPrefix(s, "```")
		if end := strings.Index(trimmed, "```"); end >= 0 {
			return []byte(strings.TrimSpace(trimmed[:end]))
		}
	}

	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end < start {
		return nil
	}
	return []byte(s[start : end+1])
}
