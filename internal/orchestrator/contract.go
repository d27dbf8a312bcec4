package orchestrator

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ContractViolationError means a model reply did not follow the JSON
// structure the step asked for.
type ContractViolationError struct {
	Step string
	Key  string
	Err  error
}

func (e *ContractViolationError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("%s step: model reply missing %q", e.Step, e.Key)
	}
	return fmt.Sprintf("%s step: model reply is not the required JSON: %v", e.Step, e.Err)
}

func (e *ContractViolationError) Unwrap() error { return e.Err }

// stripFences removes a markdown code fence around a model reply, if any.
func stripFences(raw string) string {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json\n")
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```\n")
	raw = strings.Split(raw, "```")[0]
	return strings.TrimSpace(raw)
}

// decodeStringObject parses a model reply as a JSON object and returns its
// string values. Every required key must be present and hold a string.
func decodeStringObject(step, raw string, required []string) (map[string]string, error) {
	var parsed map[string]interface{}
	if err := json.Unmarshal([]byte(stripFences(raw)), &parsed); err != nil {
		return nil, &ContractViolationError{Step: step, Err: err}
	}

	out := make(map[string]string, len(parsed))
	for key, value := range parsed {
		if s, ok := value.(string); ok {
			out[key] = s
		}
	}
	for _, key := range required {
		if _, ok := out[key]; !ok {
			return nil, &ContractViolationError{Step: step, Key: key}
		}
	}
	return out, nil
}
