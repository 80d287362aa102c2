package narrative

import (
	"encoding/json"
	"fmt"
	"strings"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	hjson "github.com/hjson/hjson-go/v4"
)

// StripCodeFences removes a single markdown code fence wrapping the response,
// with or without a language tag. Responses without fences pass through.
func StripCodeFences(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```")
	// Drop the language tag on the opening fence line.
	if i := strings.Index(trimmed, "\n"); i >= 0 {
		trimmed = trimmed[i+1:]
	} else {
		return strings.TrimSpace(strings.TrimSuffix(trimmed, "```"))
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

// parseResponse extracts the model's JSON into schema. Strategies in order:
// strict JSON, mechanical repair, then Hjson as the most lenient reading.
// A response that fails all three is a hard failure, never an empty result.
func parseResponse(raw string, schema any) error {
	input := StripCodeFences(raw)
	if input == "" {
		return fmt.Errorf("empty model response")
	}

	if err := unmarshalNumbers(input, schema); err == nil {
		return nil
	}

	if repaired, err := jsonrepair.RepairJSON(input); err == nil {
		if err := unmarshalNumbers(repaired, schema); err == nil {
			return nil
		}
	}

	var lenient any
	if err := hjson.Unmarshal([]byte(input), &lenient); err == nil {
		if normalized, err := json.Marshal(lenient); err == nil {
			if err := unmarshalNumbers(string(normalized), schema); err == nil {
				return nil
			}
		}
	}

	return fmt.Errorf("model response is not valid JSON")
}

// unmarshalNumbers decodes with UseNumber so numeric fields keep their exact
// textual form for later decimal coercion.
func unmarshalNumbers(input string, schema any) error {
	dec := json.NewDecoder(strings.NewReader(input))
	dec.UseNumber()
	return dec.Decode(schema)
}

// toJSONText serializes a list or map field to its stored text form, with a
// stable empty representation for nil.
func toJSONText(v any, empty string) string {
	if v == nil {
		return empty
	}
	data, err := json.Marshal(v)
	if err != nil {
		return empty
	}
	s := string(data)
	if s == "null" {
		return empty
	}
	return s
}
