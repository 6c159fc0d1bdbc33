// internal/checks/jsonformat.go
package checks

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

var fencedJSONPattern = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

// answerSchema is the shape json_valid prompts ask for.
var answerSchema = mustSchema(`{
  "type": "object",
  "required": ["answer", "confidence", "reasoning"],
  "properties": {
    "confidence": {"type": "number", "minimum": 0, "maximum": 1}
  }
}`)

func mustSchema(src string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(err)
	}
	return schema
}

func checkJSONValid(_ map[string]any, response string) outcome {
	var flags []string
	clean := strings.TrimSpace(response)

	if strings.HasPrefix(clean, "```") {
		flags = append(flags, "FAIL_JSON_WRAPPED_IN_MARKDOWN")
		if m := fencedJSONPattern.FindStringSubmatch(clean); m != nil {
			clean = m[1]
		}
	}
	if !strings.HasPrefix(clean, "{") {
		flags = append(flags, "FAIL_TEXT_BEFORE_JSON")
	}

	var doc any
	if err := json.Unmarshal([]byte(clean), &doc); err != nil {
		return outcome{flags: append(flags, fmt.Sprintf("FAIL_INVALID_JSON: %v", err))}
	}

	result, err := answerSchema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return outcome{flags: append(flags, fmt.Sprintf("FAIL_INVALID_JSON: %v", err))}
	}

	var missing []string
	for _, e := range result.Errors() {
		switch {
		case e.Type() == "required":
			missing = append(missing, fmt.Sprint(e.Details()["property"]))
		case e.Field() == "confidence":
			flags = append(flags, fmt.Sprintf("FAIL_CONFIDENCE_OUT_OF_RANGE: %v", e.Value()))
		case e.Field() == "(root)" && e.Type() == "invalid_type":
			flags = append(flags, "FAIL_INVALID_JSON: top-level value is not an object")
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		flags = append(flags, "FAIL_MISSING_KEYS: "+strings.Join(missing, ", "))
	}
	return outcome{flags: flags}
}
