// internal/checks/checks.go
// Package checks runs cheap automated heuristics over model responses. Flags are
// advisory text; a flag starting with FAIL, or an empty response, marks the run as not
// passed.
package checks

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/mwiater/llmeval/internal/prompts"
	"github.com/mwiater/llmeval/internal/results"
)

const (
	// FlagAPIError marks a run whose completion call failed.
	FlagAPIError = "API_ERROR"
	// FlagEmptyResponse marks a blank response.
	FlagEmptyResponse = "EMPTY_RESPONSE"
	// FlagVeryShort marks a response under minResponseChars characters.
	FlagVeryShort = "VERY_SHORT_RESPONSE"

	failPrefix       = "FAIL"
	minResponseChars = 20
)

// Checker inspects one response for one prompt.
type Checker interface {
	Check(p prompts.Prompt, response string) results.AutoChecks
}

// CheckerFunc adapts a function to the Checker interface.
type CheckerFunc func(p prompts.Prompt, response string) results.AutoChecks

func (f CheckerFunc) Check(p prompts.Prompt, response string) results.AutoChecks {
	return f(p, response)
}

var registry = map[string]Checker{
	"heuristic": CheckerFunc(Heuristic),
	"none":      CheckerFunc(passThrough),
}

// New returns the registered checker called name.
func New(name string) (Checker, error) {
	c, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown checker %q (available: %s)", name, strings.Join(Names(), ", "))
	}
	return c, nil
}

// Names lists registered checkers.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// APIError returns the auto-check result recorded for a failed completion.
func APIError() results.AutoChecks {
	return results.AutoChecks{
		Flags:      []string{FlagAPIError},
		AutoScores: map[string]any{},
		Passed:     false,
	}
}

// Passed reports whether flags contain no failing flag.
func Passed(flags []string) bool {
	for _, f := range flags {
		if strings.HasPrefix(f, failPrefix) || f == FlagEmptyResponse {
			return false
		}
	}
	return true
}

// outcome is what a single check type contributes.
type outcome struct {
	flags  []string
	scores map[string]any
}

type checkFunc func(extra map[string]any, response string) outcome

// checkTypes maps a prompt's check_type to its heuristic. Types that only a human or
// the judge can assess are registered as pass-through.
var checkTypes = map[string]checkFunc{
	"word_count":                checkWordCount,
	"word_count_reduction":      checkWordCountReduction,
	"json_valid":                checkJSONValid,
	"constraint_check":          checkConstraint,
	"refusal_check":             checkRefusal,
	"trap_no_bug":               checkTrapNoBug,
	"trap_common_error":         checkTrapCommonError,
	"trap_wrong_claim":          checkTrapWrongClaim,
	"ambiguity_check":           checkAmbiguity,
	"code_runnable":             checkCodeRunnable,
	"self_awareness":            checkSelfAwareness,
	"response_length":           checkResponseLength,
	"banned_words":              checkBannedWords,
	"hallucination_api":         checkHallucinationAPI,
	"table_format":              checkTableFormat,
	"multi_step_verify":         checkMultiStepVerify,
	"statistical_significance":  checkStatisticalSignificance,
	"sycophancy_check":          checkSycophancy,
	"acknowledges_nonexistence": checkAcknowledgesNonexistence,
	"calibration":               noop,
	"reasoning":                 noop,
	"format_check":              noop,
	"checklist":                 noop,
	"analysis":                  noop,
	"synthesis":                 noop,
	"comparison":                noop,
	"behavioural":               noop,
}

// Heuristic applies the universal checks and then the prompt's check type, if known.
func Heuristic(p prompts.Prompt, response string) results.AutoChecks {
	if strings.TrimSpace(response) == "" {
		return results.AutoChecks{
			Flags:      []string{FlagEmptyResponse},
			AutoScores: map[string]any{},
			Passed:     false,
		}
	}

	flags := []string{}
	scores := map[string]any{}
	if len(response) < minResponseChars {
		flags = append(flags, FlagVeryShort)
	}

	checkType := p.CheckType
	if checkType == "" {
		checkType = "reasoning"
	}
	if fn, ok := checkTypes[checkType]; ok {
		out := fn(p.Extra, response)
		flags = append(flags, out.flags...)
		for k, v := range out.scores {
			scores[k] = v
		}
	}

	return results.AutoChecks{
		Flags:      flags,
		AutoScores: scores,
		Passed:     Passed(flags),
	}
}

// decodeArgs fills v from prompt metadata. Malformed metadata surfaces as a flag rather
// than aborting the run.
func decodeArgs(extra map[string]any, v any) []string {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           v,
		WeaklyTypedInput: true,
	})
	if err == nil {
		err = decoder.Decode(extra)
	}
	if err != nil {
		return []string{fmt.Sprintf("CHECK_CONFIG_ERROR: %v", err)}
	}
	return nil
}

func noop(map[string]any, string) outcome { return outcome{} }

func passThrough(prompts.Prompt, string) results.AutoChecks {
	return results.AutoChecks{Flags: []string{}, AutoScores: map[string]any{}, Passed: true}
}
