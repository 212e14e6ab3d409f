package llmadapter

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

var jsonObjectPattern = regexp.MustCompile(`(?s)\{.*\}`)

// parseStructured attempts strict structured parsing: it locates the
// outermost JSON object in the reply, unmarshals it against
// WikiNavigationChoice, and requires the chosen concept id to be a key of
// availableConcepts. Returns ok=false (never an error) on any failure so
// the caller can fall back to regex extraction.
func parseStructured(raw string, availableConcepts map[string]string) (WikiNavigationChoice, bool) {
	match := jsonObjectPattern.FindString(raw)
	if match == "" {
		return WikiNavigationChoice{}, false
	}

	var choice WikiNavigationChoice
	if err := json.Unmarshal([]byte(match), &choice); err != nil {
		return WikiNavigationChoice{}, false
	}

	if choice.ChosenConceptID == "" {
		return WikiNavigationChoice{}, false
	}
	choice.ChosenConceptID = strings.ToUpper(choice.ChosenConceptID)
	if _, ok := availableConcepts[choice.ChosenConceptID]; !ok {
		return WikiNavigationChoice{}, false
	}

	return choice, true
}

var (
	strictConceptPattern   = regexp.MustCompile(`(?i)(?:chosen_concept_id\s*:\s*)?(CONCEPT_\d+)`)
	nextClickPattern       = regexp.MustCompile(`(?i)NEXT_CLICK:\s*(CONCEPT_\d+)`)
	intuitionPattern       = regexp.MustCompile(`(?is)intuition\s*:\s*(.*?)(?:\s+(?:chosen_concept_id|confidence)\s*:|$)`)
	confidencePattern      = regexp.MustCompile(`(?i)confidence\s*:\s*(\d+(?:\.\d+)?)`)
)

// parseRegex is the fallback extractor used when structured parsing fails.
// It prefers a concept id introduced by "NEXT_CLICK:" or "chosen_concept_id:",
// then falls back to any bare CONCEPT_\d+ token, returning the first match
// that is a key of availableConcepts.
func parseRegex(raw string, availableConcepts map[string]string) (conceptID, intuition string, confidence *float64) {
	if m := nextClickPattern.FindStringSubmatch(raw); m != nil {
		if _, ok := availableConcepts[strings.ToUpper(m[1])]; ok {
			conceptID = strings.ToUpper(m[1])
		}
	}
	if conceptID == "" {
		matches := strictConceptPattern.FindAllStringSubmatch(raw, -1)
		// First pass: only tokens introduced by "chosen_concept_id:"; second
		// pass: any token.
		for _, prefixedOnly := range []bool{true, false} {
			for _, m := range matches {
				candidate := strings.ToUpper(m[1])
				if _, ok := availableConcepts[candidate]; ok && (!prefixedOnly || len(m[0]) > len(m[1])) {
					conceptID = candidate
					break
				}
			}
			if conceptID != "" {
				break
			}
		}
	}

	if m := intuitionPattern.FindStringSubmatch(raw); m != nil {
		intuition = strings.Trim(strings.TrimSpace(m[1]), ` ",`)
	}

	if m := confidencePattern.FindStringSubmatch(raw); m != nil {
		if f, err := strconv.ParseFloat(m[1], 64); err == nil {
			confidence = &f
		}
	}

	return conceptID, intuition, confidence
}
