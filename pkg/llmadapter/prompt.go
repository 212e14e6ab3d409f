package llmadapter

import (
	"fmt"
	"sort"
	"strings"
)

const formatInstructions = `Respond with a single JSON object with exactly these fields:
{
  "intuition": "<1-2 sentence justification for your choice>",
  "chosen_concept_id": "<CONCEPT_ID, e.g. CONCEPT_12>",
  "confidence": <float between 0.0 and 1.0>
}
Your chosen_concept_id MUST be one of the CONCEPT_IDs listed above. Do not invent or hallucinate concept IDs.`

// buildAugmentedMessages replaces the last user message with an augmented
// version that appends a human-readable enumeration of available concepts
// (sorted by concept id) and machine-readable format instructions.
func buildAugmentedMessages(messages []Message, availableConcepts map[string]string) []Message {
	if len(messages) == 0 {
		return messages
	}

	ids := make([]string, 0, len(availableConcepts))
	for id := range availableConcepts {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var list strings.Builder
	for _, id := range ids {
		fmt.Fprintf(&list, "- %s: %s\n", id, availableConcepts[id])
	}

	augmented := make([]Message, len(messages))
	copy(augmented, messages)

	last := augmented[len(augmented)-1]
	last.Content = fmt.Sprintf("%s\n\nAVAILABLE CONCEPTS (choose ONE from this list):\n%s\n%s",
		last.Content, list.String(), formatInstructions)
	augmented[len(augmented)-1] = last

	return augmented
}
