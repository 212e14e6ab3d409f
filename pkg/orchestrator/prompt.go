package orchestrator

import (
	"fmt"
	"strings"

	"github.com/codeready-toolchain/benchwiki/pkg/llmadapter"
)

const systemPromptTemplate = `You are playing the Wikipedia Game. Your goal is to reach the target page by clicking on links.
Target Page: %s

Rules:
1. You will be provided with the content of the current Wikipedia page.
2. You will also see the list of previously visited pages (if any).
3. Links are anonymized as [CONCEPT_XX: Original Name].
4. You must respond with the CONCEPT_ID of the link you want to click next.
5. Your response must contain the CONCEPT_ID in the format: NEXT_CLICK: CONCEPT_XX

Navigation strategy:
- Try to avoid revisiting pages unless you realize you took a wrong path and need to backtrack.
- If you're stuck or went in the wrong direction, it's okay to go back to a previously visited page.

When providing your structured response, include:
- intuition: a brief gut feeling about why this link seems promising (1-2 sentences max).
- chosen_concept_id: the exact CONCEPT_ID from the available list (e.g. CONCEPT_12).
- confidence: your confidence level in this decision (0.0 uncertain, 1.0 very confident).`

// buildMessages renders the system prompt, the visited-page trail, and the
// current page's anonymized content into a message list ready for the LLM
// adapter.
func buildMessages(target string, history *pageHistory) []llmadapter.Message {
	messages := []llmadapter.Message{
		{Role: "system", Content: fmt.Sprintf(systemPromptTemplate, target)},
	}

	if titles := history.PreviousTitles(); len(titles) > 0 {
		messages = append(messages, llmadapter.Message{
			Role:    "system",
			Content: "Previously visited pages (in order):\n" + strings.Join(titles, " → "),
		})
	}

	current := history.Last()
	messages = append(messages, llmadapter.Message{
		Role:    "user",
		Content: fmt.Sprintf("Current Page: %s\n\nContent:\n%s", current.Title, current.Extract),
	})

	return messages
}
