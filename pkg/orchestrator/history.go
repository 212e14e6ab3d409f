package orchestrator

import (
	"strings"

	"github.com/codeready-toolchain/benchwiki/pkg/wikisource"
)

// pageHistory is a fixed-capacity ring buffer of recently visited pages,
// mirroring a Python deque(maxlen=N): once full, appending drops the
// oldest entry.
type pageHistory struct {
	capacity int
	pages    []*wikisource.Page
}

func newPageHistory(capacity int) *pageHistory {
	return &pageHistory{capacity: capacity}
}

func (h *pageHistory) Append(p *wikisource.Page) {
	h.pages = append(h.pages, p)
	if len(h.pages) > h.capacity {
		h.pages = h.pages[len(h.pages)-h.capacity:]
	}
}

func (h *pageHistory) Len() int {
	return len(h.pages)
}

// Last returns the most recently appended page, or nil if empty.
func (h *pageHistory) Last() *wikisource.Page {
	if len(h.pages) == 0 {
		return nil
	}
	return h.pages[len(h.pages)-1]
}

// PreviousTitles returns every visited title in order, excluding the most recent
// (current) page — used to render "previously visited pages" in prompts.
func (h *pageHistory) PreviousTitles() []string {
	if len(h.pages) <= 1 {
		return nil
	}
	titles := make([]string, 0, len(h.pages)-1)
	for _, p := range h.pages[:len(h.pages)-1] {
		titles = append(titles, p.Title)
	}
	return titles
}

// VisitCount returns how many times title appears in the retained
// history, case-insensitively, used for loop detection.
func (h *pageHistory) VisitCount(title string) int {
	count := 0
	for _, p := range h.pages {
		if strings.EqualFold(p.Title, title) {
			count++
		}
	}
	return count
}
