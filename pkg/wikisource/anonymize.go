package wikisource

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// boilerplateSections are trailing headings removed from an extract before
// anonymization, from the heading through the end of the text.
var boilerplateSections = []string{
	"References", "External links", "Further reading", "See also", "Notes",
}

var boilerplatePatterns = compileBoilerplatePatterns()

func compileBoilerplatePatterns() []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, len(boilerplateSections))
	for i, section := range boilerplateSections {
		patterns[i] = regexp.MustCompile(`(?is)== ` + regexp.QuoteMeta(section) + ` ==.*`)
	}
	return patterns
}

// anonymize strips boilerplate sections from extract, deduplicates links
// preserving first-occurrence order, assigns each unique link a stable
// CONCEPT_<k> id (k = its index in that deduplicated order), then replaces
// every whole-word case-insensitive occurrence of each link title in the
// (already boilerplate-stripped) extract with "[CONCEPT_ID: title]",
// applying substitutions longest-title-first so that longer titles aren't
// partially shadowed by shorter substrings sharing a prefix/suffix.
//
// This never fails: an empty extract or link list yields an empty mapping
// but a valid (possibly unmodified) extract.
func anonymize(extract string, links []string) (string, map[string]string) {
	for _, pattern := range boilerplatePatterns {
		extract = pattern.ReplaceAllString(extract, "")
	}

	unique := dedupePreservingOrder(links)

	mapping := make(map[string]string, len(unique))
	type substitution struct {
		conceptID string
		title     string
	}
	subs := make([]substitution, len(unique))
	for i, title := range unique {
		conceptID := fmt.Sprintf("CONCEPT_%02d", i)
		mapping[conceptID] = title
		subs[i] = substitution{conceptID: conceptID, title: title}
	}

	sort.SliceStable(subs, func(i, j int) bool {
		return len(subs[i].title) > len(subs[j].title)
	})

	// One pass over the extract with every title as a longest-first
	// alternative, so text already turned into a token is never matched again.
	alternatives := make([]string, len(subs))
	byTitle := make(map[string]substitution, len(subs))
	for i, s := range subs {
		alternatives[i] = regexp.QuoteMeta(s.title)
		byTitle[strings.ToLower(s.title)] = s
	}
	combined := regexp.MustCompile(`(?i)\b(?:` + strings.Join(alternatives, "|") + `)\b`)
	anonymized := combined.ReplaceAllStringFunc(extract, func(m string) string {
		s, ok := byTitle[strings.ToLower(m)]
		if !ok {
			return m
		}
		return fmt.Sprintf("[%s: %s]", s.conceptID, s.title)
	})

	return anonymized, mapping
}

func dedupePreservingOrder(links []string) []string {
	seen := make(map[string]struct{}, len(links))
	out := make([]string, 0, len(links))
	for _, l := range links {
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	return out
}
