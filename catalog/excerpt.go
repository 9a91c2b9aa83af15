package catalog

import (
	"sort"
	"strings"
	"unicode"
)

// DefaultExcerptLimit bounds the number of catalog entries serialized into a
// mapping prompt when the caller does not choose a limit.
const DefaultExcerptLimit = 40

// ExcerptEntry is the prompt-facing view of a definition. It never carries
// parameter schemas.
type ExcerptEntry struct {
	TypeID      string   `json:"id"`
	DisplayName string   `json:"name"`
	Description string   `json:"description"`
	UsageHints  []string `json:"usageHints,omitempty"`
}

var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "with": {}, "from": {}, "into": {},
	"that": {}, "this": {}, "then": {}, "when": {}, "each": {}, "every": {},
	"our": {}, "all": {}, "any": {}, "new": {}, "via": {}, "are": {},
}

// Keywords splits text into lower-case search terms, dropping short words
// and common filler.
func Keywords(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]struct{}, len(fields))
	var out []string
	for _, f := range fields {
		if len(f) < 3 {
			continue
		}
		if _, stop := stopWords[f]; stop {
			continue
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

// Excerpt returns at most limit catalog entries relevant to query, in catalog
// order. Entries are ranked by how many query keywords appear in their name,
// description, hints and categories. Triggers and core logic nodes are always
// candidates so a mapping can fall back on them. A limit <= 0 returns the
// whole catalog.
func (r *Registry) Excerpt(query string, limit int) []ExcerptEntry {
	if limit <= 0 || limit >= len(r.defs) {
		out := make([]ExcerptEntry, len(r.defs))
		for i, d := range r.defs {
			out[i] = excerptOf(d)
		}
		return out
	}

	type ranked struct {
		pos   int
		score int
	}
	kws := Keywords(query)
	var cands []ranked
	for i, d := range r.defs {
		score := relevance(d, kws)
		if d.HasCategory(CategoryTrigger) || (d.HasCategory(CategoryLogic) && d.HasCategory("core")) {
			score++
		}
		if score > 0 {
			cands = append(cands, ranked{pos: i, score: score})
		}
	}
	sort.SliceStable(cands, func(a, b int) bool { return cands[a].score > cands[b].score })
	if len(cands) > limit {
		cands = cands[:limit]
	}
	sort.Slice(cands, func(a, b int) bool { return cands[a].pos < cands[b].pos })

	out := make([]ExcerptEntry, len(cands))
	for i, c := range cands {
		out[i] = excerptOf(r.defs[c.pos])
	}
	return out
}

func relevance(d NodeDefinition, kws []string) int {
	if len(kws) == 0 {
		return 0
	}
	var b strings.Builder
	b.WriteString(strings.ToLower(d.DisplayName))
	b.WriteByte(' ')
	b.WriteString(strings.ToLower(d.Description))
	for _, h := range d.UsageHints {
		b.WriteByte(' ')
		b.WriteString(strings.ToLower(h))
	}
	for _, c := range d.Category {
		b.WriteByte(' ')
		b.WriteString(c)
	}
	hay := b.String()
	n := 0
	for _, kw := range kws {
		if strings.Contains(hay, kw) {
			n += 2
		}
	}
	return n
}

func excerptOf(d NodeDefinition) ExcerptEntry {
	return ExcerptEntry{
		TypeID:      d.TypeID,
		DisplayName: d.DisplayName,
		Description: d.Description,
		UsageHints:  d.UsageHints,
	}
}
