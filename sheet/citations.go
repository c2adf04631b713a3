package sheet

import "regexp"

var citationPattern = regexp.MustCompile(`\[\[([^\[\]]+)\]\]`)

// ExtractCitations finds inline citation markers of the form
// [[SheetName!A1]] or [[SheetName!A1:C3]] in model output, normalizes each
// address (quoted sheet names are unquoted) and deduplicates by the
// normalized form, preserving first-seen order.
func ExtractCitations(text string) []string {
	matches := citationPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]bool, len(matches))
	var out []string
	for _, m := range matches {
		norm := Normalize(m[1])
		if norm == "" || seen[norm] {
			continue
		}
		seen[norm] = true
		out = append(out, norm)
	}
	return out
}

// StripCitations removes citation markers from text, leaving the bare
// address in place so the answer still reads naturally.
func StripCitations(text string) string {
	return citationPattern.ReplaceAllString(text, "$1")
}
