package decompose

import "strings"

// DedupeSuggestions drops suggested tasks whose titles match an existing
// title or an earlier suggestion. Titles are compared case-insensitively
// with whitespace collapsed. It returns the kept tasks in order and the
// titles of the dropped ones.
func DedupeSuggestions(existingTitles []string, tasks []SuggestedTask) (kept []SuggestedTask, dropped []string) {
	seen := make(map[string]bool, len(existingTitles)+len(tasks))
	for _, title := range existingTitles {
		seen[normalizeTitle(title)] = true
	}

	kept = make([]SuggestedTask, 0, len(tasks))
	for _, t := range tasks {
		key := normalizeTitle(t.Title)
		if seen[key] {
			dropped = append(dropped, t.Title)
			continue
		}
		seen[key] = true
		kept = append(kept, t)
	}
	return kept, dropped
}

func normalizeTitle(title string) string {
	return strings.ToLower(strings.Join(strings.Fields(title), " "))
}
