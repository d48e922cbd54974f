package domainplugin

import (
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/c360studio/clausereview/model"
)

// MatchingClauseIDs resolves a single checklist item against the clause
// ids actually present in a document, expanding wildcard patterns via
// doublestar glob matching. A non-wildcard item that names a clause id
// absent from the document yields no matches — the plan node silently
// skips it rather than treating it as a structural error, since checklists
// are written once for a domain and reused across many
// differently-structured documents.
func MatchingClauseIDs(item model.ReviewChecklistItem, documentClauseIDs []string) []string {
	if item.ClauseID == "" || item.ClauseID == model.WildcardClauseID {
		return documentClauseIDs
	}

	if !strings.ContainsAny(item.ClauseID, "*?[") {
		for _, id := range documentClauseIDs {
			if id == item.ClauseID {
				return []string{id}
			}
		}
		return nil
	}

	var matches []string
	for _, id := range documentClauseIDs {
		if ok, _ := doublestar.Match(item.ClauseID, id); ok {
			matches = append(matches, id)
		}
	}
	return matches
}
