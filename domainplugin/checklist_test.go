package domainplugin

import (
	"testing"

	"github.com/c360studio/clausereview/model"
	"github.com/stretchr/testify/require"
)

func TestMatchingClauseIDsExactMatch(t *testing.T) {
	item := model.ReviewChecklistItem{ClauseID: "4.1"}
	matches := MatchingClauseIDs(item, []string{"1", "4.1", "4.2"})
	require.Equal(t, []string{"4.1"}, matches)
}

func TestMatchingClauseIDsExactMissingFromDocument(t *testing.T) {
	item := model.ReviewChecklistItem{ClauseID: "9.9"}
	matches := MatchingClauseIDs(item, []string{"1", "4.1"})
	require.Empty(t, matches)
}

func TestMatchingClauseIDsGlobPattern(t *testing.T) {
	item := model.ReviewChecklistItem{ClauseID: "6.*"}
	matches := MatchingClauseIDs(item, []string{"4.1", "6.1", "6.2", "7.1"})
	require.ElementsMatch(t, []string{"6.1", "6.2"}, matches)
}

func TestMatchingClauseIDsWildcardMatchesEverything(t *testing.T) {
	item := model.ReviewChecklistItem{ClauseID: model.WildcardClauseID}
	matches := MatchingClauseIDs(item, []string{"1", "2", "3"})
	require.Equal(t, []string{"1", "2", "3"}, matches)
}
