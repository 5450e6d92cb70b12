package cache

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/width"

	"github.com/ahrav/shinise-scout/internal/domain"
)

// Collections of the server tier.
const (
	CollectionAgentResults = "agent_results"
	CollectionSearches     = "searches"
	CollectionShops        = "shops"
)

// searchKeyVersion is bumped whenever the stored search shape changes.
const searchKeyVersion = "v2"

var lower = cases.Lower(language.Und)

// AgentKey identifies one agent result for one shop.
func AgentKey(shopID string, id domain.TaskID) string {
	return shopID + "_" + string(id)
}

// SearchKey identifies one discovery request. Location and genre are
// normalized so that full-width, upper-case and spaced variants of the same
// input share an entry. An empty genre is stored as "all".
func SearchKey(location, genre string, mode domain.Mode) string {
	g := Normalize(genre)
	if g == "" {
		g = "all"
	}
	if mode == "" {
		mode = domain.ModeStandard
	}
	return Normalize(location) + "_" + g + "_" + string(mode) + "_" + searchKeyVersion
}

// Normalize folds width, lower-cases, removes slashes and collapses
// whitespace to single underscores.
func Normalize(s string) string {
	s = width.Fold.String(s)
	s = lower.String(s)
	s = strings.ReplaceAll(s, "/", "")
	return strings.Join(strings.Fields(s), "_")
}
