package quiz

import (
	"slices"
	"strings"

	"github.com/tuneder/tuneder/internal/sanitize"
)

const (
	maxGenres      = 10
	maxGenreLength = 40
)

// Genre is one option on the genre filter page. Value is the Spotify genre
// tag used in search queries.
type Genre struct {
	Value string
	Label string
}

// Catalogue lists the genres offered on the filter page.
var Catalogue = []Genre{
	{Value: "pop", Label: "Pop"},
	{Value: "rock", Label: "Rock"},
	{Value: "hip hop", Label: "Hiphop"},
	{Value: "r&b", Label: "R&B"},
	{Value: "dance", Label: "Dance"},
	{Value: "electronic", Label: "Elektronisch"},
	{Value: "indie", Label: "Indie"},
	{Value: "jazz", Label: "Jazz"},
	{Value: "classical", Label: "Klassiek"},
	{Value: "metal", Label: "Metal"},
	{Value: "country", Label: "Country"},
	{Value: "latin", Label: "Latin"},
	{Value: "reggae", Label: "Reggae"},
	{Value: "soul", Label: "Soul"},
}

// normalizeGenres cleans submitted tags: markup is stripped, tags are lower
// cased, blanks and duplicates dropped and the list capped. Order is kept.
func normalizeGenres(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, g := range raw {
		g = strings.ToLower(sanitize.Text(g))
		if g == "" || len(g) > maxGenreLength || slices.Contains(out, g) {
			continue
		}
		out = append(out, g)
		if len(out) == maxGenres {
			break
		}
	}
	return out
}
