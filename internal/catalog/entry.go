package catalog

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/rivo/uniseg"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"animesync/internal/jikan"
	"animesync/internal/providers"
)

// ErrIncompleteEntry reports a folder without an identifier or a name.
var ErrIncompleteEntry = errors.New("entry requires id and name")

// Entry is one record of the published document. Field order is the wire order.
type Entry struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Genres         string   `json:"genres"`
	Type           string   `json:"type"`
	StartingLetter string   `json:"starting_letter"`
	Cloud          string   `json:"cloud"`
	PGRating       string   `json:"pg_rating"`
	Score          *float64 `json:"score"`
	Status         string   `json:"status"`
	TotalEpisodes  int      `json:"total_episodes"`
}

// NewEntry builds an entry from a provider folder and optional metadata. A nil
// meta leaves every descriptive field empty.
func NewEntry(provider providers.Provider, folder providers.Folder, meta *jikan.Metadata) (Entry, error) {
	id := strings.TrimSpace(folder.ID)
	name := strings.TrimSpace(folder.Name)
	if id == "" || name == "" {
		return Entry{}, ErrIncompleteEntry
	}
	entry := Entry{
		ID:             id,
		Name:           name,
		StartingLetter: StartingLetter(name),
		Cloud:          provider.String(),
	}
	if meta != nil {
		entry.Genres = meta.GenreList()
		entry.Type = meta.Type
		entry.PGRating = meta.Rating
		entry.Score = meta.Score
		entry.Status = meta.Status
		entry.TotalEpisodes = meta.TotalEpisodes
	}
	return entry, nil
}

var upper = cases.Upper(language.Und)

// StartingLetter returns the upper-cased first user-perceived character of name.
// Characters whose upper case expands to several letters (ß -> SS) keep a
// single-rune mapping so the result stays one character.
func StartingLetter(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	cluster, _, _, _ := uniseg.FirstGraphemeClusterInString(name, -1)
	upperCluster := upper.String(cluster)
	if uniseg.GraphemeClusterCount(upperCluster) == 1 {
		return upperCluster
	}
	var b strings.Builder
	for len(cluster) > 0 {
		r, size := utf8.DecodeRuneInString(cluster)
		b.WriteRune(unicode.ToUpper(r))
		cluster = cluster[size:]
	}
	return b.String()
}
