package providers

import (
	"encoding/json"
	"html"
	"strconv"
	"strings"
)

// Folder is one raw listing entry reported by a provider.
type Folder struct {
	ID   string
	Name string
}

// Complete reports whether the folder carries both an identifier and a name.
func (f Folder) Complete() bool {
	return strings.TrimSpace(f.ID) != "" && strings.TrimSpace(f.Name) != ""
}

// strategy is how one layout locates its folder list and reads each folder.
type strategy struct {
	items    func(payload any) []any
	idKeys   []string
	nameKeys []string
}

var strategies = map[layout]strategy{
	// MixDrop only ever answers with the object form and names its fields
	// id/title; the XFS aliases stay as fallbacks.
	layoutMixDrop: {
		items:    objectListing("result", "folders"),
		idKeys:   []string{"id", "fld_id"},
		nameKeys: []string{"title", "name"},
	},
	layoutFileServer: {
		items:    listing("result", "folders"),
		idKeys:   []string{"fld_id", "id"},
		nameKeys: []string{"name", "title"},
	},
}

// Normalize extracts folder records from a decoded provider payload. Payloads
// that match none of the provider's known shapes produce an empty slice; only an
// unknown provider is an error.
func Normalize(p Provider, payload any) ([]Folder, error) {
	strat, ok := strategies[layoutFor(p)]
	if !ok {
		return nil, &NormalizeError{Provider: p, Err: ErrUnsupportedProvider}
	}

	items := strat.items(payload)
	folders := make([]Folder, 0, len(items))
	for _, item := range items {
		fields, ok := item.(map[string]any)
		if !ok {
			continue
		}
		folders = append(folders, Folder{
			ID:   DecodeEntities(firstString(fields, strat.idKeys)),
			Name: DecodeEntities(firstString(fields, strat.nameKeys)),
		})
	}
	return folders, nil
}

// objectListing reads payload[resultKey][listKey] and nothing else.
func objectListing(resultKey, listKey string) func(any) []any {
	return func(payload any) []any {
		root, ok := payload.(map[string]any)
		if !ok {
			return nil
		}
		result, ok := root[resultKey].(map[string]any)
		if !ok {
			return nil
		}
		list, _ := result[listKey].([]any)
		return list
	}
}

// listing returns payload[resultKey][listKey] when the result is an object, or
// payload[resultKey] itself when it is a bare list.
func listing(resultKey, listKey string) func(any) []any {
	nested := objectListing(resultKey, listKey)
	return func(payload any) []any {
		if root, ok := payload.(map[string]any); ok {
			if list, ok := root[resultKey].([]any); ok {
				return list
			}
		}
		return nested(payload)
	}
}

func firstString(fields map[string]any, keys []string) string {
	for _, key := range keys {
		if value := scalarString(fields[key]); strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

func scalarString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		return ""
	}
}

// DecodeEntities unescapes HTML entities until the value is stable, so doubly
// encoded upstream text ("&amp;amp;") collapses fully. Decoding an already
// decoded string is a no-op.
func DecodeEntities(value string) string {
	for {
		decoded := html.UnescapeString(value)
		if decoded == value {
			return value
		}
		value = decoded
	}
}
