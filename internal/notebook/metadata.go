package notebook

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/starford/notegraph/internal/models"
)

// Reserved front-matter keys lifted into models.Metadata.
const (
	keyCreated   = "created"
	keyModified  = "modified"
	keyPinned    = "pinned"
	keyFavorited = "favorited"
	keyIcon      = "icon"
	keyAliases   = "aliases"
)

// MetaFields selects reserved metadata fields a write applies even when the
// supplied value is zero.
type MetaFields uint8

const (
	FieldPinned MetaFields = 1 << iota
	FieldFavorited
	FieldIcon
	FieldAliases

	AllFields = FieldPinned | FieldFavorited | FieldIcon | FieldAliases
)

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// liftMetadata moves the reserved keys out of md into meta. Values that
// cannot be interpreted are dropped and leave the defaults in place.
func liftMetadata(md map[string]any, meta *models.Metadata) {
	if md == nil {
		return
	}
	if v, ok := md[keyCreated]; ok {
		if t, ok := parseTime(v); ok {
			meta.CreatedAt = t
		}
		delete(md, keyCreated)
	}
	if v, ok := md[keyModified]; ok {
		if t, ok := parseTime(v); ok {
			meta.ModifiedAt = t
		}
		delete(md, keyModified)
	}
	if v, ok := md[keyPinned]; ok {
		meta.Pinned = parseBool(v)
		delete(md, keyPinned)
	}
	if v, ok := md[keyFavorited]; ok {
		meta.Favorited = parseBool(v)
		delete(md, keyFavorited)
	}
	if v, ok := md[keyIcon]; ok {
		if s, ok := v.(string); ok {
			meta.Icon = s
		}
		delete(md, keyIcon)
	}
	if v, ok := md[keyAliases]; ok {
		meta.Aliases = parseStrings(v)
		delete(md, keyAliases)
	}
}

// metadataMap is the inverse of liftMetadata. Zero and empty fields are
// left out, so an empty alias list is never serialized.
func metadataMap(meta models.Metadata) map[string]any {
	md := make(map[string]any)
	if !meta.CreatedAt.IsZero() {
		md[keyCreated] = meta.CreatedAt
	}
	if !meta.ModifiedAt.IsZero() {
		md[keyModified] = meta.ModifiedAt
	}
	if meta.Pinned {
		md[keyPinned] = true
	}
	if meta.Favorited {
		md[keyFavorited] = true
	}
	if meta.Icon != "" {
		md[keyIcon] = meta.Icon
	}
	if len(meta.Aliases) > 0 {
		md[keyAliases] = meta.Aliases
	}
	return md
}

// dropCleared removes the keys selected in set whose value in meta is zero,
// so an explicit false or empty value replaces the embedded one.
func dropCleared(md map[string]any, meta models.Metadata, set MetaFields) {
	if set&FieldPinned != 0 && !meta.Pinned {
		delete(md, keyPinned)
	}
	if set&FieldFavorited != 0 && !meta.Favorited {
		delete(md, keyFavorited)
	}
	if set&FieldIcon != 0 && meta.Icon == "" {
		delete(md, keyIcon)
	}
	if set&FieldAliases != 0 && len(meta.Aliases) == 0 {
		delete(md, keyAliases)
	}
}

func parseTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		s := strings.TrimSpace(t)
		for _, layout := range timeLayouts {
			if parsed, err := time.Parse(layout, s); err == nil {
				return parsed, true
			}
		}
		if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
			return time.UnixMilli(ms), true
		}
	case int:
		return time.UnixMilli(int64(t)), true
	case int64:
		return time.UnixMilli(t), true
	case uint64:
		return time.UnixMilli(int64(t)), true
	case float64:
		return time.UnixMilli(int64(t)), true
	}
	return time.Time{}, false
}

func parseBool(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		parsed, _ := strconv.ParseBool(strings.TrimSpace(b))
		return parsed
	case int:
		return b != 0
	}
	return false
}

func parseStrings(v any) []string {
	switch s := v.(type) {
	case string:
		if s = strings.TrimSpace(s); s != "" {
			return []string{s}
		}
	case []string:
		return s
	case []any:
		out := make([]string, 0, len(s))
		for _, item := range s {
			if item == nil {
				continue
			}
			str := strings.TrimSpace(fmt.Sprint(item))
			if str != "" {
				out = append(out, str)
			}
		}
		return out
	}
	return nil
}
