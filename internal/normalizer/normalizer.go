package normalizer

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"trawler/pkg/api/scrapeapi"
	"trawler/pkg/models"
)

// NormalizationError is returned when no identifying key (id, short-code,
// or URL) can be derived from a raw record. It is the only way
// normalization fails; every other attribute degrades to a zero value.
type NormalizationError struct {
	Reason string
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("cannot normalize post: %s", e.Reason)
}

// accessor extracts one candidate value for an attribute from a raw record.
// Each attribute resolves through an ordered accessor chain; the first
// non-empty result wins. New upstream shapes are supported by appending
// accessors, not by touching the resolution logic.
type accessor func(scrapeapi.RawPost) (string, bool)

var identityChain = []accessor{
	stringField("id"),
	stringField("shortCode"),
	stringField("shortcode"),
	stringField("code"),
	shortCodeFromURL("url"),
}

var captionChain = []accessor{
	stringField("caption"),
	stringField("captionText"),
	stringField("title"),
	captionEdge,
}

var ownerChain = []accessor{
	stringField("ownerUsername"),
	stringField("ownerHandle"),
	stringField("username"),
}

var typeChain = []accessor{
	stringField("type"),
	stringField("__typename"),
	stringField("mediaType"),
}

var productTypeChain = []accessor{
	stringField("productType"),
	stringField("product_type"),
}

// timestampChain candidates, tried in order: unix-seconds epoch fields,
// then ISO strings, then a locale string.
var timestampChain = []accessor{
	stringField("timestamp"),
	stringField("takenAtTimestamp"),
	stringField("taken_at_timestamp"),
	stringField("takenAt"),
	stringField("date"),
}

var shortCodePattern = regexp.MustCompile(`/p/([A-Za-z0-9_-]+)`)

// Normalize maps one raw upstream record, whatever its source shape, to a
// canonical post.
func Normalize(raw scrapeapi.RawPost) (*models.CanonicalPost, error) {
	externalID, ok := resolve(raw, identityChain)
	if !ok {
		return nil, &NormalizationError{Reason: "no id, short-code, or url present"}
	}

	post := &models.CanonicalPost{
		ExternalID: externalID,
		Kind:       classifyKind(raw),
		MediaURLs:  resolveMedia(raw),
		IsPinned:   boolField(raw, "isPinned") || boolField(raw, "is_pinned"),
	}

	if caption, ok := resolve(raw, captionChain); ok {
		post.Caption = &caption
	}
	if owner, ok := resolve(raw, ownerChain); ok {
		post.OwnerHandle = owner
	}
	if productType, ok := resolve(raw, productTypeChain); ok {
		post.ProductType = productType
	}
	if ts := resolveTimestamp(raw); ts != nil {
		post.CapturedAt = ts
	}

	return post, nil
}

// resolve walks an accessor chain and returns the first hit.
func resolve(raw scrapeapi.RawPost, chain []accessor) (string, bool) {
	for _, access := range chain {
		if value, ok := access(raw); ok {
			return value, true
		}
	}
	return "", false
}

// classifyKind classifies media by substring match on the raw type field.
func classifyKind(raw scrapeapi.RawPost) models.MediaKind {
	rawType, _ := resolve(raw, typeChain)
	lowered := strings.ToLower(rawType)

	switch {
	case strings.Contains(lowered, "sidecar"), strings.Contains(lowered, "carousel"):
		return models.KindCarousel
	case strings.Contains(lowered, "video"):
		return models.KindVideo
	default:
		return models.KindImage
	}
}

// resolveMedia merges every known media field shape into one ordered,
// deduplicated URL list. Carousel child items are flattened in after the
// post's own media.
func resolveMedia(raw scrapeapi.RawPost) []string {
	var urls []string

	urls = append(urls, stringSlice(raw["images"])...)
	urls = append(urls, stringSlice(raw["imageUrls"])...)
	if single, ok := raw["imageUrl"].(string); ok && single != "" {
		urls = append(urls, single)
	}
	if single, ok := raw["displayUrl"].(string); ok && single != "" {
		urls = append(urls, single)
	}
	urls = append(urls, displayResourceURLs(raw["displayResources"])...)
	urls = append(urls, displayResourceURLs(raw["display_resources"])...)

	if children, ok := raw["childPosts"].([]interface{}); ok {
		for _, child := range children {
			childMap, ok := child.(map[string]interface{})
			if !ok {
				continue
			}
			urls = append(urls, resolveMedia(scrapeapi.RawPost(childMap))...)
		}
	}

	return dedupe(urls)
}

// resolveTimestamp tries each timestamp candidate in priority order and
// normalizes the first one that parses. Unparseable timestamps are not an
// error; the canonical post simply has no capture time.
func resolveTimestamp(raw scrapeapi.RawPost) *time.Time {
	for _, access := range timestampChain {
		value, ok := access(raw)
		if !ok {
			continue
		}
		if ts, ok := parseTimestamp(value); ok {
			utc := ts.UTC()
			return &utc
		}
	}
	return nil
}

func parseTimestamp(value string) (time.Time, bool) {
	// Unix seconds, as delivered by graph-shaped records
	if epoch, err := strconv.ParseInt(value, 10, 64); err == nil && epoch > 0 {
		return time.Unix(epoch, 0), true
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05.000Z", "1/2/2006, 3:04:05 PM"} {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

func stringField(key string) accessor {
	return func(raw scrapeapi.RawPost) (string, bool) {
		switch v := raw[key].(type) {
		case string:
			if v != "" {
				return v, true
			}
		case float64:
			// JSON numbers decode as float64; ids and epochs arrive this way
			return strconv.FormatInt(int64(v), 10), true
		}
		return "", false
	}
}

func shortCodeFromURL(key string) accessor {
	return func(raw scrapeapi.RawPost) (string, bool) {
		u, ok := raw[key].(string)
		if !ok || u == "" {
			return "", false
		}
		if m := shortCodePattern.FindStringSubmatch(u); m != nil {
			return m[1], true
		}
		return "", false
	}
}

func captionEdge(raw scrapeapi.RawPost) (string, bool) {
	edgeContainer, ok := raw["edge_media_to_caption"].(map[string]interface{})
	if !ok {
		return "", false
	}
	edges, ok := edgeContainer["edges"].([]interface{})
	if !ok || len(edges) == 0 {
		return "", false
	}
	first, ok := edges[0].(map[string]interface{})
	if !ok {
		return "", false
	}
	node, ok := first["node"].(map[string]interface{})
	if !ok {
		return "", false
	}
	text, ok := node["text"].(string)
	return text, ok && text != ""
}

func boolField(raw scrapeapi.RawPost, key string) bool {
	b, ok := raw[key].(bool)
	return ok && b
}

func stringSlice(value interface{}) []string {
	items, ok := value.([]interface{})
	if !ok {
		return nil
	}
	var out []string
	for _, item := range items {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

func displayResourceURLs(value interface{}) []string {
	items, ok := value.([]interface{})
	if !ok {
		return nil
	}
	var out []string
	for _, item := range items {
		entry, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		for _, key := range []string{"src", "url"} {
			if s, ok := entry[key].(string); ok && s != "" {
				out = append(out, s)
				break
			}
		}
	}
	return out
}

// dedupe removes duplicate URLs, keeping first-occurrence order.
func dedupe(urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	var out []string
	for _, u := range urls {
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}
