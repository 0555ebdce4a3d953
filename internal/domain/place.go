package domain

import (
	"net/url"
	"strings"
)

type PlaceKind string

const (
	PlaceKindSearch  PlaceKind = "search"
	PlaceKindPlace   PlaceKind = "place"
	PlaceKindUnknown PlaceKind = "unknown"
)

const (
	searchMarker = "/search/"
	placeMarker  = "/place/"

	// CoordinateMarker is present in a resolved place URL once the page has
	// reached a coordinate-bearing location.
	CoordinateMarker = "@"
)

// PlaceReference is one ingested row naming a saved place.
type PlaceReference struct {
	RowNumber int
	URL       string
	Title     string
	Note      string
	Comment   string
}

// WithURL returns a copy of the reference pointing at a resolved URL.
func (r PlaceReference) WithURL(resolved string) PlaceReference {
	r.URL = resolved
	return r
}

func (r PlaceReference) Kind() PlaceKind {
	switch {
	case strings.Contains(r.URL, searchMarker):
		return PlaceKindSearch
	case strings.Contains(r.URL, placeMarker):
		return PlaceKindPlace
	default:
		return PlaceKindUnknown
	}
}

// HasCoordinates reports whether the URL already carries a coordinate marker,
// so no browsing session is needed to resolve it.
func (r PlaceReference) HasCoordinates() bool {
	return strings.Contains(r.URL, CoordinateMarker)
}

// NeedsSession reports whether the coordinates can only be obtained by
// navigating to the URL in a browsing session.
func (r PlaceReference) NeedsSession() bool {
	return r.Kind() == PlaceKindPlace && !r.HasCoordinates()
}

// DisplayName is the human-readable part of the URL: the coordinates of a
// search URL or the decoded slug of a place URL.
func (r PlaceReference) DisplayName() string {
	switch r.Kind() {
	case PlaceKindSearch:
		return afterMarker(r.URL, searchMarker)
	case PlaceKindPlace:
		return placeSlug(r.URL)
	default:
		return ""
	}
}

func afterMarker(raw, marker string) string {
	idx := strings.Index(raw, marker)
	if idx < 0 {
		return ""
	}
	return raw[idx+len(marker):]
}

func placeSlug(raw string) string {
	rest := afterMarker(raw, placeMarker)
	slug, _, _ := strings.Cut(rest, "/")
	decoded, err := url.QueryUnescape(slug)
	if err != nil {
		return strings.ReplaceAll(slug, "+", " ")
	}
	return decoded
}
