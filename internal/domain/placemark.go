package domain

import (
	"fmt"
	"strconv"
	"strings"
)

type Placemark struct {
	Name        string
	Description string
	Coordinates string
	// RowNumber is the source row the placemark was resolved from.
	RowNumber int
}

// ResolvePlacemark maps a reference, whose URL may already have been resolved
// by a browsing session, to a placemark. Coordinates are rendered longitude
// first.
func ResolvePlacemark(ref PlaceReference, includeComment bool) (Placemark, error) {
	description := ref.Note
	if ref.Kind() == PlaceKindPlace {
		if slug := placeSlug(ref.URL); slug != "" {
			description = slug + ". " + ref.Note
		}
	}

	if includeComment && strings.TrimSpace(ref.Comment) != "" {
		description = strings.TrimSpace(description)
		if description != "" && !strings.HasSuffix(description, ".") {
			description += "."
		}
		description = strings.TrimSpace(description + " " + ref.Comment)
	}

	coordinates, err := ParseCoordinates(ref.URL)
	if err != nil {
		return Placemark{}, err
	}

	return Placemark{
		Name:        ref.Title,
		Description: description,
		Coordinates: coordinates,
		RowNumber:   ref.RowNumber,
	}, nil
}

// ParseCoordinates extracts "<long>,<lat>" from a search or resolved place URL.
func ParseCoordinates(raw string) (string, error) {
	var segment string
	switch (PlaceReference{URL: raw}).Kind() {
	case PlaceKindSearch:
		segment = afterMarker(raw, searchMarker)
	case PlaceKindPlace:
		parts := strings.Split(afterMarker(raw, placeMarker), "/")
		if len(parts) < 2 || !strings.HasPrefix(parts[1], CoordinateMarker) {
			return "", fmt.Errorf("%w. Url: %s", ErrMissingCoordinates, raw)
		}
		segment = strings.TrimPrefix(parts[1], CoordinateMarker)
	default:
		return "", fmt.Errorf("%w. Url: %s", ErrUnrecognizedURLFormat, raw)
	}

	segment, _, _ = strings.Cut(segment, "?")
	segment, _, _ = strings.Cut(segment, "/")
	fields := strings.Split(segment, ",")
	if len(fields) < 2 {
		return "", fmt.Errorf("%w. Url: %s", ErrMissingCoordinates, raw)
	}

	latitude := strings.TrimSpace(fields[0])
	longitude := strings.TrimSpace(fields[1])
	for _, value := range []string{latitude, longitude} {
		if _, err := strconv.ParseFloat(value, 64); err != nil {
			return "", fmt.Errorf("%w: %q is not a number. Url: %s", ErrMissingCoordinates, value, raw)
		}
	}

	return longitude + "," + latitude, nil
}
