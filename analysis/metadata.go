package analysis

import (
	"path/filepath"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// UnknownField fills artist or track when the filename does not provide it
const UnknownField = "Unknown"

// TrackInfo is the artist and title parsed from a file name
type TrackInfo struct {
	Artist string `json:"artist"`
	Track  string `json:"track"`
}

// TrackInfoFromFilename parses "Artist - Track.ext" names as written by
// common download tools. Anything else yields Unknown for the artist and
// the cleaned base name for the track.
func TrackInfoFromFilename(path string) TrackInfo {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = norm.NFC.String(base)

	artist, track, found := strings.Cut(base, " - ")
	if !found {
		return TrackInfo{Artist: UnknownField, Track: orUnknown(cleanName(base))}
	}

	return TrackInfo{
		Artist: orUnknown(cleanName(artist)),
		Track:  orUnknown(cleanName(track)),
	}
}

// cleanName turns underscores into spaces and collapses whitespace. Names
// written entirely in lower case are title-cased.
func cleanName(s string) string {
	s = strings.ReplaceAll(s, "_", " ")
	s = strings.Join(strings.Fields(s), " ")
	if s != "" && s == strings.ToLower(s) {
		s = cases.Title(language.Und).String(s)
	}
	return s
}

func orUnknown(s string) string {
	if s == "" || s == "." {
		return UnknownField
	}
	return s
}
