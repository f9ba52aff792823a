package youtube

import (
	"errors"
	"regexp"
	"strings"
)

var (
	// ErrInvalidURL is returned when no video ID can be extracted
	ErrInvalidURL = errors.New("invalid YouTube URL")
	// ErrInvalidVideoID is returned for IDs that are not shaped like a video ID
	ErrInvalidVideoID = errors.New("invalid video ID")
)

// MaxVideoIDLength bounds accepted video IDs
const MaxVideoIDLength = 64

var (
	liveURLPattern = regexp.MustCompile(`^(https?://)?(www\.|m\.)?youtube\.com/live/([A-Za-z0-9_-]{1,64})(?:[^A-Za-z0-9_-]|$)`)
	videoIDPattern = regexp.MustCompile(
		`(?:youtube\.com/(?:watch\?(?:[^#]*&)?v=|embed/|v/|shorts/|live/)|youtu\.be/)([A-Za-z0-9_-]{1,64})(?:[^A-Za-z0-9_-]|$)`)
	bareIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)
)

// NormalizeURL rewrites live-stream links to the canonical watch form
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if m := liveURLPattern.FindStringSubmatch(raw); m != nil {
		return "https://www.youtube.com/watch?v=" + m[3]
	}
	return raw
}

// ExtractVideoID returns the video ID of a YouTube link
func ExtractVideoID(raw string) (string, error) {
	m := videoIDPattern.FindStringSubmatch(NormalizeURL(raw))
	if m == nil {
		return "", ErrInvalidURL
	}
	return m[1], nil
}

// ValidVideoID reports whether id has the shape of a video ID
func ValidVideoID(id string) bool {
	return bareIDPattern.MatchString(id)
}

// WatchURL returns the canonical watch URL of a video
func WatchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + videoID
}
