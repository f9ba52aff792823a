package youtube

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/benvon/tubecompanion/internal/models"
	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// ErrTranscriptUnavailable is returned when a video has no caption track
var ErrTranscriptUnavailable = errors.New("transcript unavailable")

const (
	defaultWatchURL     = "https://www.youtube.com/watch"
	playerResponseMark  = "ytInitialPlayerResponse"
	captionTracksPath   = "captions.playerCaptionsTracklistRenderer.captionTracks"
	defaultScrapeAgent  = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
	fallbackCaptionLang = "en"
)

// TranscriptFetcher fetches timed transcript segments
type TranscriptFetcher interface {
	FetchTranscript(ctx context.Context, videoID, language string) ([]models.TranscriptSegment, error)
}

// Scraper reads captions and metadata from the public watch page
type Scraper struct {
	client   *resty.Client
	watchURL string
	logger   *zap.Logger
}

var (
	_ TranscriptFetcher = (*Scraper)(nil)
	_ DetailsFetcher    = (*Scraper)(nil)
)

// ScraperOption configures a Scraper
type ScraperOption func(*Scraper)

// WithWatchURL overrides the watch page URL
func WithWatchURL(u string) ScraperOption {
	return func(s *Scraper) {
		s.watchURL = u
	}
}

// WithTimeout sets the per-request timeout
func WithTimeout(d time.Duration) ScraperOption {
	return func(s *Scraper) {
		s.client.SetTimeout(d)
	}
}

// NewScraper creates a watch page scraper
func NewScraper(logger *zap.Logger, opts ...ScraperOption) *Scraper {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := resty.New().
		SetTimeout(20*time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500*time.Millisecond).
		SetRetryMaxWaitTime(3*time.Second).
		SetHeader("User-Agent", defaultScrapeAgent)

	s := &Scraper{client: client, watchURL: defaultWatchURL, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FetchTranscript returns the caption track closest to language as segments
func (s *Scraper) FetchTranscript(ctx context.Context, videoID, language string) ([]models.TranscriptSegment, error) {
	player, err := s.playerResponse(ctx, videoID, language)
	if err != nil {
		return nil, err
	}

	tracks := gjson.Get(player, captionTracksPath).Array()
	baseURL := pickCaptionTrack(tracks, language)
	if baseURL == "" {
		return nil, fmt.Errorf("%s: %w", videoID, ErrTranscriptUnavailable)
	}

	resp, err := s.client.R().SetContext(ctx).Get(baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch caption track: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("caption track returned status %d", resp.StatusCode())
	}

	segments, err := parseTimedText(resp.Body(), videoID)
	if err != nil {
		return nil, err
	}
	if len(segments) == 0 {
		return nil, fmt.Errorf("%s: %w", videoID, ErrTranscriptUnavailable)
	}

	s.logger.Debug("transcript_fetched",
		zap.String("video_id", videoID),
		zap.Int("segments", len(segments)))
	return segments, nil
}

// FetchDetails reads video metadata from the watch page
func (s *Scraper) FetchDetails(ctx context.Context, videoID string) (*models.Video, error) {
	player, err := s.playerResponse(ctx, videoID, "")
	if err != nil {
		return nil, err
	}

	details := gjson.Get(player, "videoDetails")
	if !details.Exists() {
		return nil, fmt.Errorf("%s: %w", videoID, ErrVideoNotFound)
	}

	video := &models.Video{
		ID:           videoID,
		Title:        details.Get("title").String(),
		Description:  details.Get("shortDescription").String(),
		ChannelTitle: details.Get("author").String(),
	}
	if thumbs := details.Get("thumbnail.thumbnails").Array(); len(thumbs) > 0 {
		video.ThumbnailURL = thumbs[len(thumbs)-1].Get("url").String()
	}
	if published := gjson.Get(player, "microformat.playerMicroformatRenderer.publishDate").String(); published != "" {
		video.PublishedAt = parsePublishDate(published)
	}
	return video, nil
}

func (s *Scraper) playerResponse(ctx context.Context, videoID, language string) (string, error) {
	req := s.client.R().
		SetContext(ctx).
		SetQueryParam("v", videoID)
	if language != "" {
		req.SetHeader("Accept-Language", language)
	}

	resp, err := req.Get(s.watchURL)
	if err != nil {
		return "", fmt.Errorf("failed to fetch watch page: %w", err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return "", fmt.Errorf("%s: %w", videoID, ErrVideoNotFound)
	}
	if resp.IsError() {
		return "", fmt.Errorf("watch page returned status %d", resp.StatusCode())
	}

	player, ok := extractJSONObject(resp.String(), playerResponseMark)
	if !ok || !gjson.Valid(player) {
		return "", fmt.Errorf("%s: player response not found: %w", videoID, ErrTranscriptUnavailable)
	}
	if gjson.Get(player, "playabilityStatus.status").String() == "ERROR" {
		return "", fmt.Errorf("%s: %w", videoID, ErrVideoNotFound)
	}
	return player, nil
}

// extractJSONObject returns the balanced JSON object following marker
func extractJSONObject(page, marker string) (string, bool) {
	idx := strings.Index(page, marker)
	if idx < 0 {
		return "", false
	}
	start := strings.IndexByte(page[idx:], '{')
	if start < 0 {
		return "", false
	}
	start += idx

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(page); i++ {
		c := page[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return page[start : i+1], true
			}
		}
	}
	return "", false
}

// pickCaptionTrack prefers a manual track in language, then any track in language, then English, then the first
func pickCaptionTrack(tracks []gjson.Result, language string) string {
	if len(tracks) == 0 {
		return ""
	}
	matches := func(track gjson.Result, lang string) bool {
		code := track.Get("languageCode").String()
		return lang != "" && (code == lang || strings.HasPrefix(code, lang+"-"))
	}
	for _, lang := range []string{language, fallbackCaptionLang} {
		var generated string
		for _, track := range tracks {
			if !matches(track, lang) {
				continue
			}
			if track.Get("kind").String() != "asr" {
				return track.Get("baseUrl").String()
			}
			if generated == "" {
				generated = track.Get("baseUrl").String()
			}
		}
		if generated != "" {
			return generated
		}
	}
	return tracks[0].Get("baseUrl").String()
}

type timedText struct {
	Texts []struct {
		Start string `xml:"start,attr"`
		Dur   string `xml:"dur,attr"`
		Body  string `xml:",chardata"`
	} `xml:"text"`
}

func parseTimedText(body []byte, videoID string) ([]models.TranscriptSegment, error) {
	var doc timedText
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse caption track: %w", err)
	}

	segments := make([]models.TranscriptSegment, 0, len(doc.Texts))
	for _, t := range doc.Texts {
		text := strings.Join(strings.Fields(html.UnescapeString(t.Body)), " ")
		if text == "" {
			continue
		}
		start, err := strconv.ParseFloat(t.Start, 64)
		if err != nil {
			continue
		}
		dur, _ := strconv.ParseFloat(t.Dur, 64)
		segments = append(segments, models.TranscriptSegment{
			VideoID: videoID,
			Start:   start,
			End:     start + dur,
			Text:    text,
		})
	}
	sort.SliceStable(segments, func(i, j int) bool { return segments[i].Start < segments[j].Start })
	return segments, nil
}

func parsePublishDate(value string) *time.Time {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return &t
		}
	}
	return nil
}

var chapterLinePattern = regexp.MustCompile(`(?m)^[^\S\n]*(?:[-*•][^\S\n]*)?(?:(\d{1,2}):)?(\d{1,2}):([0-5]\d)\b`)

// ParseChapterTimestamps returns the chapter offsets, in seconds, listed in a video description
func ParseChapterTimestamps(description string) []float64 {
	var out []float64
	for _, m := range chapterLinePattern.FindAllStringSubmatch(description, -1) {
		hours, _ := strconv.Atoi(m[1])
		minutes, _ := strconv.Atoi(m[2])
		seconds, _ := strconv.Atoi(m[3])
		out = append(out, float64(hours*3600+minutes*60+seconds))
	}
	sort.Float64s(out)
	return out
}

// MarkChapterStarts flags the segment covering each chapter offset. Segments must be ordered by start.
func MarkChapterStarts(segments []models.TranscriptSegment, description string) []models.TranscriptSegment {
	for _, offset := range ParseChapterTimestamps(description) {
		idx := sort.Search(len(segments), func(i int) bool {
			return segments[i].End > offset
		})
		if idx < len(segments) {
			segments[idx].IsChapterStart = true
		}
	}
	return segments
}

// JoinTranscript flattens segments into prompt text
func JoinTranscript(segments []models.TranscriptSegment) string {
	parts := make([]string, 0, len(segments))
	for _, seg := range segments {
		parts = append(parts, seg.Text)
	}
	return strings.Join(parts, " ")
}
