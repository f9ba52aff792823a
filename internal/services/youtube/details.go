package youtube

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benvon/tubecompanion/internal/models"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	yt "google.golang.org/api/youtube/v3"
)

// ErrVideoNotFound is returned when YouTube has no such video
var ErrVideoNotFound = errors.New("video not found")

// DetailsFetcher fetches video metadata
type DetailsFetcher interface {
	FetchDetails(ctx context.Context, videoID string) (*models.Video, error)
}

// DataAPIClient fetches metadata through the YouTube Data API v3
type DataAPIClient struct {
	service *yt.Service
	logger  *zap.Logger
}

var _ DetailsFetcher = (*DataAPIClient)(nil)

// NewDataAPIClient creates a Data API client authenticated with an API key
func NewDataAPIClient(ctx context.Context, apiKey string, logger *zap.Logger, opts ...option.ClientOption) (*DataAPIClient, error) {
	if apiKey == "" {
		return nil, errors.New("YouTube API key is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	service, err := yt.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create YouTube service: %w", err)
	}

	return &DataAPIClient{service: service, logger: logger}, nil
}

// FetchDetails returns the snippet of a video as a Video row
func (c *DataAPIClient) FetchDetails(ctx context.Context, videoID string) (*models.Video, error) {
	resp, err := c.service.Videos.List([]string{"snippet"}).Id(videoID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch video details: %w", err)
	}
	if len(resp.Items) == 0 || resp.Items[0].Snippet == nil {
		return nil, fmt.Errorf("%s: %w", videoID, ErrVideoNotFound)
	}

	c.logger.Debug("video_details_fetched", zap.String("video_id", videoID))
	return videoFromSnippet(videoID, resp.Items[0].Snippet), nil
}

func videoFromSnippet(videoID string, snippet *yt.VideoSnippet) *models.Video {
	video := &models.Video{
		ID:           videoID,
		Title:        snippet.Title,
		Description:  snippet.Description,
		ChannelTitle: snippet.ChannelTitle,
		ThumbnailURL: bestThumbnail(snippet.Thumbnails),
	}
	if snippet.PublishedAt != "" {
		if t, err := time.Parse(time.RFC3339, snippet.PublishedAt); err == nil {
			video.PublishedAt = &t
		}
	}
	return video
}

func bestThumbnail(details *yt.ThumbnailDetails) string {
	if details == nil {
		return ""
	}
	for _, thumb := range []*yt.Thumbnail{details.Maxres, details.Standard, details.High, details.Medium, details.Default} {
		if thumb != nil && thumb.Url != "" {
			return thumb.Url
		}
	}
	return ""
}
