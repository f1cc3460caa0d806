package parser

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/youtube/v3"

	"github.com/church-web/sermon-feed-go/internal/models"
	"github.com/church-web/sermon-feed-go/pkg/logger"
)

// PlaylistPage is one page of an uploads playlist.
type PlaylistPage struct {
	VideoIDs      []string
	NextPageToken string
	TotalResults  int64
}

// ParseChannelUploads extracts the uploads playlist id from a channels.list response.
func ParseChannelUploads(raw []byte) (string, error) {
	var resp youtube.ChannelListResponse
	if err := decodeJSON(raw, &resp); err != nil {
		return "", err
	}

	if len(resp.Items) == 0 || resp.Items[0] == nil {
		return "", ErrChannelNotFound
	}

	ch := resp.Items[0]
	if ch.ContentDetails == nil || ch.ContentDetails.RelatedPlaylists == nil ||
		ch.ContentDetails.RelatedPlaylists.Uploads == "" {
		return "", ErrNoUploadsPlaylist
	}

	return ch.ContentDetails.RelatedPlaylists.Uploads, nil
}

// ParsePlaylistPage extracts ordered video ids and the next page token from a
// playlistItems.list response. Duplicate and empty ids are skipped.
func ParsePlaylistPage(raw []byte) (*PlaylistPage, error) {
	var resp youtube.PlaylistItemListResponse
	if err := decodeJSON(raw, &resp); err != nil {
		return nil, err
	}

	page := &PlaylistPage{
		VideoIDs:      make([]string, 0, len(resp.Items)),
		NextPageToken: resp.NextPageToken,
	}
	if resp.PageInfo != nil {
		page.TotalResults = resp.PageInfo.TotalResults
	}

	seen := make(map[string]struct{}, len(resp.Items))
	for _, item := range resp.Items {
		id := playlistItemVideoID(item)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		page.VideoIDs = append(page.VideoIDs, id)
	}

	return page, nil
}

func playlistItemVideoID(item *youtube.PlaylistItem) string {
	if item == nil {
		return ""
	}
	if item.ContentDetails != nil && item.ContentDetails.VideoId != "" {
		return item.ContentDetails.VideoId
	}
	if item.Snippet != nil && item.Snippet.ResourceId != nil {
		return item.Snippet.ResourceId.VideoId
	}
	return ""
}

// ParseVideoList converts a videos.list response (snippet, contentDetails,
// statistics) into RawVideos in response order. It returns the number of
// items dropped for lacking an id.
func ParseVideoList(raw []byte) ([]RawVideo, int, error) {
	var resp youtube.VideoListResponse
	if err := decodeJSON(raw, &resp); err != nil {
		return nil, 0, err
	}

	videos := make([]RawVideo, 0, len(resp.Items))
	dropped := 0

	for i, item := range resp.Items {
		if item == nil || strings.TrimSpace(item.Id) == "" {
			dropped++
			logger.L().Warn("Dropping video item without id", zap.Int("index", i))
			continue
		}
		videos = append(videos, videoFromAPI(item))
	}

	return videos, dropped, nil
}

func videoFromAPI(item *youtube.Video) RawVideo {
	v := RawVideo{
		Source: models.SourceDataAPI,
		ID:     strings.TrimSpace(item.Id),
		Title:  UntitledVideo,
	}

	if s := item.Snippet; s != nil {
		v.Title = titleOrDefault(strings.TrimSpace(s.Title))
		v.Description = s.Description
		if s.PublishedAt != "" {
			if t, err := time.Parse(time.RFC3339, s.PublishedAt); err == nil {
				v.PublishedAt = t.UTC()
			} else {
				logger.L().Debug("Unparseable publishedAt",
					zap.String("videoId", v.ID),
					zap.String("publishedAt", s.PublishedAt),
				)
			}
		}
		v.Thumbnails = thumbnailCandidates(s.Thumbnails)
	}

	if item.ContentDetails != nil {
		v.Duration = item.ContentDetails.Duration
	}

	if item.Statistics != nil {
		n := item.Statistics.ViewCount
		v.ViewCount = &n
	}

	return v
}

// thumbnailCandidates orders the thumbnail tiers from largest to smallest.
func thumbnailCandidates(t *youtube.ThumbnailDetails) []string {
	if t == nil {
		return nil
	}

	tiers := []*youtube.Thumbnail{t.Maxres, t.Standard, t.High, t.Medium, t.Default}
	out := make([]string, 0, len(tiers))
	for _, tier := range tiers {
		if tier != nil && tier.Url != "" {
			out = append(out, tier.Url)
		}
	}
	return out
}

type apiErrorReply struct {
	Error *googleapi.Error `json:"error"`
}

// ParseAPIError decodes the Data API error envelope. It returns nil when raw
// is not one.
func ParseAPIError(raw []byte) *googleapi.Error {
	var reply apiErrorReply
	if err := json.Unmarshal(raw, &reply); err != nil || reply.Error == nil {
		return nil
	}
	if reply.Error.Code == 0 && reply.Error.Message == "" {
		return nil
	}
	reply.Error.Body = string(raw)
	return reply.Error
}

// APIErrorReason returns the first machine-readable reason of a Data API
// error (e.g. "quotaExceeded"), or "".
func APIErrorReason(apiErr *googleapi.Error) string {
	if apiErr == nil {
		return ""
	}
	for _, item := range apiErr.Errors {
		if item.Reason != "" {
			return item.Reason
		}
	}
	return ""
}

func decodeJSON(raw []byte, dst any) error {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return fmt.Errorf("%w: empty document", ErrMalformedFeed)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedFeed, err)
	}
	// an error envelope decodes cleanly into any list response
	if apiErr := ParseAPIError(raw); apiErr != nil {
		return fmt.Errorf("%w: %w", ErrMalformedFeed, apiErr)
	}
	return nil
}
