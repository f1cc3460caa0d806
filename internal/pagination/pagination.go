// Package pagination slices normalised records into pages with numeric
// continuation tokens.
package pagination

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/church-web/sermon-feed-go/internal/models"
)

// ErrInvalidOffset is returned for tokens that are not non-negative integers.
var ErrInvalidOffset = errors.New("invalid continuation offset")

// Paginate returns videos[offset:offset+pageSize].
//
// A continuation token (the next offset) is set only when the page came back
// full. A full last page therefore still yields a token whose next page is
// empty; callers needing an exact end-of-data signal compare against Total.
func Paginate(videos []models.VideoRecord, offset, pageSize int) models.FeedPage {
	if offset < 0 {
		offset = 0
	}
	if pageSize < 0 {
		pageSize = 0
	}

	page := models.FeedPage{
		Videos: []models.VideoRecord{},
		Total:  len(videos),
	}

	if offset >= len(videos) || pageSize == 0 {
		return page
	}

	end := offset + pageSize
	if end > len(videos) {
		end = len(videos)
	}
	page.Videos = append(page.Videos, videos[offset:end]...)

	if len(page.Videos) == pageSize {
		page.ContinuationToken = strconv.Itoa(offset + pageSize)
	}

	return page
}

// ParseOffset reads a continuation token. The empty token is offset 0.
func ParseOffset(token string) (int, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return 0, nil
	}

	n, err := strconv.Atoi(token)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidOffset, token)
	}
	if n < 0 {
		return 0, fmt.Errorf("%w: %d is negative", ErrInvalidOffset, n)
	}
	return n, nil
}

// HasMore reports whether records remain after page, using Total when known.
func HasMore(page models.FeedPage, offset int) bool {
	if page.Total > 0 {
		return offset+len(page.Videos) < page.Total
	}
	return page.ContinuationToken != ""
}
