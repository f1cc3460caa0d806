// Package validation checks the query parameters accepted by the sermons API.
package validation

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/church-web/sermon-feed-go/internal/config"
)

// Limits applied to incoming queries.
const (
	MaxResults     = 50
	MaxQueryLength = 100
)

// Sort orders.
const (
	OrderNewest = "newest"
	OrderOldest = "oldest"
)

var (
	channelIDRegex = regexp.MustCompile(`^UC[a-zA-Z0-9_-]{22}$`)
	pageTokenRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]{0,256}$`)
	offsetRegex    = regexp.MustCompile(`^[0-9]{1,9}$`)
)

// ValidationError names the offending parameter.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// RawQuery is the sermons query exactly as it arrived.
type RawQuery struct {
	ChannelID  string
	MaxResults string
	StartIndex string
	Query      string
	Order      string
}

// SermonQuery is a validated RawQuery. Empty fields mean "use the default".
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type SermonQuery struct {
	ChannelID  string
	MaxResults int
	StartIndex string
	Query      string
	Order      string
}

// Validator checks queries for one feed source, since the meaning of
// startIndex differs between RSS and the Data API.
type Validator struct {
	source string
}

// New creates a Validator for source (config.SourceRSS or config.SourceDataAPI).
func New(source string) *Validator {
	return &Validator{source: source}
}

// ValidateQuery trims and checks every parameter of raw.
func (v *Validator) ValidateQuery(raw RawQuery) (SermonQuery, error) {
	var q SermonQuery

	q.ChannelID = strings.TrimSpace(raw.ChannelID)
	if q.ChannelID != "" && !v.IsValidChannelID(q.ChannelID) {
		return q, &ValidationError{Field: "channelId", Message: "must look like UC followed by 22 characters"}
	}

	if s := strings.TrimSpace(raw.MaxResults); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > MaxResults {
			return q, &ValidationError{Field: "maxResults", Message: fmt.Sprintf("must be an integer between 1 and %d", MaxResults)}
		}
		q.MaxResults = n
	}

	q.StartIndex = strings.TrimSpace(raw.StartIndex)
	if !v.IsValidStartIndex(q.StartIndex) {
		if v.source == config.SourceDataAPI {
			return q, &ValidationError{Field: "startIndex", Message: "must be a page token"}
		}
		return q, &ValidationError{Field: "startIndex", Message: "must be a non-negative integer"}
	}

	q.Query = strings.TrimSpace(raw.Query)
	if utf8.RuneCountInString(q.Query) > MaxQueryLength {
		return q, &ValidationError{Field: "q", Message: fmt.Sprintf("must be at most %d characters", MaxQueryLength)}
	}

	q.Order = strings.ToLower(strings.TrimSpace(raw.Order))
	if q.Order != "" && !IsValidOrder(q.Order) {
		return q, &ValidationError{Field: "order", Message: "must be newest or oldest"}
	}

	return q, nil
}

// IsValidChannelID reports whether channelID is a UC-prefixed 24-character channel id.
func (v *Validator) IsValidChannelID(channelID string) bool {
	return channelIDRegex.MatchString(channelID)
}

// IsValidStartIndex accepts the empty string for every source.
func (v *Validator) IsValidStartIndex(startIndex string) bool {
	if startIndex == "" {
		return true
	}
	if v.source == config.SourceDataAPI {
		return pageTokenRegex.MatchString(startIndex)
	}
	return offsetRegex.MatchString(startIndex)
}

// IsValidOrder reports whether order is newest or oldest.
func IsValidOrder(order string) bool {
	return order == OrderNewest || order == OrderOldest
}
