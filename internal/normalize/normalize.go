// Package normalize turns parsed feed entries into display-ready video records.
package normalize

import (
	"sort"
	"strings"

	"github.com/church-web/sermon-feed-go/internal/models"
	"github.com/church-web/sermon-feed-go/internal/parser"
)

// Sort orders accepted by Order.
const (
	OrderNewest = "newest"
	OrderOldest = "oldest"
)

// Dedupe keeps the first occurrence of every video id, preserving input order.
func Dedupe(raw []parser.RawVideo) []parser.RawVideo {
	seen := make(map[string]struct{}, len(raw))
	out := make([]parser.RawVideo, 0, len(raw))
	for _, v := range raw {
		if _, ok := seen[v.ID]; ok {
			continue
		}
		seen[v.ID] = struct{}{}
		out = append(out, v)
	}
	return out
}

// Normalize dedupes raw entries and converts them to VideoRecords, newest first.
// Records without a publish time sort last; ties keep input order.
func Normalize(raw []parser.RawVideo) []models.VideoRecord {
	unique := Dedupe(raw)
	records := make([]models.VideoRecord, 0, len(unique))
	for _, v := range unique {
		if v.ID == "" {
			continue
		}
		records = append(records, Record(v))
	}
	return Order(records, OrderNewest)
}

// Record converts a single parsed entry.
func Record(v parser.RawVideo) models.VideoRecord {
	rec := models.VideoRecord{
		ID:            v.ID,
		Title:         CleanTitle(v.Title),
		OriginalTitle: v.Title,
		Description:   v.Description,
		PublishedAt:   v.PublishedAt.UTC(),
		ThumbnailURL:  ResolveThumbnail(v.Thumbnails, v.ID),
	}

	if v.Duration != "" {
		secs, ok := ParseDuration(v.Duration)
		if ok {
			rec.DurationSeconds = &secs
		}
		rec.Duration = FormatDuration(v.Duration)
	}

	if v.ViewCount != nil {
		n := int64(*v.ViewCount)
		rec.ViewCount = &n
		rec.Views = FormatViewCount(n)
	}

	return rec
}

// Order returns records sorted by publish time. Unknown orders fall back to newest.
func Order(records []models.VideoRecord, order string) []models.VideoRecord {
	out := make([]models.VideoRecord, len(records))
	copy(out, records)

	oldest := order == OrderOldest
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].PublishedAt, out[j].PublishedAt
		switch {
		case a.IsZero() && b.IsZero():
			return false
		case a.IsZero():
			return false
		case b.IsZero():
			return true
		case oldest:
			return a.Before(b)
		default:
			return a.After(b)
		}
	})
	return out
}

// Filter keeps records whose title contains query, case-insensitively.
// The cleaned and the original title are both searched.
func Filter(records []models.VideoRecord, query string) []models.VideoRecord {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return records
	}

	out := make([]models.VideoRecord, 0, len(records))
	for _, r := range records {
		if strings.Contains(strings.ToLower(r.Title), q) ||
			strings.Contains(strings.ToLower(r.OriginalTitle), q) {
			out = append(out, r)
		}
	}
	return out
}
