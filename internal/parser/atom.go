package parser

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"
	"go.uber.org/zap"

	"github.com/church-web/sermon-feed-go/internal/models"
	"github.com/church-web/sermon-feed-go/pkg/logger"
)

const guidVideoPrefix = "yt:video:"

// RSSFeed is the parsed channel feed.
type RSSFeed struct {
	Title   string
	Videos  []RawVideo
	Dropped int
}

// ParseRSSFeed parses a channel videos.xml document (Atom, or RSS as a courtesy).
// A document that cannot be parsed fails as a whole with ErrMalformedFeed;
// individual entries with no resolvable video id are dropped.
func ParseRSSFeed(raw []byte) (*RSSFeed, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrMalformedFeed)
	}

	// gofeed recovers from broken markup, so structure is checked first.
	if err := checkWellFormed(raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedFeed, err)
	}

	feed, err := gofeed.NewParser().Parse(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedFeed, err)
	}

	out := &RSSFeed{
		Title:  feed.Title,
		Videos: make([]RawVideo, 0, len(feed.Items)),
	}

	for i, item := range feed.Items {
		if item == nil {
			continue
		}

		id := entryVideoID(item)
		if id == "" {
			out.Dropped++
			logger.L().Warn("Dropping feed entry without video id",
				zap.Int("index", i),
				zap.String("title", item.Title),
			)
			continue
		}

		v := RawVideo{
			Source: models.SourceRSS,
			ID:     id,
			Title:  titleOrDefault(strings.TrimSpace(item.Title)),
		}

		switch {
		case item.PublishedParsed != nil:
			v.PublishedAt = item.PublishedParsed.UTC()
		case item.UpdatedParsed != nil:
			v.PublishedAt = item.UpdatedParsed.UTC()
		}

		if thumb := mediaThumbnail(item.Extensions); thumb != "" {
			v.Thumbnails = []string{thumb}
		}
		if item.Description != "" {
			v.Description = item.Description
		} else {
			v.Description = mediaDescription(item.Extensions)
		}

		out.Videos = append(out.Videos, v)
	}

	return out, nil
}

// entryVideoID reads yt:videoId, falling back to a "yt:video:<id>" entry id.
func entryVideoID(item *gofeed.Item) string {
	if id := extensionValue(item.Extensions, "yt", "videoId"); id != "" {
		return id
	}
	if strings.HasPrefix(item.GUID, guidVideoPrefix) {
		return strings.TrimSpace(strings.TrimPrefix(item.GUID, guidVideoPrefix))
	}
	return ""
}

func extensionValue(exts ext.Extensions, prefix, name string) string {
	values := exts[prefix][name]
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0].Value)
}

func mediaGroup(exts ext.Extensions) *ext.Extension {
	groups := exts["media"]["group"]
	if len(groups) == 0 {
		return nil
	}
	return &groups[0]
}

func mediaThumbnail(exts ext.Extensions) string {
	group := mediaGroup(exts)
	if group == nil {
		return ""
	}
	thumbs := group.Children["thumbnail"]
	if len(thumbs) == 0 {
		return ""
	}
	return strings.TrimSpace(thumbs[0].Attrs["url"])
}

func mediaDescription(exts ext.Extensions) string {
	group := mediaGroup(exts)
	if group == nil {
		return ""
	}
	desc := group.Children["description"]
	if len(desc) == 0 {
		return ""
	}
	return strings.TrimSpace(desc[0].Value)
}

// checkWellFormed reads every token of raw with a strict decoder. Mismatched
// or unclosed tags fail here even when a lenient parser would return entries.
func checkWellFormed(raw []byte) error {
	d := xml.NewDecoder(bytes.NewReader(raw))
	d.Strict = true
	d.Entity = xml.HTMLEntity
	d.CharsetReader = func(_ string, input io.Reader) (io.Reader, error) {
		return input, nil
	}
	for {
		if _, err := d.Token(); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}
