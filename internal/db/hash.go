package db

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/church-web/sermon-feed-go/internal/models"
)

// GenerateContentHash generates a SHA-256 hash of the given content.
func GenerateContentHash(content string) string {
	hash := sha256.Sum256([]byte(content))
	return hex.EncodeToString(hash[:])
}

// FeedContentHash fingerprints a page by its ordered ids and titles, so a
// retitled or reordered upload changes the hash but a new fetch time does not.
func FeedContentHash(videos []models.VideoRecord) string {
	var b strings.Builder
	for _, v := range videos {
		b.WriteString(v.ID)
		b.WriteByte(0)
		b.WriteString(v.Title)
		b.WriteByte('\n')
	}
	return GenerateContentHash(b.String())
}
