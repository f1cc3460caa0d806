package normalize

import (
	"fmt"
	"regexp"
	"strconv"
)

var isoDurationRe = regexp.MustCompile(`^PT(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?$`)

// ParseDuration converts an ISO 8601 "PT#H#M#S" duration to seconds.
// Absent components count as zero; anything else reports ok=false.
func ParseDuration(iso string) (seconds int, ok bool) {
	m := isoDurationRe.FindStringSubmatch(iso)
	if m == nil {
		return 0, false
	}

	var parts [3]int
	for i := range parts {
		if m[i+1] == "" {
			continue
		}
		n, err := strconv.Atoi(m[i+1])
		if err != nil {
			return 0, false
		}
		parts[i] = n
	}

	return parts[0]*3600 + parts[1]*60 + parts[2], true
}

// FormatDuration renders an ISO 8601 duration as H:MM:SS, or M:SS under an hour.
// Malformed input renders as "0:00".
func FormatDuration(iso string) string {
	seconds, ok := ParseDuration(iso)
	if !ok {
		return "0:00"
	}
	return FormatSeconds(seconds)
}

// FormatSeconds renders a second count the way FormatDuration does.
func FormatSeconds(total int) string {
	if total < 0 {
		total = 0
	}
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60

	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// FormatViewCount abbreviates large counts: 2300000 -> "2.3M", 1500 -> "1.5K", 999 -> "999".
func FormatViewCount(n int64) string {
	switch {
	case n >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	case n >= 1_000:
		return fmt.Sprintf("%.1fK", float64(n)/1_000)
	default:
		return strconv.FormatInt(n, 10)
	}
}
