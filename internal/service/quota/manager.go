// Package quota tracks YouTube Data API units spent per quota day.
package quota

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/church-web/sermon-feed-go/pkg/logger"
)

// Defaults match a fresh Data API v3 project.
const (
	DefaultDailyLimit       = 10000
	DefaultThresholdPercent = 90
)

// ErrExhausted is returned when a request would cross the threshold.
var ErrExhausted = errors.New("YouTube Data API daily quota threshold reached")

// Info is a snapshot of the current quota day.
type Info struct {
	Day       string `json:"day"`
	Used      int    `json:"used"`
	Limit     int    `json:"limit"`
	Threshold int    `json:"threshold"`
	Remaining int    `json:"remaining"`
}

// Manager handles YouTube API quota management. The quota day rolls over at
// midnight Pacific time, as it does on Google's side.
type Manager struct {
	dailyLimit       int
	thresholdPercent int // Stop spending when this % of quota is used
	loc              *time.Location
	now              func() time.Time

	mu   sync.Mutex
	day  string
	used int
}

// NewManager creates a new quota manager.
func NewManager(dailyLimit int, thresholdPercent int) *Manager {
	if dailyLimit <= 0 {
		dailyLimit = DefaultDailyLimit
	}
	if thresholdPercent <= 0 || thresholdPercent > 100 {
		thresholdPercent = DefaultThresholdPercent
	}

	loc, err := time.LoadLocation("America/Los_Angeles")
	if err != nil {
		loc = time.UTC
	}

	return &Manager{
		dailyLimit:       dailyLimit,
		thresholdPercent: thresholdPercent,
		loc:              loc,
		now:              time.Now,
	}
}

// Reserve spends cost units if that keeps usage within the threshold.
// A nil Manager never refuses.
func (m *Manager) Reserve(cost int, operation string) (bool, Info) {
	if m == nil {
		return true, Info{}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.rollover()

	threshold := m.threshold()
	if m.used+cost > threshold {
		logger.L().Warn("Quota threshold reached",
			zap.String("operation", operation),
			zap.Int("cost", cost),
			zap.Int("used", m.used),
			zap.Int("threshold", threshold),
		)
		return false, m.info()
	}

	m.used += cost
	logger.L().Debug("Quota used",
		zap.String("operation", operation),
		zap.Int("cost", cost),
		zap.Int("used", m.used),
		zap.Int("limit", m.dailyLimit),
	)
	return true, m.info()
}

// Info returns current quota information.
func (m *Manager) Info() Info {
	if m == nil {
		return Info{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rollover()
	return m.info()
}

// IsExhausted checks if quota threshold has been reached.
func (m *Manager) IsExhausted() bool {
	info := m.Info()
	return m != nil && info.Remaining == 0
}

func (m *Manager) threshold() int {
	return (m.dailyLimit * m.thresholdPercent) / 100
}

func (m *Manager) rollover() {
	day := m.now().In(m.loc).Format(time.DateOnly)
	if day != m.day {
		m.day = day
		m.used = 0
	}
}

func (m *Manager) info() Info {
	threshold := m.threshold()
	remaining := threshold - m.used
	if remaining < 0 {
		remaining = 0
	}
	return Info{
		Day:       m.day,
		Used:      m.used,
		Limit:     m.dailyLimit,
		Threshold: threshold,
		Remaining: remaining,
	}
}
