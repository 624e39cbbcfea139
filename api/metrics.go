package api

import (
	"time"

	log "github.com/sirupsen/logrus"
)

type cardRequestMetrics struct {
	logger           *log.Logger
	start            time.Time
	authDuration     time.Duration
	filterDuration   time.Duration
	encodeDuration   time.Duration
	queryProvided    bool
	categoryProvided bool
	cardsReturned    int
	errorStage       string
}

func newCardRequestMetrics(logger *log.Logger) *cardRequestMetrics {
	return &cardRequestMetrics{
		logger: logger,
		start:  time.Now(),
	}
}

func (m *cardRequestMetrics) ObserveAuth(duration time.Duration) {
	if duration <= 0 {
		return
	}
	m.authDuration = duration
}

func (m *cardRequestMetrics) ObserveFilter(duration time.Duration) {
	if duration <= 0 {
		return
	}
	m.filterDuration = duration
}

func (m *cardRequestMetrics) ObserveEncode(duration time.Duration) {
	if duration <= 0 {
		return
	}
	m.encodeDuration = duration
}

func (m *cardRequestMetrics) SetQueryProvided(provided bool) {
	m.queryProvided = provided
}

func (m *cardRequestMetrics) SetCategoryProvided(provided bool) {
	m.categoryProvided = provided
}

func (m *cardRequestMetrics) SetCardsReturned(count int) {
	if count < 0 {
		count = 0
	}
	m.cardsReturned = count
}

func (m *cardRequestMetrics) SetErrorStage(stage string) {
	if stage == "" {
		return
	}
	m.errorStage = stage
}

func (m *cardRequestMetrics) Log(status int, err error) {
	if m == nil || m.logger == nil {
		return
	}

	fields := log.Fields{
		"route":             "/api/cards",
		"status":            status,
		"total_ms":          durationToMillis(time.Since(m.start)),
		"query_provided":    m.queryProvided,
		"category_provided": m.categoryProvided,
		"cards_returned":    m.cardsReturned,
	}

	if m.authDuration > 0 {
		fields["auth_ms"] = durationToMillis(m.authDuration)
	}
	if m.filterDuration > 0 {
		fields["filter_ms"] = durationToMillis(m.filterDuration)
	}
	if m.encodeDuration > 0 {
		fields["encode_ms"] = durationToMillis(m.encodeDuration)
	}
	if m.errorStage != "" {
		fields["error_stage"] = m.errorStage
	}
	if err != nil {
		fields["error"] = err.Error()
	}

	m.logger.WithFields(fields).Info("cards.request.metrics")
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}
