package notifier

import (
	"context"

	"sjsage522/pricemonitor/logger"
)

// LogNotifier writes alerts to the structured log. Used when Redis is not configured.
type LogNotifier struct {
	log *logger.Logger
}

// NewLogNotifier creates a notifier backed by the notifier component logger
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{log: logger.ForNotifier()}
}

// Notify logs the alert
func (n *LogNotifier) Notify(_ context.Context, alert Alert) error {
	n.log.Info().
		Str("title", alert.Title).
		Str("url", alert.URL).
		Str("platform", alert.Platform.String()).
		Float64("price", alert.Price).
		Float64("desired_price", alert.DesiredPrice).
		Msg(alert.Message())
	return nil
}

// Close is a no-op
func (n *LogNotifier) Close() error {
	return nil
}
