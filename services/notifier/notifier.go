package notifier

import (
	"context"
	"fmt"
	"time"

	"sjsage522/pricemonitor/internal/models"
)

// Alert is emitted when an observed price falls below the desired price
type Alert struct {
	Title        string          `json:"title"`
	URL          string          `json:"url"`
	Platform     models.Platform `json:"platform"`
	Price        float64         `json:"price"`
	DesiredPrice float64         `json:"desired_price"`
	ObservedAt   time.Time       `json:"observed_at"`
}

// Message renders the alert as human readable text
func (a Alert) Message() string {
	return fmt.Sprintf("Price alert: %s is now $%.2f (target $%.2f)\n%s", a.Title, a.Price, a.DesiredPrice, a.URL)
}

// Notifier delivers price alerts
type Notifier interface {
	// Notify delivers a single alert
	Notify(ctx context.Context, alert Alert) error

	// Close releases the underlying connection
	Close() error
}

// Trimmer is implemented by notifiers backed by bounded streams
type Trimmer interface {
	TrimStreams(ctx context.Context) error
}
