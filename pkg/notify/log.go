package notify

import (
	"context"
	"log/slog"
)

// LogNotifier writes notifications to a structured logger.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a notifier that logs at info level.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (l *LogNotifier) Name() string { return "log" }

func (l *LogNotifier) Send(ctx context.Context, n Notification) error {
	l.logger.InfoContext(ctx, "alert notification",
		"instance", n.InstanceID,
		"kind", string(n.Kind),
		"warning_type", string(n.WarningType),
		"alert_id", n.AlertID,
		"level", int(n.Level),
		"region", n.Region,
		"title", n.Title,
	)
	return nil
}

// Dispatch hands a notification to every notifier. Failures are logged and do
// not stop delivery to the remaining notifiers.
func Dispatch(ctx context.Context, logger *slog.Logger, notifiers []Notifier, n Notification) {
	for _, nt := range notifiers {
		if err := nt.Send(ctx, n); err != nil {
			logger.Error("failed to send notification",
				"notifier", nt.Name(),
				"instance", n.InstanceID,
				"alert_id", n.AlertID,
				"error", err,
			)
		}
	}
}
