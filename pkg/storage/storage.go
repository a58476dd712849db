package storage

import (
	"context"
	"errors"

	"github.com/ogulcanaydogan/norway-alerts/pkg/model"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Storage persists poll results, change-detection state and notifications.
type Storage interface {
	// SaveSnapshot replaces the last-known-good alert list of an instance.
	SaveSnapshot(ctx context.Context, snap *model.Snapshot) error

	// LatestSnapshot returns the stored snapshot of an instance, or ErrNotFound.
	LatestSnapshot(ctx context.Context, instanceID string) (*model.Snapshot, error)

	// SaveAlertStates replaces the remembered alert states of an instance.
	SaveAlertStates(ctx context.Context, instanceID string, states []model.AlertState) error

	// LoadAlertStates returns the remembered alert states of an instance.
	LoadAlertStates(ctx context.Context, instanceID string) ([]model.AlertState, error)

	// RecordNotification stores a detected notification.
	RecordNotification(ctx context.Context, n *model.Notification) error

	// QueryNotifications returns notifications matching the filter, newest first.
	QueryNotifications(ctx context.Context, filter model.NotificationFilter) ([]model.Notification, error)

	// Close releases database resources.
	Close() error
}
