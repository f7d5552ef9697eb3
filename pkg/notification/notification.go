// Package notification delivers short user-facing notices to stdout and ntfy.
package notification

import "github.com/Veraticus/awakeguard/pkg/types"

// Notification represents a notification to be sent.
type Notification = types.Notification

// Notifier sends notifications.
type Notifier interface {
	Send(notification Notification) error
}
