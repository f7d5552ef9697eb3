package notification

import (
	"fmt"
	"io"
	"os"
)

// StdoutNotifier prints notifications to a writer, stdout by default
type StdoutNotifier struct {
	w io.Writer
}

// NewStdoutNotifier creates a new stdout notifier
func NewStdoutNotifier() *StdoutNotifier {
	return &StdoutNotifier{}
}

// NewWriterNotifier creates a notifier that prints to w
func NewWriterNotifier(w io.Writer) *StdoutNotifier {
	return &StdoutNotifier{w: w}
}

// Send prints the notification
func (n *StdoutNotifier) Send(notification Notification) error {
	w := n.w
	if w == nil {
		w = os.Stdout
	}
	_, err := fmt.Fprintf(w, "[NOTIFICATION] %s: %s (Tag: %s)\n",
		notification.Title,
		notification.Message,
		notification.Tag)
	return err
}
