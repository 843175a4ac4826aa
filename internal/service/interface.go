package service

import "context"

// Notifier stops whatever alert is currently playing.
type Notifier interface {
	Acknowledge(ctx context.Context)
}
