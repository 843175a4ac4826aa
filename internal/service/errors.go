package service

import "errors"

var (
	ErrAgentRunning = errors.New("agent is already running")
	ErrAgentStopped = errors.New("agent is stopped")
)
