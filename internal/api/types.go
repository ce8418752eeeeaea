package api

import "time"

// MessageResponse carries a human-readable message.
type MessageResponse struct {
	Message string `json:"message"`
}

// HealthResponse reports the state of each dependency.
type HealthResponse struct {
	Status   string            `json:"status"`
	Time     time.Time         `json:"time"`
	Services map[string]string `json:"services"`
}
