// Package instance names the running process for logs and lock owners.
package instance

import "github.com/abdulbasit0-UI/storefront-backend/pkg/env"

// GetID returns WORKER_ID, then the platform DYNO name, then HOSTNAME, and
// fallback when none is set.
func GetID(fallback string) string {
	if id := env.First("WORKER_ID", "DYNO", "HOSTNAME"); id != "" {
		return id
	}
	return fallback
}
