// internal/workers/notifications/reminder-sweep/config.go
package remindersweep

import "time"

const TaskType = "reminder-sweep"

type Config struct {
	Timeout time.Duration
	// Window is how far ahead of coupon expiry a reminder fires.
	Window time.Duration
}

func DefaultConfig() *Config {
	return &Config{
		Timeout: 10 * time.Minute,
		Window:  48 * time.Hour,
	}
}
