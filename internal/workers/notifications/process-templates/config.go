// internal/workers/notifications/process-templates/config.go
package processtemplates

import "time"

const TaskType = "process-templates"

type Config struct {
	Timeout time.Duration
}

func DefaultConfig() *Config {
	return &Config{
		Timeout: 10 * time.Minute,
	}
}
