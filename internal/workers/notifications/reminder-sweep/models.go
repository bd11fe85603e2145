// internal/workers/notifications/reminder-sweep/models.go
package remindersweep

// Output is the sweep summary surfaced to the periodic trigger and operators.
type Output struct {
	Scanned int      `json:"scanned"`
	Sent    int      `json:"sent"`
	Errors  []string `json:"errors"`
}
