// internal/workers/notifications/process-templates/models.go
package processtemplates

// Output is the run summary surfaced to the periodic trigger and operators.
type Output struct {
	Processed      int      `json:"processed"`
	Sent           int      `json:"sent"`
	CouponsCreated int      `json:"couponsCreated"`
	Errors         []string `json:"errors"`
}

// TestSendOutput is the result of a single-user preview send.
type TestSendOutput struct {
	CouponID       *string `json:"couponId,omitempty"`
	NotificationID string  `json:"notificationId"`
}
