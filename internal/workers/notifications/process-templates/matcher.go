// internal/workers/notifications/process-templates/matcher.go
package processtemplates

import (
	"context"
	"time"

	"storefront-notifier/internal/calendar"
	"storefront-notifier/internal/models"
)

// matchUsers implements the event-date matcher: given the shifted target
// date, it returns the users whose trigger event falls on that date. Holiday
// triggers gate on the calendar condition and then affect everyone; the
// birthday trigger is per-user. Malformed configuration (a custom_date
// template without month/day) yields no matches rather than an error.
func (h *Handler) matchUsers(ctx context.Context, tmpl *models.NotificationTemplate, target time.Time) ([]models.User, error) {
	switch tmpl.Trigger {
	case models.TriggerBirthday:
		users, err := h.users.ListWithBirthDate(ctx)
		if err != nil {
			return nil, err
		}
		var matched []models.User
		for _, u := range users {
			if u.BirthDate == nil {
				continue
			}
			if calendar.MatchesMonthDay(target, u.BirthDate.Month(), u.BirthDate.Day()) {
				matched = append(matched, u)
			}
		}
		return matched, nil

	case models.TriggerChristmas:
		if target.Month() == time.December && target.Day() == 25 {
			return h.users.ListAll(ctx)
		}
		return nil, nil

	case models.TriggerNewYear:
		if target.Month() == time.January && target.Day() == 1 {
			return h.users.ListAll(ctx)
		}
		return nil, nil

	case models.TriggerOrthodoxEaster:
		easter := calendar.OrthodoxEaster(target.Year())
		if target.Month() == easter.Month() && target.Day() == easter.Day() {
			return h.users.ListAll(ctx)
		}
		return nil, nil

	case models.TriggerCustomDate:
		if tmpl.CustomMonth == nil || tmpl.CustomDay == nil {
			return nil, nil
		}
		if target.Month() == time.Month(*tmpl.CustomMonth) && target.Day() == *tmpl.CustomDay {
			return h.users.ListAll(ctx)
		}
		return nil, nil
	}

	return nil, nil
}
