// internal/workers/notifications/process-templates/handler_test.go
package processtemplates

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-notifier/internal/common/logger"
	"storefront-notifier/internal/coupons"
	"storefront-notifier/internal/models"
	"storefront-notifier/internal/store"
)

// ==========================
// Fakes
// ==========================

type fakeTemplateStore struct {
	templates []models.NotificationTemplate
	lastRuns  map[string]int
}

func (f *fakeTemplateStore) ListActive(_ context.Context) ([]models.NotificationTemplate, error) {
	var out []models.NotificationTemplate
	for _, t := range f.templates {
		if t.Active {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeTemplateStore) GetByID(_ context.Context, id string) (*models.NotificationTemplate, error) {
	for i := range f.templates {
		if f.templates[i].ID == id {
			return &f.templates[i], nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeTemplateStore) UpdateLastRun(_ context.Context, id string, _ time.Time, count int) error {
	if f.lastRuns == nil {
		f.lastRuns = map[string]int{}
	}
	f.lastRuns[id] = count
	return nil
}

type fakeUserStore struct {
	users []models.User
}

func (f *fakeUserStore) ListAll(_ context.Context) ([]models.User, error) {
	return f.users, nil
}

func (f *fakeUserStore) ListWithBirthDate(_ context.Context) ([]models.User, error) {
	var out []models.User
	for _, u := range f.users {
		if u.BirthDate != nil {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *fakeUserStore) GetByID(_ context.Context, id string) (*models.User, error) {
	for i := range f.users {
		if f.users[i].ID == id {
			return &f.users[i], nil
		}
	}
	return nil, store.ErrNotFound
}

type fakeSendLogStore struct {
	rows []models.TemplateSendLog
}

func (f *fakeSendLogStore) ExistsAnyYear(_ context.Context, templateID string) (bool, error) {
	for _, r := range f.rows {
		if r.TemplateID == templateID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeSendLogStore) ListUserIDsForYear(_ context.Context, templateID string, year int) (map[string]bool, error) {
	out := map[string]bool{}
	for _, r := range f.rows {
		if r.TemplateID == templateID && r.Year == year {
			out[r.UserID] = true
		}
	}
	return out, nil
}

func (f *fakeSendLogStore) Create(_ context.Context, l *models.TemplateSendLog) error {
	for _, r := range f.rows {
		if r.TemplateID == l.TemplateID && r.UserID == l.UserID && r.Year == l.Year {
			return store.ErrDuplicate
		}
	}
	f.rows = append(f.rows, *l)
	return nil
}

type fakeNotificationStore struct {
	created     []models.Notification
	failForUser string
}

func (f *fakeNotificationStore) Create(_ context.Context, n *models.Notification) error {
	if f.failForUser != "" && n.UserID == f.failForUser {
		return errors.New("insert failed")
	}
	f.created = append(f.created, *n)
	return nil
}

type fakeCouponStore struct {
	byCode map[string]*models.Coupon
}

func newFakeCouponStore() *fakeCouponStore {
	return &fakeCouponStore{byCode: map[string]*models.Coupon{}}
}

func (f *fakeCouponStore) GetByCode(_ context.Context, code string) (*models.Coupon, error) {
	c, ok := f.byCode[code]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeCouponStore) Create(_ context.Context, c *models.Coupon) error {
	if _, exists := f.byCode[c.Code]; exists {
		return store.ErrDuplicate
	}
	cp := *c
	f.byCode[c.Code] = &cp
	return nil
}

func (f *fakeCouponStore) UpdateTerms(_ context.Context, c *models.Coupon) error {
	cp := *c
	f.byCode[c.Code] = &cp
	return nil
}

type fakeDispatcher struct {
	emails int
}

func (f *fakeDispatcher) NotifyEmail(_ context.Context, _ models.User, _ *models.Notification) {
	f.emails++
}

// ==========================
// Test fixture
// ==========================

type fixture struct {
	handler       *Handler
	templates     *fakeTemplateStore
	users         *fakeUserStore
	sendLogs      *fakeSendLogStore
	notifications *fakeNotificationStore
	couponStore   *fakeCouponStore
	dispatcher    *fakeDispatcher
}

func newFixture(t *testing.T, now time.Time, templates []models.NotificationTemplate, users []models.User) *fixture {
	f := &fixture{
		templates:     &fakeTemplateStore{templates: templates},
		users:         &fakeUserStore{users: users},
		sendLogs:      &fakeSendLogStore{},
		notifications: &fakeNotificationStore{},
		couponStore:   newFakeCouponStore(),
		dispatcher:    &fakeDispatcher{},
	}
	f.handler = NewHandler(DefaultConfig(), f.templates, f.users, f.sendLogs,
		f.notifications, coupons.NewProvisioner(f.couponStore), f.dispatcher, logger.NewTestLogger(t))
	f.handler.now = func() time.Time { return now }
	return f
}

func birthDate(year int, month time.Month, day int) *time.Time {
	d := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return &d
}

func birthdayTemplate() models.NotificationTemplate {
	return models.NotificationTemplate{
		ID:         "tpl-bday",
		Name:       "Birthday 15%",
		Trigger:    models.TriggerBirthday,
		DaysBefore: 0,
		Recurring:  true,
		Active:     true,
		Title:      models.LocalizedText{EN: "Happy birthday {name}!"},
		Message:    models.LocalizedText{EN: "Use {couponCode} for {couponValue} off."},
		Discount: &models.DiscountConfig{
			Type:           models.DiscountPercentage,
			Value:          "15",
			Currency:       "EUR",
			ExpiryMode:     models.ExpiryDuration,
			DurationDays:   30,
			MaxUsesPerUser: 1,
		},
	}
}

// ==========================
// Tests
// ==========================

func TestExecute_SendsAndIsIdempotent(t *testing.T) {
	now := time.Date(2025, time.June, 10, 6, 0, 0, 0, time.UTC)
	users := []models.User{
		{ID: "user-a1b2c3", Name: "Maria", Email: "maria@example.com", BirthDate: birthDate(1990, time.June, 10)},
		{ID: "user-d4e5f6", Name: "Nikos", Email: "nikos@example.com", BirthDate: birthDate(1985, time.November, 2)},
	}
	f := newFixture(t, now, []models.NotificationTemplate{birthdayTemplate()}, users)

	out := f.handler.Execute(context.Background())
	assert.Equal(t, 1, out.Processed)
	assert.Equal(t, 1, out.Sent)
	assert.Equal(t, 1, out.CouponsCreated)
	assert.Empty(t, out.Errors)
	require.Len(t, f.notifications.created, 1)
	assert.Equal(t, "user-a1b2c3", f.notifications.created[0].UserID)
	assert.Equal(t, "Happy birthday Maria!", f.notifications.created[0].Title.EN)
	assert.Equal(t, 1, f.templates.lastRuns["tpl-bday"])
	assert.Equal(t, 1, f.dispatcher.emails)

	// Second run the same day: everything already logged for the year.
	out = f.handler.Execute(context.Background())
	assert.Equal(t, 1, out.Processed)
	assert.Equal(t, 0, out.Sent)
	assert.Equal(t, 0, out.CouponsCreated)
	assert.Empty(t, out.Errors)
	assert.Len(t, f.notifications.created, 1)
	assert.Len(t, f.couponStore.byCode, 1)
	assert.Equal(t, 0, f.templates.lastRuns["tpl-bday"])
}

func TestExecute_RendersCouponPlaceholders(t *testing.T) {
	now := time.Date(2025, time.June, 10, 6, 0, 0, 0, time.UTC)
	users := []models.User{
		{ID: "user-a1b2c3", Name: "Maria", BirthDate: birthDate(1990, time.June, 10)},
	}
	f := newFixture(t, now, []models.NotificationTemplate{birthdayTemplate()}, users)

	f.handler.Execute(context.Background())
	require.Len(t, f.notifications.created, 1)
	msg := f.notifications.created[0].Message.EN
	assert.Equal(t, "Use BDAY-A1B2C3-2025 for 15% off.", msg)
	require.NotNil(t, f.notifications.created[0].CouponID)
}

func TestExecute_LeapDayFallback(t *testing.T) {
	// 2023 is not a leap year: the Feb 29 birthday fires on Feb 28.
	now := time.Date(2023, time.February, 28, 6, 0, 0, 0, time.UTC)
	users := []models.User{
		{ID: "user-leap01", Name: "Ilias", BirthDate: birthDate(2000, time.February, 29)},
	}
	f := newFixture(t, now, []models.NotificationTemplate{birthdayTemplate()}, users)

	out := f.handler.Execute(context.Background())
	assert.Equal(t, 1, out.Sent)

	// On Mar 1 nothing fires.
	f2 := newFixture(t, time.Date(2023, time.March, 1, 6, 0, 0, 0, time.UTC),
		[]models.NotificationTemplate{birthdayTemplate()}, users)
	out = f2.handler.Execute(context.Background())
	assert.Equal(t, 0, out.Sent)
}

func TestExecute_DaysBeforeShiftsTarget(t *testing.T) {
	xmas := models.NotificationTemplate{
		ID:         "tpl-xmas",
		Name:       "Christmas",
		Trigger:    models.TriggerChristmas,
		DaysBefore: 7,
		Recurring:  true,
		Active:     true,
		Title:      models.LocalizedText{EN: "Merry Christmas {name}!"},
		Message:    models.LocalizedText{EN: "Season's greetings."},
	}
	users := []models.User{{ID: "u1", Name: "A"}, {ID: "u2", Name: "B"}}

	// Dec 18 + 7 = Dec 25: fires for everyone.
	f := newFixture(t, time.Date(2024, time.December, 18, 6, 0, 0, 0, time.UTC),
		[]models.NotificationTemplate{xmas}, users)
	out := f.handler.Execute(context.Background())
	assert.Equal(t, 2, out.Sent)
	assert.Equal(t, 0, out.CouponsCreated) // no discount configured

	// Dec 19 + 7 = Dec 26: no match, zero-count run recorded.
	f2 := newFixture(t, time.Date(2024, time.December, 19, 6, 0, 0, 0, time.UTC),
		[]models.NotificationTemplate{xmas}, users)
	out = f2.handler.Execute(context.Background())
	assert.Equal(t, 0, out.Sent)
	assert.Equal(t, 0, f2.templates.lastRuns["tpl-xmas"])
}

func TestExecute_OrthodoxEasterGate(t *testing.T) {
	easter := models.NotificationTemplate{
		ID:        "tpl-easter",
		Name:      "Easter",
		Trigger:   models.TriggerOrthodoxEaster,
		Recurring: true,
		Active:    true,
		Title:     models.LocalizedText{EN: "Christ is risen!"},
		Message:   models.LocalizedText{EN: "Kalo Pascha, {name}."},
	}
	users := []models.User{{ID: "u1", Name: "A"}}

	// Orthodox Easter 2025 is April 20.
	f := newFixture(t, time.Date(2025, time.April, 20, 6, 0, 0, 0, time.UTC),
		[]models.NotificationTemplate{easter}, users)
	out := f.handler.Execute(context.Background())
	assert.Equal(t, 1, out.Sent)

	f2 := newFixture(t, time.Date(2025, time.April, 13, 6, 0, 0, 0, time.UTC),
		[]models.NotificationTemplate{easter}, users)
	out = f2.handler.Execute(context.Background())
	assert.Equal(t, 0, out.Sent)
}

func TestExecute_NonRecurringFiresOnce(t *testing.T) {
	month, day := 6, 10
	custom := models.NotificationTemplate{
		ID:          "tpl-custom",
		Name:        "Anniversary sale",
		Trigger:     models.TriggerCustomDate,
		CustomMonth: &month,
		CustomDay:   &day,
		Recurring:   false,
		Active:      true,
		Title:       models.LocalizedText{EN: "Sale!"},
		Message:     models.LocalizedText{EN: "One day only."},
	}
	users := []models.User{{ID: "u1", Name: "A"}}
	now := time.Date(2025, time.June, 10, 6, 0, 0, 0, time.UTC)

	f := newFixture(t, now, []models.NotificationTemplate{custom}, users)
	out := f.handler.Execute(context.Background())
	assert.Equal(t, 1, out.Sent)

	// A year later the calendar condition matches again, but one send-log
	// row from any year pins the template closed.
	f.handler.now = func() time.Time { return now.AddDate(1, 0, 0) }
	out = f.handler.Execute(context.Background())
	assert.Equal(t, 0, out.Sent)
	assert.Len(t, f.notifications.created, 1)
}

func TestExecute_CustomDateMissingMonthDay(t *testing.T) {
	custom := models.NotificationTemplate{
		ID:        "tpl-broken",
		Name:      "Broken",
		Trigger:   models.TriggerCustomDate,
		Recurring: true,
		Active:    true,
	}
	f := newFixture(t, time.Date(2025, time.June, 10, 6, 0, 0, 0, time.UTC),
		[]models.NotificationTemplate{custom}, []models.User{{ID: "u1"}})

	// Malformed configuration matches nothing instead of failing the run.
	out := f.handler.Execute(context.Background())
	assert.Equal(t, 0, out.Sent)
	assert.Empty(t, out.Errors)
}

func TestExecute_PerUserFailureIsIsolated(t *testing.T) {
	now := time.Date(2025, time.June, 10, 6, 0, 0, 0, time.UTC)
	users := []models.User{
		{ID: "user-a1b2c3", Name: "Maria", BirthDate: birthDate(1990, time.June, 10)},
		{ID: "user-d4e5f6", Name: "Nikos", BirthDate: birthDate(1985, time.June, 10)},
	}
	f := newFixture(t, now, []models.NotificationTemplate{birthdayTemplate()}, users)
	f.notifications.failForUser = "user-a1b2c3"

	out := f.handler.Execute(context.Background())
	assert.Equal(t, 1, out.Sent)
	require.Len(t, out.Errors, 1)
	assert.Contains(t, out.Errors[0], "Birthday 15%")
	assert.Contains(t, out.Errors[0], "user-a1b2c3")

	// The failed user keeps no send-log row and is retried next run.
	f.notifications.failForUser = ""
	out = f.handler.Execute(context.Background())
	assert.Equal(t, 1, out.Sent)
	assert.Empty(t, out.Errors)
}

func TestExecute_SkipsInactiveTemplates(t *testing.T) {
	tmpl := birthdayTemplate()
	tmpl.Active = false
	f := newFixture(t, time.Date(2025, time.June, 10, 6, 0, 0, 0, time.UTC),
		[]models.NotificationTemplate{tmpl},
		[]models.User{{ID: "u1", BirthDate: birthDate(1990, time.June, 10)}})

	out := f.handler.Execute(context.Background())
	assert.Equal(t, 0, out.Processed)
	assert.Equal(t, 0, out.Sent)
}

func TestTestSend(t *testing.T) {
	now := time.Date(2025, time.June, 1, 6, 0, 0, 0, time.UTC)
	users := []models.User{
		{ID: "user-a1b2c3", Name: "Maria", Email: "maria@example.com"},
	}
	f := newFixture(t, now, []models.NotificationTemplate{birthdayTemplate()}, users)

	out, err := f.handler.TestSend(context.Background(), "tpl-bday", "user-a1b2c3")
	require.NoError(t, err)
	assert.NotEmpty(t, out.NotificationID)
	require.NotNil(t, out.CouponID)

	// Test coupons never collide with production codes for the same user/year.
	_, ok := f.couponStore.byCode["BDAY-A1B2C3-2025T"]
	assert.True(t, ok)
	_, ok = f.couponStore.byCode["BDAY-A1B2C3-2025"]
	assert.False(t, ok)

	// The send log stays clean: a later real run still delivers.
	assert.Empty(t, f.sendLogs.rows)
}

func TestTestSend_NotFound(t *testing.T) {
	f := newFixture(t, time.Now(), []models.NotificationTemplate{birthdayTemplate()},
		[]models.User{{ID: "u1"}})

	_, err := f.handler.TestSend(context.Background(), "missing", "u1")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "TEMPLATE_NOT_FOUND"))

	_, err = f.handler.TestSend(context.Background(), "tpl-bday", "missing")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "USER_NOT_FOUND"))
}
