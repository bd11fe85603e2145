// internal/templating/render.go
package templating

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"storefront-notifier/internal/models"
)

// Recognized placeholder tokens. Substitution is literal and case-sensitive.
const (
	TokenName        = "{name}"
	TokenCouponCode  = "{couponCode}"
	TokenCouponValue = "{couponValue}"
	TokenExpiresAt   = "{expiresAt}"
)

var leftoverToken = regexp.MustCompile(`\{[a-zA-Z][a-zA-Z0-9]*\}`)

// Data carries the values available to a template string. Empty fields leave
// their tokens unresolved; unresolved tokens are stripped, never delivered.
type Data struct {
	Name        string
	CouponCode  string
	CouponValue string // pre-formatted, e.g. "15%" or "20 EUR"
	ExpiresAt   string // pre-formatted DD/MM/YYYY
}

// Render substitutes the recognized tokens into s and strips whatever tokens
// remain unresolved.
func Render(s string, data Data) string {
	r := strings.NewReplacer(
		TokenName, data.Name,
		TokenCouponCode, data.CouponCode,
		TokenCouponValue, data.CouponValue,
		TokenExpiresAt, data.ExpiresAt,
	)
	out := r.Replace(s)
	out = leftoverToken.ReplaceAllString(out, "")
	return out
}

// RenderLocalized renders all three locales of a localized template string.
func RenderLocalized(t models.LocalizedText, data Data) models.LocalizedText {
	return models.LocalizedText{
		EN: Render(t.EN, data),
		EL: Render(t.EL, data),
		RU: Render(t.RU, data),
	}
}

// FormatCouponValue renders a coupon's discount as "15%" or "20 EUR".
func FormatCouponValue(c *models.Coupon) string {
	if c == nil || c.Value == nil {
		return ""
	}
	v := strconv.FormatFloat(*c.Value, 'f', -1, 64)
	if c.Type == models.DiscountPercentage {
		return v + "%"
	}
	return fmt.Sprintf("%s %s", v, c.Currency)
}

// FormatExpiry renders a coupon expiry as DD/MM/YYYY.
func FormatExpiry(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("02/01/2006")
}

// DataForCoupon assembles placeholder data for a user and an optional coupon.
func DataForCoupon(user models.User, c *models.Coupon) Data {
	data := Data{Name: user.Name}
	if c != nil {
		data.CouponCode = c.Code
		data.CouponValue = FormatCouponValue(c)
		data.ExpiresAt = FormatExpiry(c.ExpiresAt)
	}
	return data
}
