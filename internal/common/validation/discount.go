// internal/common/validation/discount.go
package validation

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// discountConfigSchema constrains the discount_config JSON column of a
// notification template. Templates are validated at save time by the admin
// API; the scheduler re-checks on load so a malformed row degrades to
// "no discount" instead of corrupting a run.
const discountConfigSchema = `{
	"type": "object",
	"properties": {
		"type":           {"type": "string", "enum": ["percentage", "fixed"]},
		"value":          {"type": "string"},
		"currency":       {"type": "string"},
		"minPurchase":    {"type": "string"},
		"expiryMode":     {"type": "string", "enum": ["duration", "fixed"]},
		"durationDays":   {"type": "integer", "minimum": 0},
		"expiresAt":      {"type": "string"},
		"maxUsesPerUser": {"type": "integer", "minimum": 0},
		"productIds":     {"type": "array", "items": {"type": "string"}},
		"allowOnSale":    {"type": "boolean"}
	},
	"required": ["type", "value", "expiryMode"]
}`

var discountSchemaLoader = gojsonschema.NewStringLoader(discountConfigSchema)

// ValidateDiscountConfig checks a raw discount_config document against the
// schema and returns a descriptive error when it does not conform.
func ValidateDiscountConfig(raw []byte) error {
	result, err := gojsonschema.Validate(discountSchemaLoader, gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("discount config validation: %w", err)
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("invalid discount config: %s", strings.Join(msgs, "; "))
}
