package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidID(t *testing.T) {
	assert.True(t, IsValidID("txn_a1b2c3d4e5f60718293a4b5c"))
	assert.True(t, IsValidID("itm_deadbeef"))
	assert.False(t, IsValidID("TXN_ABCDEF12"))
	assert.False(t, IsValidID("txn-abcdef12"))
	assert.False(t, IsValidID("txn_"))
	assert.False(t, IsValidID(""))
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "hello", SanitizeString("  hello  ", 100))
	assert.Equal(t, "ab", SanitizeString("ab\x00", 100))
	assert.Equal(t, "abc", SanitizeString("abcdef", 3))
}

func TestValidate_CollectsFailures(t *testing.T) {
	errs := Validate(
		NonEmpty("item_id", ""),
		NonEmpty("buyer_id", "usr_a1b2c3d4"),
		PositiveAmount("amount", 0),
	)
	assert.Len(t, errs, 2)
	assert.True(t, strings.Contains(errs.Error(), "item_id"))
	assert.True(t, strings.Contains(errs.Error(), "amount"))
}

func TestValidate_AllPass(t *testing.T) {
	errs := Validate(
		NonEmpty("buyer_id", "usr_a1b2c3d4"),
		PositiveAmount("amount", 10000),
	)
	assert.Empty(t, errs)
}
