package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultBillingPolicyIsValid(t *testing.T) {
	policy := DefaultBillingPolicy()

	require.NoError(t, validateBillingPolicy(policy))
	assert.Equal(t, 20, policy.DueGracePeriodDays)
	assert.Equal(t, OverpaymentReject, policy.OverpaymentPolicy)
	assert.Equal(t, "BILL", policy.BillNumberPrefix)
}

func TestValidateBillingPolicy(t *testing.T) {
	base := DefaultBillingPolicy()

	bad := base
	bad.DueGracePeriodDays = 0
	assert.Error(t, validateBillingPolicy(bad))

	bad = base
	bad.OverpaymentPolicy = "refund"
	assert.Error(t, validateBillingPolicy(bad))

	bad = base
	bad.BillNumberPrefix = "  "
	assert.Error(t, validateBillingPolicy(bad))

	ok := base
	ok.OverpaymentPolicy = OverpaymentCredit
	assert.NoError(t, validateBillingPolicy(ok))
}

func TestStaticBillingPolicyHolder(t *testing.T) {
	policy := DefaultBillingPolicy()
	policy.DueGracePeriodDays = 7

	holder := NewStaticBillingPolicyHolder(policy)
	assert.Equal(t, 7, holder.Get().DueGracePeriodDays)
}
