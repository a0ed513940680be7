package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerifySignature(t *testing.T) {
	secret := "shhh"
	sig := Sign(secret, "order_abc", "pay_123")

	assert.True(t, VerifySignature(secret, "order_abc", "pay_123", sig))

	// Any tampered component must fail closed.
	assert.False(t, VerifySignature(secret, "order_abc", "pay_123", sig+"00"))
	assert.False(t, VerifySignature(secret, "order_abc", "pay_999", sig))
	assert.False(t, VerifySignature(secret, "order_xyz", "pay_123", sig))
	assert.False(t, VerifySignature("wrong", "order_abc", "pay_123", sig))
	assert.False(t, VerifySignature(secret, "order_abc", "pay_123", ""))
}

func TestSignDeterministic(t *testing.T) {
	assert.Equal(t, Sign("k", "a", "b"), Sign("k", "a", "b"))
	assert.NotEqual(t, Sign("k", "a", "b"), Sign("k", "ab", ""))
}
