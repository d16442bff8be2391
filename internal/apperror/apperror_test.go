package apperror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf_WrappedError(t *testing.T) {
	base := BusinessRule(RuleOverpaymentRejected, "sobran 2.00")
	wrapped := fmt.Errorf("aplicar pago: %w", base)

	assert.Equal(t, KindBusinessRule, KindOf(wrapped))
	assert.True(t, IsRule(wrapped, RuleOverpaymentRejected))
	assert.False(t, IsRule(wrapped, RuleDuplicateObligation))
}

func TestKindOf_PlainError(t *testing.T) {
	assert.Equal(t, Kind(0), KindOf(errors.New("x")))
	assert.False(t, IsKind(nil, KindNotFound))
}

func TestRetryable(t *testing.T) {
	assert.True(t, Concurrency("socio", nil).Retryable())
	assert.True(t, FiscalUnavailable(errors.New("timeout")).Retryable())
	assert.False(t, FiscalRejection([]string{"35: ARCHIVO NO CUMPLE"}).Retryable())
	assert.False(t, NotFound("factura", "x").Retryable())
}

func TestDuplicateCarriesExisting(t *testing.T) {
	err := Duplicate("fila-existente", "MULTA_EVENTO_1_SOCIO_2")
	e, ok := As(err)
	assert.True(t, ok)
	assert.Equal(t, "fila-existente", e.Existing)
	assert.Equal(t, RuleDuplicateObligation, e.Rule)
}

func TestErrorMessages(t *testing.T) {
	assert.Contains(t, NotFound("socio", 7).Error(), "socio 7")
	assert.Contains(t, Validation("monto", "debe ser mayor a cero").Error(), "monto")
	assert.Contains(t, FiscalRejection([]string{"a", "b"}).Error(), "a; b")
	assert.Equal(t, "EntityNotFound", KindNotFound.String())
}
