package sri

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidarCedula(t *testing.T) {
	assert.NoError(t, ValidarCedula("1710034065"))
	assert.ErrorIs(t, ValidarCedula("1710034066"), ErrIdentificacionInvalida)
	assert.ErrorIs(t, ValidarCedula("9910034065"), ErrIdentificacionInvalida)
	assert.ErrorIs(t, ValidarCedula("17100340"), ErrIdentificacionInvalida)
	assert.ErrorIs(t, ValidarCedula("17A0034065"), ErrIdentificacionInvalida)
}

func TestValidarRUC(t *testing.T) {
	// persona natural
	assert.NoError(t, ValidarRUC("1710034065001"))
	assert.Error(t, ValidarRUC("1710034065000"))
	// sociedad privada
	assert.NoError(t, ValidarRUC("1790010937001"))
	assert.Error(t, ValidarRUC("1790010938001"))
	// entidad publica
	assert.NoError(t, ValidarRUC("1760001550001"))
	assert.Error(t, ValidarRUC("1760001560001"))
	// tercer digito 7 no existe
	assert.Error(t, ValidarRUC("1770010937001"))
}

func TestValidarIdentificacion_Tipo(t *testing.T) {
	tipo, err := ValidarIdentificacion("1710034065")
	require.NoError(t, err)
	assert.Equal(t, IdentificacionCedula, tipo)

	tipo, err = ValidarIdentificacion("1790010937001")
	require.NoError(t, err)
	assert.Equal(t, IdentificacionRUC, tipo)

	_, err = ValidarIdentificacion("123")
	assert.ErrorIs(t, err, ErrIdentificacionInvalida)
}
