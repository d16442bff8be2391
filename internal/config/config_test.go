package config

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 1, cfg.SRIAmbiente)
	assert.Equal(t, "001", cfg.SRIEstablecimiento)
	assert.True(t, cfg.TarifaBaseM3.Equal(decimal.NewFromInt(15)))
	assert.True(t, cfg.TarifaPrecioExceso.Equal(decimal.RequireFromString("0.25")))
	assert.True(t, cfg.IVATarifa.Equal(decimal.RequireFromString("0.15")))
	assert.Equal(t, 2, cfg.CorteMesesUmbral)
	assert.Equal(t, []string{"35", "36", "37", "39", "52", "65"}, cfg.CodigosRecuperables())
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("TARIFA_PRECIO_BASE", "4.50")
	t.Setenv("CORTE_MESES_UMBRAL", "3")
	t.Setenv("SRI_AMBIENTE", "2")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.TarifaPrecioBase.Equal(decimal.RequireFromString("4.5")))
	assert.Equal(t, 3, cfg.CorteMesesUmbral)
	assert.Equal(t, 2, cfg.SRIAmbiente)
}
