package main

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProducts(t *testing.T) {
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	in := "id,sku,nombre,precio\n1,SKU-1,Tornillo,150.50\n2, SKU-2 ,Tuerca,80\n1,SKU-1,Tornillo x100,160\n"

	got, err := parseProducts(strings.NewReader(in), 7, now)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, int64(1), got[0].ID)
	assert.Equal(t, "Tornillo x100", got[0].Name)
	assert.Equal(t, "160", got[0].Price.String())
	assert.Equal(t, int64(7), got[0].TenantID)
	assert.Equal(t, "SKU-2", got[1].SKU)
	assert.Equal(t, now, got[1].UpdatedAt)
}

func TestParseProducts_Errores(t *testing.T) {
	cases := map[string]string{
		"id no numérico":  "1,A,a,1\nx,B,b,2\n",
		"id cero":         "0,A,a,1\n",
		"precio negativo": "1,A,a,-1\n",
		"columnas":        "1,A,a\n",
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := parseProducts(strings.NewReader(in), 7, time.Now())
			assert.Error(t, err)
		})
	}
}
