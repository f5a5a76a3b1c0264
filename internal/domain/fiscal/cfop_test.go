package fiscal_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pedrojuniorgyn/AuraCore-sub019/internal/domain/fiscal"
)

func TestNewCFOP_FamiliasValidas(t *testing.T) {
	cases := []struct {
		code          string
		entry         bool
		intrastate    bool
		interstate    bool
		international bool
	}{
		{"1102", true, true, false, false},  // compra dentro do estado
		{"2102", true, false, true, false},  // compra interestadual
		{"3102", true, false, false, true},  // importação
		{"5102", false, true, false, false}, // venda dentro do estado
		{"6102", false, false, true, false}, // venda interestadual
		{"7102", false, false, false, true}, // exportação
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			c, err := fiscal.NewCFOP(tc.code)
			require.NoError(t, err)
			assert.Equal(t, tc.code, c.String())
			assert.Equal(t, tc.entry, c.IsEntry())
			assert.Equal(t, !tc.entry, c.IsExit())
			assert.Equal(t, tc.intrastate, c.IsIntrastate())
			assert.Equal(t, tc.interstate, c.IsInterstate())
			assert.Equal(t, tc.international, c.IsInternational())
		})
	}
}

func TestNewCFOP_Invalidos(t *testing.T) {
	invalid := []string{
		"",      // vazio
		"510",   // 3 dígitos
		"51020", // 5 dígitos
		"4102",  // família 4 não existe
		"8102",  // família 8 não existe
		"0102",  // família 0 não existe
		"5a02",  // letra no meio
		"510 ",  // espaço
	}
	for _, code := range invalid {
		_, err := fiscal.NewCFOP(code)
		assert.Error(t, err, "CFOP %q deveria ser rejeitado", code)
	}
}
