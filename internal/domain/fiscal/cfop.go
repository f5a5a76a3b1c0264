// Package fiscal contém os objetos de valor fiscais puros: CFOP e chave de acesso.
// Nenhum tipo deste pacote tem ciclo de vida próprio; igualdade é estrutural.
package fiscal

import "fmt"

// CFOP é o Código Fiscal de Operações e Prestações: 4 dígitos, validado na
// construção. O primeiro dígito define a natureza da operação:
//
//	1, 2, 3 = entrada (estadual, interestadual, exterior)
//	5, 6, 7 = saída   (estadual, interestadual, exterior)
type CFOP struct {
	code string
}

// NewCFOP valida e cria um CFOP. Códigos malformados retornam erro descritivo;
// não existe defaulting silencioso.
func NewCFOP(code string) (CFOP, error) {
	if len(code) != 4 {
		return CFOP{}, fmt.Errorf("cfop: código deve ter exatamente 4 dígitos, recebido %q", code)
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return CFOP{}, fmt.Errorf("cfop: código deve conter apenas dígitos, recebido %q", code)
		}
	}
	switch code[0] {
	case '1', '2', '3', '5', '6', '7':
		return CFOP{code: code}, nil
	default:
		return CFOP{}, fmt.Errorf("cfop: primeiro dígito %q não pertence às famílias 1-3 (entrada) ou 5-7 (saída)", code[0])
	}
}

// String devolve o código de 4 dígitos.
func (c CFOP) String() string { return c.code }

// IsEntry indica operação de entrada (famílias 1, 2 e 3).
func (c CFOP) IsEntry() bool {
	return c.code != "" && c.code[0] >= '1' && c.code[0] <= '3'
}

// IsExit indica operação de saída (famílias 5, 6 e 7).
func (c CFOP) IsExit() bool {
	return c.code != "" && c.code[0] >= '5' && c.code[0] <= '7'
}

// IsIntrastate indica operação dentro do estado (1xxx ou 5xxx).
func (c CFOP) IsIntrastate() bool {
	return c.code != "" && (c.code[0] == '1' || c.code[0] == '5')
}

// IsInterstate indica operação interestadual (2xxx ou 6xxx).
func (c CFOP) IsInterstate() bool {
	return c.code != "" && (c.code[0] == '2' || c.code[0] == '6')
}

// IsInternational indica operação com o exterior (3xxx ou 7xxx).
func (c CFOP) IsInternational() bool {
	return c.code != "" && (c.code[0] == '3' || c.code[0] == '7')
}
