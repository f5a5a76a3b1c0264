// Package sped contém a hierarquia de objetos de valor do arquivo SPED:
// Register (uma linha delimitada), Block (sequência com abertura/encerramento)
// e Document (sequência de blocos, do bloco 0 ao bloco 9). Todos são validados
// na construção e imutáveis depois: nenhum chamador consegue segurar um
// arquivo estruturalmente inválido.
package sped

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Register é um registro delimitado do arquivo: código + lista ordenada de campos.
type Register struct {
	code   string
	fields []string
}

// NewRegister cria um registro. Código vazio ou lista de campos vazia são
// erros estruturais detectados aqui, antes de qualquer serialização.
// Campos nil viram segmentos vazios, nunca o literal "null".
func NewRegister(code string, fields []any) (Register, error) {
	if code == "" {
		return Register{}, fmt.Errorf("sped: registro sem código")
	}
	if len(fields) == 0 {
		return Register{}, fmt.Errorf("sped: registro %s sem campos", code)
	}
	rendered := make([]string, len(fields))
	for i, f := range fields {
		rendered[i] = formatField(f)
	}
	return Register{code: code, fields: rendered}, nil
}

// Code devolve o código do registro (ex: "0000", "I050", "9999").
func (r Register) Code() string { return r.code }

// FieldCount devolve o número de campos (sem contar o código).
func (r Register) FieldCount() int { return len(r.fields) }

// ToLine serializa o registro no formato |CODE|campo1|campo2|...|
func (r Register) ToLine() string {
	var sb strings.Builder
	sb.WriteByte('|')
	sb.WriteString(r.code)
	for _, f := range r.fields {
		sb.WriteByte('|')
		sb.WriteString(f)
	}
	sb.WriteByte('|')
	return sb.String()
}

// formatField converte um campo para o texto do layout SPED:
// valores monetários com vírgula decimal e sem separador de milhar,
// datas no formato ddMMaaaa, nil como segmento vazio.
func formatField(f any) string {
	switch v := f.(type) {
	case nil:
		return ""
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case decimal.Decimal:
		return strings.ReplaceAll(v.StringFixed(2), ".", ",")
	case time.Time:
		if v.IsZero() {
			return ""
		}
		return v.Format("02012006")
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}
