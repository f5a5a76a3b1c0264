package fiscal

import (
	"fmt"
	"strconv"

	pkgfiscal "github.com/pedrojuniorgyn/AuraCore-sub019/pkg/fiscal"
)

// AccessKey é a chave de acesso de 44 dígitos de um documento fiscal eletrônico.
// Imutável após gerada; igualdade é estrutural (comparação do valor).
//
// Layout (posições fixas, zero-padded):
//
//	cUF(2) AAMM(4) CNPJ(14) mod(2) série(3) número(9) tpEmis(1) cNF(8) cDV(1)
type AccessKey struct {
	value string
}

// AccessKeyParams campos de entrada para a geração da chave.
type AccessKeyParams struct {
	UF           int    // Código IBGE da UF do emitente
	YearMonth    string // AAMM da emissão (ex: "2609" = setembro/2026)
	CNPJ         string // CNPJ do emitente, exatamente 14 dígitos
	Model        string // Modelo do documento ("55", "57", "58", "65")
	Series       int    // Série (0-999)
	Number       int64  // Número do documento (1-999999999)
	EmissionType int    // Tipo de emissão (1-9)
	NumericCode  int    // Código numérico cNF (0-99999999)
}

// GenerateAccessKey monta os 43 dígitos de posição fixa, calcula o dígito
// verificador módulo 11 e devolve a chave de 44 dígitos. Falha apenas em
// campos malformados; nunca devolve chave com tamanho diferente de 44.
func GenerateAccessKey(p AccessKeyParams) (AccessKey, error) {
	if !pkgfiscal.ValidUFCodes[p.UF] {
		return AccessKey{}, fmt.Errorf("chave: código de UF %d não consta na tabela IBGE", p.UF)
	}
	if err := validateYearMonth(p.YearMonth); err != nil {
		return AccessKey{}, err
	}
	if len(p.CNPJ) != 14 || !allDigits(p.CNPJ) {
		return AccessKey{}, fmt.Errorf("chave: CNPJ deve ter exatamente 14 dígitos, recebido %q", p.CNPJ)
	}
	if len(p.Model) != 2 || !allDigits(p.Model) {
		return AccessKey{}, fmt.Errorf("chave: modelo deve ter 2 dígitos, recebido %q", p.Model)
	}
	if p.Series < 0 || p.Series > 999 {
		return AccessKey{}, fmt.Errorf("chave: série %d fora do intervalo 0-999", p.Series)
	}
	if p.Number < 1 || p.Number > 999_999_999 {
		return AccessKey{}, fmt.Errorf("chave: número %d fora do intervalo 1-999999999", p.Number)
	}
	if p.EmissionType < 1 || p.EmissionType > 9 {
		return AccessKey{}, fmt.Errorf("chave: tipo de emissão %d fora do intervalo 1-9", p.EmissionType)
	}
	if p.NumericCode < 0 || p.NumericCode > 99_999_999 {
		return AccessKey{}, fmt.Errorf("chave: código numérico %d fora do intervalo 0-99999999", p.NumericCode)
	}

	base := fmt.Sprintf("%02d%s%s%s%03d%09d%d%08d",
		p.UF, p.YearMonth, p.CNPJ, p.Model, p.Series, p.Number, p.EmissionType, p.NumericCode)

	dv, err := ComputeCheckDigit(base)
	if err != nil {
		return AccessKey{}, err
	}
	return AccessKey{value: base + string(dv)}, nil
}

// ParseAccessKey valida uma chave recebida (44 dígitos + DV correto) e a
// converte no objeto de valor. Usada na autorização, quando a chave vem da SEFAZ.
func ParseAccessKey(s string) (AccessKey, error) {
	if len(s) != 44 || !allDigits(s) {
		return AccessKey{}, fmt.Errorf("chave: esperados 44 dígitos, recebido %q", s)
	}
	dv, err := ComputeCheckDigit(s[:43])
	if err != nil {
		return AccessKey{}, err
	}
	if s[43] != dv {
		return AccessKey{}, fmt.Errorf("chave: dígito verificador inválido: esperado %c, recebido %c", dv, s[43])
	}
	return AccessKey{value: s}, nil
}

// ComputeCheckDigit calcula o dígito verificador módulo 11 sobre os 43
// primeiros dígitos. Pesos 2..9 aplicados da direita para a esquerda, em
// ciclo; resto < 2 resulta em dígito 0, senão 11 - resto.
func ComputeCheckDigit(base string) (byte, error) {
	if len(base) != 43 || !allDigits(base) {
		return 0, fmt.Errorf("chave: base do DV deve ter 43 dígitos, recebido %d", len(base))
	}
	weight := 2
	sum := 0
	for i := len(base) - 1; i >= 0; i-- {
		sum += int(base[i]-'0') * weight
		weight++
		if weight > 9 {
			weight = 2
		}
	}
	remainder := sum % 11
	if remainder < 2 {
		return '0', nil
	}
	return byte('0' + (11 - remainder)), nil
}

// String devolve a chave completa de 44 dígitos.
func (k AccessKey) String() string { return k.value }

// IsZero indica chave não inicializada.
func (k AccessKey) IsZero() bool { return k.value == "" }

// UF devolve o código IBGE da UF, lido das posições 0-1 da chave.
func (k AccessKey) UF() int {
	if k.value == "" {
		return 0
	}
	uf, _ := strconv.Atoi(k.value[0:2])
	return uf
}

// CNPJ devolve o CNPJ do emitente, lido das posições 6-19 da chave.
func (k AccessKey) CNPJ() string {
	if k.value == "" {
		return ""
	}
	return k.value[6:20]
}

// Model devolve o modelo do documento, lido das posições 20-21 da chave.
func (k AccessKey) Model() string {
	if k.value == "" {
		return ""
	}
	return k.value[20:22]
}

func validateYearMonth(aamm string) error {
	if len(aamm) != 4 || !allDigits(aamm) {
		return fmt.Errorf("chave: AAMM deve ter 4 dígitos, recebido %q", aamm)
	}
	month, _ := strconv.Atoi(aamm[2:4])
	if month < 1 || month > 12 {
		return fmt.Errorf("chave: mês %02d do AAMM fora do intervalo 01-12", month)
	}
	return nil
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
