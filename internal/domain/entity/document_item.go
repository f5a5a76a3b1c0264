package entity

import (
	"github.com/shopspring/decimal"

	"github.com/pedrojuniorgyn/AuraCore-sub019/internal/domain/fiscal"
)

// DocumentItem é uma linha de item de um documento fiscal. Pertence a um único
// documento e torna-se imutável quando o documento sai do rascunho.
type DocumentItem struct {
	LineNumber  int
	ProductCode string
	CFOP        fiscal.CFOP
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
}

// Total devolve o valor da linha (quantidade × preço unitário, 2 casas).
func (i DocumentItem) Total() decimal.Decimal {
	return i.Quantity.Mul(i.UnitPrice).Round(2)
}
