package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// ApportionmentRecord é uma linha do razão de apropriações do CIAP: uma por
// bem por mês de referência, nunca sobrescrita (trilha de auditoria
// append-only). A unicidade de (organização, filial, bem, período) é
// garantida pela camada de persistência.
type ApportionmentRecord struct {
	ID             string
	OrganizationID int64
	BranchID       int64
	AssetCode      string
	Period         string // AAAAMM do mês de referência
	Factor         decimal.Decimal
	Amount         decimal.Decimal
	CreatedAt      time.Time
}
