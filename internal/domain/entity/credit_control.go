package entity

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pedrojuniorgyn/AuraCore-sub019/internal/domain"
)

// Estados do controle de crédito de ICMS sobre ativo permanente (CIAP).
const (
	CreditStatusActive    = "ACTIVE"    // Ainda há parcelas a apropriar
	CreditStatusCompleted = "COMPLETED" // As 48 parcelas foram apropriadas
)

// CreditInstallments é o número fixo de parcelas mensais do CIAP: 1/48 do
// crédito por mês, conforme a LC 87/96.
const CreditInstallments = 48

// CreditControl é o registro de controle de crédito por bem do ativo
// imobilizado. Mutado mensalmente pelo motor de apropriação; o razão de
// apropriações é imutável e vive em registros próprios (append-only).
type CreditControl struct {
	ID                string
	OrganizationID    int64
	BranchID          int64
	AssetCode         string
	Description       string
	PurchaseAmount    decimal.Decimal
	Rate              decimal.Decimal // alíquota de ICMS aplicável na aquisição
	TotalCredit       decimal.Decimal
	InstallmentsTaken int
	Balance           decimal.Decimal
	Status            string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// NewCreditControl cria o controle de um bem recém-capitalizado. O crédito
// total é derivado do valor de aquisição e da alíquota; o saldo inicia igual
// ao crédito total.
func NewCreditControl(orgID, branchID int64, assetCode, description string, purchaseAmount, rate decimal.Decimal) (*CreditControl, error) {
	if orgID <= 0 || branchID <= 0 {
		return nil, fmt.Errorf("%w: organização e filial devem ser positivas", domain.ErrInvalidInput)
	}
	if assetCode == "" {
		return nil, fmt.Errorf("%w: código do bem é obrigatório", domain.ErrInvalidInput)
	}
	if !purchaseAmount.IsPositive() {
		return nil, fmt.Errorf("%w: valor de aquisição deve ser positivo", domain.ErrInvalidInput)
	}
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("%w: alíquota deve estar entre 0 e 1", domain.ErrInvalidInput)
	}

	totalCredit := purchaseAmount.Mul(rate).Round(2)
	now := time.Now()
	return &CreditControl{
		OrganizationID: orgID,
		BranchID:       branchID,
		AssetCode:      assetCode,
		Description:    description,
		PurchaseAmount: purchaseAmount,
		Rate:           rate,
		TotalCredit:    totalCredit,
		Balance:        totalCredit,
		Status:         CreditStatusActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// MonthlyInstallment devolve o valor cheio de uma parcela (crédito total / 48).
// O fator de apropriação do mês é aplicado sobre este valor pelo motor.
func (c *CreditControl) MonthlyInstallment() decimal.Decimal {
	return c.TotalCredit.Div(decimal.NewFromInt(CreditInstallments)).Round(2)
}

// RemainingInstallments devolve quantas parcelas ainda faltam apropriar.
func (c *CreditControl) RemainingInstallments() int {
	return CreditInstallments - c.InstallmentsTaken
}

// Appropriate registra a apropriação de uma parcela mensal. O valor apropriado
// nunca excede o saldo (o total apropriado em todos os meses não pode passar
// do crédito original). Na 48ª parcela o controle transiciona para COMPLETED.
func (c *CreditControl) Appropriate(amount decimal.Decimal) error {
	if c.Status != CreditStatusActive {
		return fmt.Errorf("%w: controle %s já está %s", domain.ErrInvalidState, c.AssetCode, c.Status)
	}
	if c.RemainingInstallments() <= 0 {
		return fmt.Errorf("%w: controle %s sem parcelas restantes", domain.ErrInvalidState, c.AssetCode)
	}
	if amount.IsNegative() {
		return fmt.Errorf("%w: valor apropriado não pode ser negativo", domain.ErrInvalidInput)
	}
	if amount.GreaterThan(c.Balance) {
		amount = c.Balance
	}

	c.Balance = c.Balance.Sub(amount)
	c.InstallmentsTaken++
	if c.InstallmentsTaken >= CreditInstallments {
		c.Status = CreditStatusCompleted
	}
	c.UpdatedAt = time.Now()
	return nil
}
