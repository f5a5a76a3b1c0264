// Package ciap implementa o motor de apropriação mensal do crédito de ICMS
// sobre ativo permanente (CIAP): 1/48 do crédito por mês, multiplicado pelo
// fator de tributação do período (LC 87/96, art. 20, §5º).
package ciap

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pedrojuniorgyn/AuraCore-sub019/internal/domain"
	"github.com/pedrojuniorgyn/AuraCore-sub019/internal/domain/entity"
	"github.com/pedrojuniorgyn/AuraCore-sub019/internal/domain/repository"
	"github.com/pedrojuniorgyn/AuraCore-sub019/pkg/logger"
)

// RunInput parâmetros de uma execução mensal do motor.
type RunInput struct {
	OrganizationID int64
	BranchID       int64
	Period         string // AAAAMM do mês de referência
	TaxableRevenue decimal.Decimal
	TotalRevenue   decimal.Decimal
}

// RunSummary resultado consolidado da execução.
type RunSummary struct {
	Period       string
	Factor       decimal.Decimal
	Processed    int // controles com parcela apropriada nesta execução
	Skipped      int // controles já apropriados no período (re-execução)
	Appropriated decimal.Decimal
}

// TxRunner executa fn numa transação única, com repositórios atados a ela.
// A linha do razão e os contadores do controle precisam entrar no mesmo
// commit: uma linha de razão sem o decremento do saldo seria pulada para
// sempre pela retomada, e a soma das apropriações estouraria o crédito.
type TxRunner interface {
	Run(ctx context.Context, fn func(
		ledger repository.ApportionmentRepository,
		controls repository.CreditControlRepository,
	) error) error
}

// Engine o motor de apropriação. A idempotência vem do razão append-only: a
// unicidade de (organização, filial, bem, período) faz a re-execução do lote
// pular o que já foi apropriado, sem duplicar valor.
type Engine struct {
	controls repository.CreditControlRepository
	ledger   repository.ApportionmentRepository
	tx       TxRunner
	log      *logger.Logger
}

// NewEngine constrói o motor.
func NewEngine(controls repository.CreditControlRepository, ledger repository.ApportionmentRepository, tx TxRunner, log *logger.Logger) *Engine {
	return &Engine{controls: controls, ledger: ledger, tx: tx, log: log}
}

// Run executa a apropriação do período para todos os controles ativos do
// tenant. O fator é a razão entre receita tributada e receita total do mês;
// receita total zero dá fator zero (a parcela do mês é consumida sem crédito).
func (e *Engine) Run(ctx context.Context, in RunInput) (*RunSummary, error) {
	if in.OrganizationID <= 0 || in.BranchID <= 0 {
		return nil, fmt.Errorf("%w: organização e filial devem ser positivas", domain.ErrInvalidInput)
	}
	if err := validatePeriod(in.Period); err != nil {
		return nil, err
	}
	factor, err := apportionmentFactor(in.TaxableRevenue, in.TotalRevenue)
	if err != nil {
		return nil, err
	}

	controls, err := e.controls.ListActive(ctx, in.OrganizationID, in.BranchID)
	if err != nil {
		return nil, fmt.Errorf("listar controles ativos: %w", err)
	}

	summary := &RunSummary{Period: in.Period, Factor: factor, Appropriated: decimal.Zero}
	for _, ctrl := range controls {
		done, amount, err := e.appropriateOne(ctx, ctrl, in.Period, factor)
		if err != nil {
			return nil, fmt.Errorf("bem %s: %w", ctrl.AssetCode, err)
		}
		if !done {
			summary.Skipped++
			continue
		}
		summary.Processed++
		summary.Appropriated = summary.Appropriated.Add(amount)
	}

	e.log.Info().
		Str("period", in.Period).
		Str("factor", factor.String()).
		Int("processed", summary.Processed).
		Int("skipped", summary.Skipped).
		Str("appropriated", summary.Appropriated.StringFixed(2)).
		Msg("apropriação mensal concluída")
	return summary, nil
}

// appropriateOne apropria a parcela de um controle. Devolve done=false quando
// o bem já tinha apropriação no período.
func (e *Engine) appropriateOne(ctx context.Context, ctrl *entity.CreditControl, period string, factor decimal.Decimal) (bool, decimal.Decimal, error) {
	exists, err := e.ledger.Exists(ctx, ctrl.OrganizationID, ctrl.BranchID, ctrl.AssetCode, period)
	if err != nil {
		return false, decimal.Zero, fmt.Errorf("consultar razão: %w", err)
	}
	if exists {
		return false, decimal.Zero, nil
	}

	amount := ctrl.MonthlyInstallment().Mul(factor).Round(2)
	if amount.GreaterThan(ctrl.Balance) {
		amount = ctrl.Balance
	}

	rec := &entity.ApportionmentRecord{
		ID:             uuid.NewString(),
		OrganizationID: ctrl.OrganizationID,
		BranchID:       ctrl.BranchID,
		AssetCode:      ctrl.AssetCode,
		Period:         period,
		Factor:         factor,
		Amount:         amount,
	}
	err = e.tx.Run(ctx, func(ledger repository.ApportionmentRepository, controls repository.CreditControlRepository) error {
		if err := ledger.Append(ctx, rec); err != nil {
			return err
		}
		if err := ctrl.Appropriate(amount); err != nil {
			return err
		}
		return controls.Update(ctx, ctrl)
	})
	if err != nil {
		// Outro executor apropriou o mesmo bem entre o Exists e o Append:
		// a linha do razão venceu a corrida, este lote apenas pula.
		if errors.Is(err, domain.ErrDuplicate) {
			return false, decimal.Zero, nil
		}
		return false, decimal.Zero, fmt.Errorf("apropriar parcela: %w", err)
	}
	return true, amount, nil
}

// apportionmentFactor razão entre receita tributada e total, sempre em [0, 1].
func apportionmentFactor(taxable, total decimal.Decimal) (decimal.Decimal, error) {
	if taxable.IsNegative() || total.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: receitas não podem ser negativas", domain.ErrInvalidInput)
	}
	if total.IsZero() {
		return decimal.Zero, nil
	}
	if taxable.GreaterThan(total) {
		return decimal.Zero, fmt.Errorf("%w: receita tributada maior que a receita total", domain.ErrInvalidInput)
	}
	return taxable.DivRound(total, 8), nil
}

func validatePeriod(period string) error {
	if len(period) != 6 {
		return fmt.Errorf("%w: período deve ser AAAAMM, recebido %q", domain.ErrInvalidInput, period)
	}
	month, err := strconv.Atoi(period[4:])
	if err != nil {
		return fmt.Errorf("%w: período deve ser numérico, recebido %q", domain.ErrInvalidInput, period)
	}
	if _, err := strconv.Atoi(period[:4]); err != nil {
		return fmt.Errorf("%w: período deve ser numérico, recebido %q", domain.ErrInvalidInput, period)
	}
	if month < 1 || month > 12 {
		return fmt.Errorf("%w: mês %02d fora do intervalo 01-12", domain.ErrInvalidInput, month)
	}
	return nil
}
