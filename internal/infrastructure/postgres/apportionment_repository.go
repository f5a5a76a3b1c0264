package postgres

import (
	"context"
	"fmt"

	"github.com/pedrojuniorgyn/AuraCore-sub019/internal/domain"
	"github.com/pedrojuniorgyn/AuraCore-sub019/internal/domain/entity"
	"github.com/pedrojuniorgyn/AuraCore-sub019/internal/domain/repository"
)

var _ repository.ApportionmentRepository = (*ApportionmentRepo)(nil)

// ApportionmentRepo razão de apropriações do CIAP: insert-only, sem UPDATE nem
// DELETE. A constraint única de (organização, filial, bem, período) é quem
// garante a idempotência do lote mensal.
type ApportionmentRepo struct {
	q Querier
}

// NewApportionmentRepository constrói o adaptador.
func NewApportionmentRepository(q Querier) *ApportionmentRepo {
	return &ApportionmentRepo{q: q}
}

// Append insere uma linha do razão. Violação da constraint única vira
// domain.ErrDuplicate, que o motor interpreta como "período já apropriado".
func (r *ApportionmentRepo) Append(ctx context.Context, rec *entity.ApportionmentRecord) error {
	query := `
		INSERT INTO ciap_apportionments
			(id, organization_id, branch_id, asset_code, period, factor, amount, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())`
	_, err := r.q.Exec(ctx, query,
		rec.ID, rec.OrganizationID, rec.BranchID, rec.AssetCode, rec.Period, rec.Factor, rec.Amount,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: bem %s já apropriado no período %s", domain.ErrDuplicate, rec.AssetCode, rec.Period)
		}
		return fmt.Errorf("insert apropriação: %w", err)
	}
	return nil
}

// Exists verifica se o bem já tem apropriação no período.
func (r *ApportionmentRepo) Exists(ctx context.Context, orgID, branchID int64, assetCode, period string) (bool, error) {
	var exists bool
	err := r.q.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM ciap_apportionments
			WHERE organization_id = $1 AND branch_id = $2 AND asset_code = $3 AND period = $4
		)`, orgID, branchID, assetCode, period,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("verificar apropriação: %w", err)
	}
	return exists, nil
}
