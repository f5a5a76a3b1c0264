package postgres

import (
	"context"
	"fmt"

	"github.com/pedrojuniorgyn/AuraCore-sub019/internal/domain"
	"github.com/pedrojuniorgyn/AuraCore-sub019/internal/domain/entity"
	"github.com/pedrojuniorgyn/AuraCore-sub019/internal/domain/repository"
)

var _ repository.CreditControlRepository = (*CreditControlRepo)(nil)

// CreditControlRepo persistência dos controles de crédito CIAP (usável com pool ou tx).
type CreditControlRepo struct {
	q Querier
}

// NewCreditControlRepository constrói o adaptador.
func NewCreditControlRepository(q Querier) *CreditControlRepo {
	return &CreditControlRepo{q: q}
}

// Create persiste um controle recém-capitalizado.
func (r *CreditControlRepo) Create(ctx context.Context, ctrl *entity.CreditControl) error {
	query := `
		INSERT INTO ciap_credit_controls
			(id, organization_id, branch_id, asset_code, description, purchase_amount, rate,
			 total_credit, installments_taken, balance, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	_, err := r.q.Exec(ctx, query,
		ctrl.ID, ctrl.OrganizationID, ctrl.BranchID, ctrl.AssetCode, ctrl.Description,
		ctrl.PurchaseAmount, ctrl.Rate, ctrl.TotalCredit, ctrl.InstallmentsTaken,
		ctrl.Balance, ctrl.Status, ctrl.CreatedAt, ctrl.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: bem %s já possui controle", domain.ErrDuplicate, ctrl.AssetCode)
		}
		return fmt.Errorf("insert controle: %w", err)
	}
	return nil
}

// ListActive devolve os controles ACTIVE do tenant, na ordem do código do bem.
func (r *CreditControlRepo) ListActive(ctx context.Context, orgID, branchID int64) ([]*entity.CreditControl, error) {
	query := `
		SELECT id, organization_id, branch_id, asset_code, description, purchase_amount, rate,
		       total_credit, installments_taken, balance, status, created_at, updated_at
		FROM ciap_credit_controls
		WHERE organization_id = $1 AND branch_id = $2 AND status = $3
		ORDER BY asset_code`
	rows, err := r.q.Query(ctx, query, orgID, branchID, entity.CreditStatusActive)
	if err != nil {
		return nil, fmt.Errorf("listar controles: %w", err)
	}
	defer rows.Close()

	var out []*entity.CreditControl
	for rows.Next() {
		var ctrl entity.CreditControl
		if err := rows.Scan(
			&ctrl.ID, &ctrl.OrganizationID, &ctrl.BranchID, &ctrl.AssetCode, &ctrl.Description,
			&ctrl.PurchaseAmount, &ctrl.Rate, &ctrl.TotalCredit, &ctrl.InstallmentsTaken,
			&ctrl.Balance, &ctrl.Status, &ctrl.CreatedAt, &ctrl.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan controle: %w", err)
		}
		out = append(out, &ctrl)
	}
	return out, rows.Err()
}

// Update persiste os contadores e o status após uma apropriação.
func (r *CreditControlRepo) Update(ctx context.Context, ctrl *entity.CreditControl) error {
	query := `
		UPDATE ciap_credit_controls
		SET installments_taken = $2, balance = $3, status = $4, updated_at = $5
		WHERE id = $1`
	tag, err := r.q.Exec(ctx, query,
		ctrl.ID, ctrl.InstallmentsTaken, ctrl.Balance, ctrl.Status, ctrl.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update controle: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
