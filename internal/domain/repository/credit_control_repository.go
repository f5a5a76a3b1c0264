package repository

import (
	"context"

	"github.com/pedrojuniorgyn/AuraCore-sub019/internal/domain/entity"
)

// CreditControlRepository porta de persistência dos controles de crédito CIAP.
type CreditControlRepository interface {
	Create(ctx context.Context, ctrl *entity.CreditControl) error

	// ListActive devolve os controles ACTIVE com parcelas restantes do tenant.
	ListActive(ctx context.Context, orgID, branchID int64) ([]*entity.CreditControl, error)

	// Update persiste os contadores e o status após uma apropriação.
	Update(ctx context.Context, ctrl *entity.CreditControl) error
}

// ApportionmentRepository porta do razão de apropriações (insert-only).
type ApportionmentRepository interface {
	// Append insere uma linha do razão. Devolve domain.ErrDuplicate se já
	// existir linha para (organização, filial, bem, período); é isso que
	// torna a re-execução do lote idempotente.
	Append(ctx context.Context, rec *entity.ApportionmentRecord) error

	// Exists verifica se o bem já tem apropriação no período.
	Exists(ctx context.Context, orgID, branchID int64, assetCode, period string) (bool, error)
}
