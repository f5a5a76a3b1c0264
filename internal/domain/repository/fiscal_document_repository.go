package repository

import (
	"context"

	"github.com/pedrojuniorgyn/AuraCore-sub019/internal/domain/entity"
)

// DocumentFilter filtro paginado para listagem de documentos fiscais.
type DocumentFilter struct {
	Status   string
	Type     entity.DocumentType
	Page     int // 1-based
	PageSize int
}

// FiscalDocumentRepository porta de persistência do agregado de documento
// fiscal. Toda operação recebe o escopo de tenant (organização/filial)
// explicitamente: o motor nunca infere tenancy.
type FiscalDocumentRepository interface {
	// Create persiste um documento novo com seus itens.
	Create(ctx context.Context, doc *entity.FiscalDocument) error

	// GetByID busca um documento do tenant. Devolve domain.ErrNotFound se não existir.
	GetByID(ctx context.Context, orgID, branchID int64, id string) (*entity.FiscalDocument, error)

	// Update aplica o estado atual do agregado exigindo a versão anterior
	// (concorrência otimista). Devolve domain.ErrStaleVersion se outro
	// escritor alterou o documento.
	Update(ctx context.Context, doc *entity.FiscalDocument, previousVersion int) error

	// ExistsByAccessKey indica se já há documento com esta chave no tenant
	// (deduplicação antes do envio à autoridade).
	ExistsByAccessKey(ctx context.Context, orgID int64, accessKey string) (bool, error)

	// List consulta paginada por filtro.
	List(ctx context.Context, orgID, branchID int64, filter DocumentFilter) ([]*entity.FiscalDocument, error)
}
