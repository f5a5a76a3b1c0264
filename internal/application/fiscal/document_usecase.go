// Package fiscal contém os casos de uso do ciclo de vida do documento fiscal:
// criação do rascunho, itens, envio para autorização e cancelamento.
package fiscal

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pedrojuniorgyn/AuraCore-sub019/internal/domain/entity"
	domfiscal "github.com/pedrojuniorgyn/AuraCore-sub019/internal/domain/fiscal"
	"github.com/pedrojuniorgyn/AuraCore-sub019/internal/domain/repository"
)

// CreateDocumentInput dados de criação de um documento em rascunho.
type CreateDocumentInput struct {
	OrganizationID int64
	BranchID       int64
	Type           entity.DocumentType
	Series         int
	Number         int64
	IssuerCNPJ     string
	IssueDate      time.Time
}

// AddItemInput dados de uma linha do documento.
type AddItemInput struct {
	ProductCode string
	CFOP        string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
}

// DocumentUseCase operações de rascunho: criar documento e adicionar itens.
type DocumentUseCase struct {
	docRepo repository.FiscalDocumentRepository
}

// NewDocumentUseCase constrói o caso de uso.
func NewDocumentUseCase(docRepo repository.FiscalDocumentRepository) *DocumentUseCase {
	return &DocumentUseCase{docRepo: docRepo}
}

// Create cria e persiste um documento em rascunho, sem itens.
func (uc *DocumentUseCase) Create(ctx context.Context, in CreateDocumentInput) (*entity.FiscalDocument, error) {
	doc, err := entity.NewFiscalDocument(in.OrganizationID, in.BranchID, in.Type, in.Series, in.Number, in.IssuerCNPJ, in.IssueDate)
	if err != nil {
		return nil, err
	}
	doc.ID = uuid.NewString()
	if err := uc.docRepo.Create(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// AddItem adiciona uma linha ao rascunho e persiste o agregado com checagem
// de versão. O CFOP é validado aqui, na borda do caso de uso.
func (uc *DocumentUseCase) AddItem(ctx context.Context, orgID, branchID int64, docID string, in AddItemInput) (*entity.FiscalDocument, error) {
	doc, err := uc.docRepo.GetByID(ctx, orgID, branchID, docID)
	if err != nil {
		return nil, err
	}
	previousVersion := doc.Version

	cfop, err := domfiscal.NewCFOP(in.CFOP)
	if err != nil {
		return nil, err
	}
	item := entity.DocumentItem{
		ProductCode: in.ProductCode,
		CFOP:        cfop,
		Quantity:    in.Quantity,
		UnitPrice:   in.UnitPrice,
	}
	if err := doc.AddItem(item); err != nil {
		return nil, err
	}
	if err := uc.docRepo.Update(ctx, doc, previousVersion); err != nil {
		return nil, err
	}
	return doc, nil
}

// Get busca um documento do tenant.
func (uc *DocumentUseCase) Get(ctx context.Context, orgID, branchID int64, docID string) (*entity.FiscalDocument, error) {
	return uc.docRepo.GetByID(ctx, orgID, branchID, docID)
}

// List consulta paginada por filtro.
func (uc *DocumentUseCase) List(ctx context.Context, orgID, branchID int64, filter repository.DocumentFilter) ([]*entity.FiscalDocument, error) {
	return uc.docRepo.List(ctx, orgID, branchID, filter)
}
