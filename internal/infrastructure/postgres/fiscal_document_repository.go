package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pedrojuniorgyn/AuraCore-sub019/internal/domain"
	"github.com/pedrojuniorgyn/AuraCore-sub019/internal/domain/entity"
	domfiscal "github.com/pedrojuniorgyn/AuraCore-sub019/internal/domain/fiscal"
	"github.com/pedrojuniorgyn/AuraCore-sub019/internal/domain/repository"
)

var _ repository.FiscalDocumentRepository = (*FiscalDocumentRepo)(nil)

// FiscalDocumentRepo persistência do agregado de documento fiscal. Cabeçalho e
// itens são gravados na mesma transação; a concorrência otimista fica na
// cláusula WHERE version = $n do UPDATE.
type FiscalDocumentRepo struct {
	pool *pgxpool.Pool
}

// NewFiscalDocumentRepository constrói o adaptador.
func NewFiscalDocumentRepository(pool *pgxpool.Pool) *FiscalDocumentRepo {
	return &FiscalDocumentRepo{pool: pool}
}

// Create persiste o documento com seus itens.
func (r *FiscalDocumentRepo) Create(ctx context.Context, doc *entity.FiscalDocument) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	query := `
		INSERT INTO fiscal_documents
			(id, organization_id, branch_id, type, series, number, issuer_cnpj, issue_date,
			 net_amount, status, access_key, protocol_number, protocol_date,
			 cancel_reason, cancel_protocol, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`
	_, err = tx.Exec(ctx, query,
		doc.ID, doc.OrganizationID, doc.BranchID, doc.Type, doc.Series, doc.Number,
		doc.IssuerCNPJ, doc.IssueDate, doc.NetAmount, doc.Status,
		nullIfEmpty(doc.AccessKey.String()), nullIfEmpty(doc.ProtocolNumber), nullIfZeroTime(doc.ProtocolDate),
		nullIfEmpty(doc.CancelReason), nullIfEmpty(doc.CancelProtocol),
		doc.Version, doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: documento série %d número %d", domain.ErrDuplicate, doc.Series, doc.Number)
		}
		return fmt.Errorf("insert documento: %w", err)
	}

	if err := insertItems(ctx, tx, doc); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// GetByID busca o documento com itens, sempre no escopo do tenant.
func (r *FiscalDocumentRepo) GetByID(ctx context.Context, orgID, branchID int64, id string) (*entity.FiscalDocument, error) {
	query := `
		SELECT id, organization_id, branch_id, type, series, number, issuer_cnpj, issue_date,
		       net_amount, status, access_key, protocol_number, protocol_date,
		       cancel_reason, cancel_protocol, version, created_at, updated_at
		FROM fiscal_documents
		WHERE id = $1 AND organization_id = $2 AND branch_id = $3`
	doc, err := scanDocument(r.pool.QueryRow(ctx, query, id, orgID, branchID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get documento: %w", err)
	}

	items, err := r.loadItems(ctx, id)
	if err != nil {
		return nil, err
	}
	doc.Items = items
	return doc, nil
}

// Update aplica o estado do agregado exigindo a versão anterior. Zero linhas
// afetadas com o documento existente significa escritor concorrente.
func (r *FiscalDocumentRepo) Update(ctx context.Context, doc *entity.FiscalDocument, previousVersion int) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	query := `
		UPDATE fiscal_documents
		SET net_amount = $2, status = $3, access_key = $4,
		    protocol_number = $5, protocol_date = $6,
		    cancel_reason = $7, cancel_protocol = $8,
		    version = $9, updated_at = $10
		WHERE id = $1 AND version = $11`
	tag, err := tx.Exec(ctx, query,
		doc.ID, doc.NetAmount, doc.Status, nullIfEmpty(doc.AccessKey.String()),
		nullIfEmpty(doc.ProtocolNumber), nullIfZeroTime(doc.ProtocolDate),
		nullIfEmpty(doc.CancelReason), nullIfEmpty(doc.CancelProtocol),
		doc.Version, doc.UpdatedAt, previousVersion,
	)
	if err != nil {
		return fmt.Errorf("update documento: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM fiscal_documents WHERE id = $1)`, doc.ID).Scan(&exists); err != nil {
			return fmt.Errorf("verificar documento: %w", err)
		}
		if !exists {
			return domain.ErrNotFound
		}
		return fmt.Errorf("%w: esperada %d", domain.ErrStaleVersion, previousVersion)
	}

	// Itens são recriados por inteiro: o agregado é a fonte da verdade.
	if _, err := tx.Exec(ctx, `DELETE FROM fiscal_document_items WHERE document_id = $1`, doc.ID); err != nil {
		return fmt.Errorf("limpar itens: %w", err)
	}
	if err := insertItems(ctx, tx, doc); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ExistsByAccessKey deduplicação por chave de acesso no tenant.
func (r *FiscalDocumentRepo) ExistsByAccessKey(ctx context.Context, orgID int64, accessKey string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM fiscal_documents WHERE organization_id = $1 AND access_key = $2)`,
		orgID, accessKey,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("verificar chave: %w", err)
	}
	return exists, nil
}

// List consulta paginada; filtros vazios não restringem.
func (r *FiscalDocumentRepo) List(ctx context.Context, orgID, branchID int64, filter repository.DocumentFilter) ([]*entity.FiscalDocument, error) {
	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 || pageSize > 200 {
		pageSize = 50
	}

	query := `
		SELECT id, organization_id, branch_id, type, series, number, issuer_cnpj, issue_date,
		       net_amount, status, access_key, protocol_number, protocol_date,
		       cancel_reason, cancel_protocol, version, created_at, updated_at
		FROM fiscal_documents
		WHERE organization_id = $1 AND branch_id = $2
		  AND ($3 = '' OR status = $3)
		  AND ($4 = '' OR type = $4)
		ORDER BY issue_date DESC, number DESC
		LIMIT $5 OFFSET $6`
	rows, err := r.pool.Query(ctx, query, orgID, branchID,
		filter.Status, string(filter.Type), pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, fmt.Errorf("listar documentos: %w", err)
	}
	defer rows.Close()

	var docs []*entity.FiscalDocument
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan documento: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterar documentos: %w", err)
	}

	for _, doc := range docs {
		items, err := r.loadItems(ctx, doc.ID)
		if err != nil {
			return nil, err
		}
		doc.Items = items
	}
	return docs, nil
}

func (r *FiscalDocumentRepo) loadItems(ctx context.Context, docID string) ([]entity.DocumentItem, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT line_number, product_code, cfop, quantity, unit_price
		FROM fiscal_document_items
		WHERE document_id = $1
		ORDER BY line_number`, docID)
	if err != nil {
		return nil, fmt.Errorf("carregar itens: %w", err)
	}
	defer rows.Close()

	var items []entity.DocumentItem
	for rows.Next() {
		var item entity.DocumentItem
		var cfopCode string
		if err := rows.Scan(&item.LineNumber, &item.ProductCode, &cfopCode, &item.Quantity, &item.UnitPrice); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		cfop, err := domfiscal.NewCFOP(cfopCode)
		if err != nil {
			return nil, fmt.Errorf("CFOP persistido inválido %q: %w", cfopCode, err)
		}
		item.CFOP = cfop
		items = append(items, item)
	}
	return items, rows.Err()
}

func insertItems(ctx context.Context, tx pgx.Tx, doc *entity.FiscalDocument) error {
	for _, item := range doc.Items {
		_, err := tx.Exec(ctx, `
			INSERT INTO fiscal_document_items (document_id, line_number, product_code, cfop, quantity, unit_price)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			doc.ID, item.LineNumber, item.ProductCode, item.CFOP.String(), item.Quantity, item.UnitPrice,
		)
		if err != nil {
			return fmt.Errorf("insert item %d: %w", item.LineNumber, err)
		}
	}
	return nil
}

// scanDocument lê uma linha de fiscal_documents (sem itens).
func scanDocument(row pgx.Row) (*entity.FiscalDocument, error) {
	var doc entity.FiscalDocument
	var docType string
	var accessKey, protocolNumber, cancelReason, cancelProtocol *string
	var protocolDate *time.Time

	err := row.Scan(
		&doc.ID, &doc.OrganizationID, &doc.BranchID, &docType, &doc.Series, &doc.Number,
		&doc.IssuerCNPJ, &doc.IssueDate, &doc.NetAmount, &doc.Status,
		&accessKey, &protocolNumber, &protocolDate,
		&cancelReason, &cancelProtocol,
		&doc.Version, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	doc.Type = entity.DocumentType(docType)
	if accessKey != nil && *accessKey != "" {
		key, err := domfiscal.ParseAccessKey(*accessKey)
		if err != nil {
			return nil, fmt.Errorf("chave de acesso persistida inválida: %w", err)
		}
		doc.AccessKey = key
	}
	doc.ProtocolNumber = deref(protocolNumber)
	doc.CancelReason = deref(cancelReason)
	doc.CancelProtocol = deref(cancelProtocol)
	if protocolDate != nil {
		doc.ProtocolDate = *protocolDate
	}
	return &doc, nil
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
