package entity

import (
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/pedrojuniorgyn/AuraCore-sub019/internal/domain"
	"github.com/pedrojuniorgyn/AuraCore-sub019/internal/domain/fiscal"
	pkgfiscal "github.com/pedrojuniorgyn/AuraCore-sub019/pkg/fiscal"
)

// Estados do ciclo de vida de um documento fiscal. Nenhuma transição retorna
// a um estado anterior; CANCELLED é terminal e só é alcançável de AUTHORIZED.
const (
	StatusDraft      = "DRAFT"      // Rascunho: itens mutáveis
	StatusProcessing = "PROCESSING" // Enviado, aguardando autorização da SEFAZ
	StatusAuthorized = "AUTHORIZED" // Autorizado: chave de acesso + protocolo atribuídos
	StatusCancelled  = "CANCELLED"  // Cancelamento homologado pela SEFAZ
)

// DocumentType variante fechada do tipo de documento fiscal.
type DocumentType string

const (
	TypeGoodsInvoice     DocumentType = "GOODS"     // NF-e (modelo 55)
	TypeTransportInvoice DocumentType = "TRANSPORT" // CT-e (modelo 57)
	TypeManifest         DocumentType = "MANIFEST"  // MDF-e (modelo 58)
	TypeServiceInvoice   DocumentType = "SERVICE"   // NFS-e (autorização municipal, sem modelo SEFAZ)
)

// ModelCode devolve o modelo SEFAZ usado na chave de acesso, ou vazio para
// documentos que não transitam pela SEFAZ estadual (NFS-e).
func (t DocumentType) ModelCode() string {
	switch t {
	case TypeGoodsInvoice:
		return pkgfiscal.ModelNFe
	case TypeTransportInvoice:
		return pkgfiscal.ModelCTe
	case TypeManifest:
		return pkgfiscal.ModelMDFe
	default:
		return ""
	}
}

// Valid indica se a variante pertence ao conjunto fechado de tipos.
func (t DocumentType) Valid() bool {
	switch t {
	case TypeGoodsInvoice, TypeTransportInvoice, TypeManifest, TypeServiceInvoice:
		return true
	}
	return false
}

// FiscalDocument é a raiz de agregado do documento fiscal. Todas as mutações
// incrementam Version; o repositório usa a versão esperada para recusar
// escritores concorrentes (concorrência otimista).
type FiscalDocument struct {
	ID             string
	OrganizationID int64
	BranchID       int64
	Type           DocumentType
	Series         int
	Number         int64
	IssuerCNPJ     string
	IssueDate      time.Time
	Items          []DocumentItem
	NetAmount      decimal.Decimal
	Status         string
	AccessKey      fiscal.AccessKey
	ProtocolNumber string
	ProtocolDate   time.Time
	CancelReason   string
	CancelProtocol string
	Version        int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewFiscalDocument cria um documento em rascunho, sem itens. Organização e
// filial são o escopo de tenant e ficam imutáveis após a criação.
func NewFiscalDocument(orgID, branchID int64, docType DocumentType, series int, number int64, issuerCNPJ string, issueDate time.Time) (*FiscalDocument, error) {
	if orgID <= 0 || branchID <= 0 {
		return nil, fmt.Errorf("%w: organização e filial devem ser positivas", domain.ErrInvalidInput)
	}
	if !docType.Valid() {
		return nil, fmt.Errorf("%w: tipo de documento %q desconhecido", domain.ErrInvalidInput, docType)
	}
	if series < 0 || series > 999 {
		return nil, fmt.Errorf("%w: série %d fora do intervalo 0-999", domain.ErrInvalidInput, series)
	}
	if number <= 0 {
		return nil, fmt.Errorf("%w: número do documento deve ser positivo", domain.ErrInvalidInput)
	}
	if len(issuerCNPJ) != 14 {
		return nil, fmt.Errorf("%w: CNPJ do emitente deve ter 14 dígitos", domain.ErrInvalidInput)
	}
	if issueDate.IsZero() {
		return nil, fmt.Errorf("%w: data de emissão é obrigatória", domain.ErrInvalidInput)
	}

	now := time.Now()
	return &FiscalDocument{
		OrganizationID: orgID,
		BranchID:       branchID,
		Type:           docType,
		Series:         series,
		Number:         number,
		IssuerCNPJ:     issuerCNPJ,
		IssueDate:      issueDate,
		NetAmount:      decimal.Zero,
		Status:         StatusDraft,
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// AddItem adiciona uma linha ao documento. Permitido apenas em rascunho; o
// valor líquido é sempre recalculado a partir dos itens, nunca armazenado
// de forma independente.
func (d *FiscalDocument) AddItem(item DocumentItem) error {
	if d.Status != StatusDraft {
		return fmt.Errorf("%w: status atual %s", domain.ErrItemsLocked, d.Status)
	}
	if item.ProductCode == "" {
		return fmt.Errorf("%w: código do produto é obrigatório", domain.ErrInvalidInput)
	}
	if item.CFOP.String() == "" {
		return fmt.Errorf("%w: CFOP do item é obrigatório", domain.ErrInvalidInput)
	}
	if !item.Quantity.IsPositive() {
		return fmt.Errorf("%w: quantidade deve ser positiva", domain.ErrInvalidInput)
	}
	if item.UnitPrice.IsNegative() {
		return fmt.Errorf("%w: preço unitário não pode ser negativo", domain.ErrInvalidInput)
	}

	item.LineNumber = len(d.Items) + 1
	d.Items = append(d.Items, item)
	d.recomputeNetAmount()
	d.touch()
	return nil
}

// Submit transiciona DRAFT → PROCESSING. Documento sem itens não sai do rascunho.
func (d *FiscalDocument) Submit() error {
	if d.Status != StatusDraft {
		return fmt.Errorf("%w: submit exige DRAFT, status atual %s", domain.ErrInvalidState, d.Status)
	}
	if len(d.Items) == 0 {
		return domain.ErrEmptyItems
	}
	d.Status = StatusProcessing
	d.touch()
	return nil
}

// Authorize transiciona PROCESSING → AUTHORIZED com a chave e o protocolo
// devolvidos pela autoridade. A chave é validada estruturalmente (44 dígitos,
// DV correto); se inválida o documento permanece em PROCESSING.
func (d *FiscalDocument) Authorize(rawKey, protocolNumber string, protocolDate time.Time) error {
	if d.Status != StatusProcessing {
		return fmt.Errorf("%w: authorize exige PROCESSING, status atual %s", domain.ErrInvalidState, d.Status)
	}
	key, err := fiscal.ParseAccessKey(rawKey)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidAccessKey, err)
	}
	if model := d.Type.ModelCode(); model != "" && key.Model() != model {
		return fmt.Errorf("%w: modelo %s da chave não corresponde ao tipo %s (modelo %s)",
			domain.ErrInvalidAccessKey, key.Model(), d.Type, model)
	}
	if protocolNumber == "" {
		return domain.ErrMissingProtocol
	}
	if protocolDate.IsZero() {
		return fmt.Errorf("%w: data do protocolo é obrigatória", domain.ErrInvalidInput)
	}

	d.AccessKey = key
	d.ProtocolNumber = protocolNumber
	d.ProtocolDate = protocolDate
	d.Status = StatusAuthorized
	d.touch()
	return nil
}

// Cancel transiciona AUTHORIZED → CANCELLED. Regras da autoridade: justificativa
// com no mínimo 15 caracteres, protocolo de cancelamento obrigatório e dentro
// da janela legal contada a partir da autorização (política injetada, não constante).
func (d *FiscalDocument) Cancel(reason, cancelProtocol string, now time.Time, window time.Duration) error {
	if d.Status != StatusAuthorized {
		return fmt.Errorf("%w: cancel exige AUTHORIZED, status atual %s", domain.ErrInvalidState, d.Status)
	}
	if utf8.RuneCountInString(reason) < 15 {
		return domain.ErrShortCancelReason
	}
	if cancelProtocol == "" {
		return domain.ErrMissingProtocol
	}
	if window > 0 && now.After(d.ProtocolDate.Add(window)) {
		return fmt.Errorf("%w: autorização em %s, janela de %s", domain.ErrCancelWindowOver,
			d.ProtocolDate.Format(time.RFC3339), window)
	}

	d.CancelReason = reason
	d.CancelProtocol = cancelProtocol
	d.Status = StatusCancelled
	d.touch()
	return nil
}

// CheckVersion recusa a aplicação de uma mutação se a versão esperada pelo
// chamador estiver desatualizada (outro escritor já alterou o documento).
func (d *FiscalDocument) CheckVersion(expected int) error {
	if expected != d.Version {
		return fmt.Errorf("%w: esperada %d, atual %d", domain.ErrStaleVersion, expected, d.Version)
	}
	return nil
}

func (d *FiscalDocument) recomputeNetAmount() {
	total := decimal.Zero
	for _, item := range d.Items {
		total = total.Add(item.Total())
	}
	d.NetAmount = total.Round(2)
}

func (d *FiscalDocument) touch() {
	d.Version++
	d.UpdatedAt = time.Now()
}
