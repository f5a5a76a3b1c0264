package fiscal

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/pedrojuniorgyn/AuraCore-sub019/internal/domain"
	"github.com/pedrojuniorgyn/AuraCore-sub019/internal/domain/entity"
	"github.com/pedrojuniorgyn/AuraCore-sub019/internal/domain/repository"
	"github.com/pedrojuniorgyn/AuraCore-sub019/internal/infrastructure/sefaz"
	pkgfiscal "github.com/pedrojuniorgyn/AuraCore-sub019/pkg/fiscal"
	"github.com/pedrojuniorgyn/AuraCore-sub019/pkg/logger"
)

// CancelResult resultado do evento de cancelamento.
type CancelResult struct {
	Document  *entity.FiscalDocument
	CStat     int
	Message   string
	Cancelled bool
}

// CancelDocumentUseCase registra o evento de cancelamento na SEFAZ e, com a
// homologação, transiciona o documento para CANCELLED. As regras da
// justificativa e da janela legal ficam no agregado; aqui só se orquestra.
type CancelDocumentUseCase struct {
	docRepo   repository.FiscalDocumentRepository
	authority sefaz.AuthorityClient
	retryCfg  sefaz.RetryConfig
	policy    CancelPolicy
	now       func() time.Time
	log       *logger.Logger
}

// NewCancelDocumentUseCase constrói o caso de uso. now pode ser nil (usa
// time.Now); os testes injetam um relógio fixo.
func NewCancelDocumentUseCase(
	docRepo repository.FiscalDocumentRepository,
	authority sefaz.AuthorityClient,
	retryCfg sefaz.RetryConfig,
	policy CancelPolicy,
	now func() time.Time,
	log *logger.Logger,
) *CancelDocumentUseCase {
	if now == nil {
		now = time.Now
	}
	return &CancelDocumentUseCase{
		docRepo:   docRepo,
		authority: authority,
		retryCfg:  retryCfg,
		policy:    policy,
		now:       now,
		log:       log,
	}
}

// Cancel envia o evento de cancelamento com a justificativa informada.
func (uc *CancelDocumentUseCase) Cancel(ctx context.Context, orgID, branchID int64, docID, reason string) (*CancelResult, error) {
	doc, err := uc.docRepo.GetByID(ctx, orgID, branchID, docID)
	if err != nil {
		return nil, err
	}
	previousVersion := doc.Version

	// Pré-validação local: não vale a pena tocar a autoridade com um pedido
	// que o agregado rejeitaria de qualquer forma.
	if doc.Status != entity.StatusAuthorized {
		return nil, fmt.Errorf("%w: cancelamento exige AUTHORIZED, status atual %s", domain.ErrInvalidState, doc.Status)
	}
	if utf8.RuneCountInString(reason) < 15 {
		return nil, domain.ErrShortCancelReason
	}
	window := uc.policy.WindowFor(doc.Type)
	if window > 0 && uc.now().After(doc.ProtocolDate.Add(window)) {
		return nil, fmt.Errorf("%w: autorização em %s, janela de %s", domain.ErrCancelWindowOver,
			doc.ProtocolDate.Format(time.RFC3339), window)
	}

	resp, err := sefaz.ExecuteWithRetry(ctx, uc.retryCfg, func(ctx context.Context) (*sefaz.Response, error) {
		return uc.authority.Cancel(ctx, doc.AccessKey.String(), doc.ProtocolNumber, reason)
	})
	if err != nil {
		return nil, err
	}

	result := &CancelResult{
		Document: doc,
		CStat:    resp.CStat,
		Message:  resp.Message,
	}

	if !pkgfiscal.IsCancelHomologated(resp.CStat) {
		uc.log.Warn().
			Str("document_id", doc.ID).
			Int("cstat", resp.CStat).
			Str("motivo", resp.Message).
			Msg("cancelamento não homologado")
		return result, nil
	}

	if err := doc.Cancel(reason, resp.Protocol, uc.now(), window); err != nil {
		return nil, err
	}
	if err := uc.docRepo.Update(ctx, doc, previousVersion); err != nil {
		return nil, err
	}
	result.Cancelled = true
	uc.log.Info().
		Str("document_id", doc.ID).
		Str("cancel_protocol", resp.Protocol).
		Msg("cancelamento homologado")
	return result, nil
}
