package fiscal

import (
	"context"
	"crypto/tls"
	"fmt"
	"math/rand"
	"time"

	"github.com/pedrojuniorgyn/AuraCore-sub019/internal/domain"
	"github.com/pedrojuniorgyn/AuraCore-sub019/internal/domain/entity"
	domfiscal "github.com/pedrojuniorgyn/AuraCore-sub019/internal/domain/fiscal"
	"github.com/pedrojuniorgyn/AuraCore-sub019/internal/domain/repository"
	"github.com/pedrojuniorgyn/AuraCore-sub019/internal/infrastructure/sefaz"
	pkgfiscal "github.com/pedrojuniorgyn/AuraCore-sub019/pkg/fiscal"
	"github.com/pedrojuniorgyn/AuraCore-sub019/pkg/logger"
)

// AuthorizationResult resultado do envio à autoridade. Rejeição de negócio
// (cStat fora da família de autorização) NÃO é erro: o cStat e o motivo voltam
// intocados para o chamador decidir o que fazer.
type AuthorizationResult struct {
	Document   *entity.FiscalDocument
	AccessKey  string
	CStat      int
	Message    string
	Authorized bool
}

// AuthorizeDocumentUseCase orquestra o ciclo de autorização:
//
//	Submit → chave de acesso → XML → assinatura → envio com retry → Authorize
//
// O documento é persistido em PROCESSING antes do envio; uma queda no meio do
// ciclo deixa o documento recuperável, nunca em estado inconsistente. Um
// documento já em PROCESSING (rejeitado pela autoridade ou recuperado após
// queda) é reenviado direto, sem novo Submit.
type AuthorizeDocumentUseCase struct {
	docRepo    repository.FiscalDocumentRepository
	xmlBuilder XMLBuilder
	signer     Signer
	authority  sefaz.AuthorityClient
	cert       tls.Certificate
	retryCfg   sefaz.RetryConfig
	ufCode     int
	log        *logger.Logger
}

// NewAuthorizeDocumentUseCase constrói o caso de uso. ufCode é o código IBGE
// da UF do emitente (campo cUF da chave).
func NewAuthorizeDocumentUseCase(
	docRepo repository.FiscalDocumentRepository,
	xmlBuilder XMLBuilder,
	signer Signer,
	authority sefaz.AuthorityClient,
	cert tls.Certificate,
	retryCfg sefaz.RetryConfig,
	ufCode int,
	log *logger.Logger,
) *AuthorizeDocumentUseCase {
	return &AuthorizeDocumentUseCase{
		docRepo:    docRepo,
		xmlBuilder: xmlBuilder,
		signer:     signer,
		authority:  authority,
		cert:       cert,
		retryCfg:   retryCfg,
		ufCode:     ufCode,
		log:        log,
	}
}

// Authorize envia o documento para autorização da SEFAZ.
func (uc *AuthorizeDocumentUseCase) Authorize(ctx context.Context, orgID, branchID int64, docID string) (*AuthorizationResult, error) {
	doc, err := uc.docRepo.GetByID(ctx, orgID, branchID, docID)
	if err != nil {
		return nil, err
	}

	previousVersion := doc.Version
	resend := doc.Status == entity.StatusProcessing
	if !resend {
		if err := doc.Submit(); err != nil {
			return nil, err
		}
	}

	key, err := uc.generateKey(doc)
	if err != nil {
		return nil, err
	}

	// Deduplicação antes de tocar a autoridade: o mesmo documento enviado
	// duas vezes devolveria cStat 204 e queimaria o número.
	exists, err := uc.docRepo.ExistsByAccessKey(ctx, orgID, key.String())
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%w: chave %s já utilizada", domain.ErrDuplicate, key.String())
	}

	if !resend {
		if err := uc.docRepo.Update(ctx, doc, previousVersion); err != nil {
			return nil, err
		}
		previousVersion = doc.Version
	}

	xmlBytes, err := uc.xmlBuilder.Build(doc, key)
	if err != nil {
		return nil, fmt.Errorf("montar XML: %w", err)
	}
	signedXML, err := uc.signer.Sign(xmlBytes, uc.cert)
	if err != nil {
		return nil, fmt.Errorf("assinar XML: %w", err)
	}

	resp, err := sefaz.ExecuteWithRetry(ctx, uc.retryCfg, func(ctx context.Context) (*sefaz.Response, error) {
		return uc.authority.Authorize(ctx, signedXML)
	})
	if err != nil {
		return nil, err
	}

	result := &AuthorizationResult{
		Document:  doc,
		AccessKey: key.String(),
		CStat:     resp.CStat,
		Message:   resp.Message,
	}

	switch {
	case pkgfiscal.IsAuthorizedStatus(resp.CStat):
		authorizedKey := resp.AccessKey
		if authorizedKey == "" {
			authorizedKey = key.String()
		}
		protocolDate := resp.ProtocolDate
		if protocolDate.IsZero() {
			protocolDate = time.Now()
		}
		if err := doc.Authorize(authorizedKey, resp.Protocol, protocolDate); err != nil {
			return nil, err
		}
		if err := uc.docRepo.Update(ctx, doc, previousVersion); err != nil {
			return nil, err
		}
		result.Authorized = true
		uc.log.Info().
			Str("document_id", doc.ID).
			Str("access_key", authorizedKey).
			Str("protocol", resp.Protocol).
			Msg("documento autorizado")

	case resp.CStat == pkgfiscal.CStatDuplicate:
		uc.log.Warn().
			Str("document_id", doc.ID).
			Str("access_key", key.String()).
			Msg("autoridade acusou duplicidade")
		return nil, fmt.Errorf("%w: %s", domain.ErrDuplicate, resp.Message)

	default:
		// Rejeição de negócio: o documento fica em PROCESSING e o cStat
		// volta intocado.
		uc.log.Warn().
			Str("document_id", doc.ID).
			Int("cstat", resp.CStat).
			Str("motivo", resp.Message).
			Msg("documento rejeitado pela autoridade")
	}
	return result, nil
}

func (uc *AuthorizeDocumentUseCase) generateKey(doc *entity.FiscalDocument) (domfiscal.AccessKey, error) {
	model := doc.Type.ModelCode()
	if model == "" {
		return domfiscal.AccessKey{}, fmt.Errorf("%w: documento do tipo %s não transita pela SEFAZ estadual", domain.ErrInvalidInput, doc.Type)
	}
	return domfiscal.GenerateAccessKey(domfiscal.AccessKeyParams{
		UF:           uc.ufCode,
		YearMonth:    doc.IssueDate.Format("0601"),
		CNPJ:         doc.IssuerCNPJ,
		Model:        model,
		Series:       doc.Series,
		Number:       doc.Number,
		EmissionType: pkgfiscal.EmissionNormal,
		NumericCode:  rand.Intn(100000000),
	})
}
