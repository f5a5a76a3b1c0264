package fiscal_test

import (
	"context"
	"crypto/tls"
	"fmt"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appfiscal "github.com/pedrojuniorgyn/AuraCore-sub019/internal/application/fiscal"
	"github.com/pedrojuniorgyn/AuraCore-sub019/internal/domain"
	"github.com/pedrojuniorgyn/AuraCore-sub019/internal/domain/entity"
	domfiscal "github.com/pedrojuniorgyn/AuraCore-sub019/internal/domain/fiscal"
	"github.com/pedrojuniorgyn/AuraCore-sub019/internal/domain/repository"
	"github.com/pedrojuniorgyn/AuraCore-sub019/internal/infrastructure/sefaz"
	pkgfiscal "github.com/pedrojuniorgyn/AuraCore-sub019/pkg/fiscal"
	"github.com/pedrojuniorgyn/AuraCore-sub019/pkg/logger"
)

// ── Fakes ─────────────────────────────────────────────────────────────────────

type fakeDocRepo struct {
	mu   sync.Mutex
	docs map[string]*entity.FiscalDocument
}

func newFakeDocRepo() *fakeDocRepo {
	return &fakeDocRepo{docs: map[string]*entity.FiscalDocument{}}
}

func (r *fakeDocRepo) Create(_ context.Context, doc *entity.FiscalDocument) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *doc
	r.docs[doc.ID] = &cp
	return nil
}

func (r *fakeDocRepo) GetByID(_ context.Context, orgID, branchID int64, id string) (*entity.FiscalDocument, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[id]
	if !ok || doc.OrganizationID != orgID || doc.BranchID != branchID {
		return nil, domain.ErrNotFound
	}
	cp := *doc
	return &cp, nil
}

func (r *fakeDocRepo) Update(_ context.Context, doc *entity.FiscalDocument, previousVersion int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.docs[doc.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if current.Version != previousVersion {
		return domain.ErrStaleVersion
	}
	cp := *doc
	r.docs[doc.ID] = &cp
	return nil
}

func (r *fakeDocRepo) ExistsByAccessKey(_ context.Context, orgID int64, accessKey string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, doc := range r.docs {
		if doc.OrganizationID == orgID && doc.AccessKey.String() == accessKey {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeDocRepo) List(_ context.Context, orgID, branchID int64, filter repository.DocumentFilter) ([]*entity.FiscalDocument, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.FiscalDocument
	for _, doc := range r.docs {
		if doc.OrganizationID != orgID || doc.BranchID != branchID {
			continue
		}
		if filter.Status != "" && doc.Status != filter.Status {
			continue
		}
		cp := *doc
		out = append(out, &cp)
	}
	return out, nil
}

// fakeAuthority devolve as respostas programadas na ordem, uma por chamada.
type fakeAuthority struct {
	mu        sync.Mutex
	responses []*sefaz.Response
	errs      []error
	calls     int
	lastXML   []byte
}

func (a *fakeAuthority) next() (*sefaz.Response, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	i := a.calls
	a.calls++
	var err error
	if i < len(a.errs) {
		err = a.errs[i]
	}
	var resp *sefaz.Response
	if i < len(a.responses) {
		resp = a.responses[i]
	}
	return resp, err
}

func (a *fakeAuthority) Authorize(_ context.Context, signedXML []byte) (*sefaz.Response, error) {
	a.mu.Lock()
	a.lastXML = signedXML
	a.mu.Unlock()
	return a.next()
}

func (a *fakeAuthority) Cancel(_ context.Context, _, _, _ string) (*sefaz.Response, error) {
	return a.next()
}

// passBuilder serializa o mínimo necessário para o fluxo.
type passBuilder struct{}

func (passBuilder) Build(doc *entity.FiscalDocument, key domfiscal.AccessKey) ([]byte, error) {
	return []byte("<NFe><infNFe Id=\"NFe" + key.String() + "\"/></NFe>"), nil
}

// passSigner devolve o XML como veio (sem assinatura de verdade).
type passSigner struct{}

func (passSigner) Sign(xmlBytes []byte, _ tls.Certificate) ([]byte, error) {
	return xmlBytes, nil
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Env: "production", Level: "error"})
}

func fastRetry() sefaz.RetryConfig {
	return sefaz.RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Timeout: time.Second}
}

func draftWithItem(t *testing.T, repo *fakeDocRepo) *entity.FiscalDocument {
	t.Helper()
	uc := appfiscal.NewDocumentUseCase(repo)
	doc, err := uc.Create(context.Background(), appfiscal.CreateDocumentInput{
		OrganizationID: 1, BranchID: 1,
		Type:       entity.TypeGoodsInvoice,
		Series:     1,
		Number:     123457,
		IssuerCNPJ: "06117473000150",
		IssueDate:  time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	doc, err = uc.AddItem(context.Background(), 1, 1, doc.ID, appfiscal.AddItemInput{
		ProductCode: "PRD-001",
		CFOP:        "5102",
		Quantity:    decimal.NewFromInt(10),
		UnitPrice:   decimal.NewFromFloat(99.90),
	})
	require.NoError(t, err)
	return doc
}

func authorizeUC(repo *fakeDocRepo, authority *fakeAuthority) *appfiscal.AuthorizeDocumentUseCase {
	return appfiscal.NewAuthorizeDocumentUseCase(
		repo, passBuilder{}, passSigner{}, authority,
		tls.Certificate{}, fastRetry(), pkgfiscal.UFGoias, testLogger(),
	)
}

// authorizedResponse monta a resposta 100 ecoando a chave enviada no XML.
func protocolResponse(cStat int) *sefaz.Response {
	return &sefaz.Response{
		StatusCode:   200,
		CStat:        cStat,
		Message:      "Autorizado o uso da NF-e",
		Protocol:     "152260000012345",
		ProtocolDate: time.Date(2026, 9, 10, 14, 30, 0, 0, time.UTC),
	}
}

// ── DocumentUseCase ───────────────────────────────────────────────────────────

func TestDocumentUseCase_CreateEAddItem(t *testing.T) {
	repo := newFakeDocRepo()
	doc := draftWithItem(t, repo)

	assert.NotEmpty(t, doc.ID)
	assert.Equal(t, entity.StatusDraft, doc.Status)
	require.Len(t, doc.Items, 1)
	assert.Equal(t, 1, doc.Items[0].LineNumber)
	assert.True(t, doc.NetAmount.Equal(decimal.NewFromFloat(999.00)), "valor líquido recalculado: 10 × 99,90")
}

func TestDocumentUseCase_AddItemComCFOPInvalido(t *testing.T) {
	repo := newFakeDocRepo()
	doc := draftWithItem(t, repo)

	_, err := appfiscal.NewDocumentUseCase(repo).AddItem(context.Background(), 1, 1, doc.ID, appfiscal.AddItemInput{
		ProductCode: "PRD-002",
		CFOP:        "4102", // primeiro dígito 4 não existe no catálogo
		Quantity:    decimal.NewFromInt(1),
		UnitPrice:   decimal.NewFromInt(10),
	})
	assert.Error(t, err)
}

func TestDocumentUseCase_TenantErrado(t *testing.T) {
	repo := newFakeDocRepo()
	doc := draftWithItem(t, repo)

	_, err := appfiscal.NewDocumentUseCase(repo).Get(context.Background(), 99, 1, doc.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound, "documento de outro tenant é invisível")
}

// ── AuthorizeDocumentUseCase ──────────────────────────────────────────────────

func TestAuthorize_FluxoCompleto(t *testing.T) {
	repo := newFakeDocRepo()
	doc := draftWithItem(t, repo)
	authority := &fakeAuthority{responses: []*sefaz.Response{protocolResponse(100)}}

	result, err := authorizeUC(repo, authority).Authorize(context.Background(), 1, 1, doc.ID)
	require.NoError(t, err)

	assert.True(t, result.Authorized)
	assert.Equal(t, 100, result.CStat)
	assert.Len(t, result.AccessKey, 44)

	stored, err := repo.GetByID(context.Background(), 1, 1, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusAuthorized, stored.Status)
	assert.Equal(t, "152260000012345", stored.ProtocolNumber)
	assert.Equal(t, result.AccessKey, stored.AccessKey.String())
	assert.NotEmpty(t, authority.lastXML, "o XML assinado chegou à autoridade")
}

func TestAuthorize_RejeicaoDeNegocioFicaEmProcessing(t *testing.T) {
	repo := newFakeDocRepo()
	doc := draftWithItem(t, repo)
	authority := &fakeAuthority{responses: []*sefaz.Response{{
		StatusCode: 200, CStat: 225, Message: "Falha no Schema XML",
	}}}

	result, err := authorizeUC(repo, authority).Authorize(context.Background(), 1, 1, doc.ID)
	require.NoError(t, err, "rejeição de negócio não é erro de transporte")

	assert.False(t, result.Authorized)
	assert.Equal(t, 225, result.CStat)
	assert.Equal(t, "Falha no Schema XML", result.Message)

	stored, err := repo.GetByID(context.Background(), 1, 1, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusProcessing, stored.Status, "documento aguarda correção e reenvio")
}

func TestAuthorize_ReenvioAposRejeicao(t *testing.T) {
	repo := newFakeDocRepo()
	doc := draftWithItem(t, repo)
	authority := &fakeAuthority{responses: []*sefaz.Response{
		{StatusCode: 200, CStat: 225, Message: "Falha no Schema XML"},
		protocolResponse(100),
	}}
	uc := authorizeUC(repo, authority)

	first, err := uc.Authorize(context.Background(), 1, 1, doc.ID)
	require.NoError(t, err)
	require.False(t, first.Authorized)

	// O documento rejeitado ficou em PROCESSING; o reenvio parte dali,
	// sem exigir um novo Submit.
	second, err := uc.Authorize(context.Background(), 1, 1, doc.ID)
	require.NoError(t, err)
	assert.True(t, second.Authorized)
	assert.Equal(t, 2, authority.calls, "o reenvio chegou à autoridade")

	stored, err := repo.GetByID(context.Background(), 1, 1, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusAuthorized, stored.Status)
	assert.Equal(t, "152260000012345", stored.ProtocolNumber)
}

func TestAuthorize_DuplicidadeViraErrDuplicate(t *testing.T) {
	repo := newFakeDocRepo()
	doc := draftWithItem(t, repo)
	authority := &fakeAuthority{responses: []*sefaz.Response{{
		StatusCode: 200, CStat: 204, Message: "Duplicidade de NF-e",
	}}}

	_, err := authorizeUC(repo, authority).Authorize(context.Background(), 1, 1, doc.ID)
	assert.ErrorIs(t, err, domain.ErrDuplicate)
}

func TestAuthorize_TransitorioERetomada(t *testing.T) {
	repo := newFakeDocRepo()
	doc := draftWithItem(t, repo)
	authority := &fakeAuthority{
		errs:      []error{fmt.Errorf("dial: %w", syscall.ECONNREFUSED), nil},
		responses: []*sefaz.Response{nil, protocolResponse(100)},
	}

	result, err := authorizeUC(repo, authority).Authorize(context.Background(), 1, 1, doc.ID)
	require.NoError(t, err)
	assert.True(t, result.Authorized)
	assert.Equal(t, 2, authority.calls, "a primeira tentativa falhou e foi repetida")
}

func TestAuthorize_SemItensNaoEnvia(t *testing.T) {
	repo := newFakeDocRepo()
	uc := appfiscal.NewDocumentUseCase(repo)
	doc, err := uc.Create(context.Background(), appfiscal.CreateDocumentInput{
		OrganizationID: 1, BranchID: 1,
		Type:       entity.TypeGoodsInvoice,
		Series:     1,
		Number:     7,
		IssuerCNPJ: "06117473000150",
		IssueDate:  time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	authority := &fakeAuthority{}
	_, err = authorizeUC(repo, authority).Authorize(context.Background(), 1, 1, doc.ID)
	assert.ErrorIs(t, err, domain.ErrEmptyItems)
	assert.Equal(t, 0, authority.calls, "documento vazio nunca chega à autoridade")
}

// ── CancelDocumentUseCase ─────────────────────────────────────────────────────

func authorizedDoc(t *testing.T, repo *fakeDocRepo) *entity.FiscalDocument {
	t.Helper()
	doc := draftWithItem(t, repo)
	authority := &fakeAuthority{responses: []*sefaz.Response{protocolResponse(100)}}
	_, err := authorizeUC(repo, authority).Authorize(context.Background(), 1, 1, doc.ID)
	require.NoError(t, err)
	stored, err := repo.GetByID(context.Background(), 1, 1, doc.ID)
	require.NoError(t, err)
	return stored
}

func cancelUC(repo *fakeDocRepo, authority *fakeAuthority, now time.Time) *appfiscal.CancelDocumentUseCase {
	policy := appfiscal.CancelPolicy{Default: 24 * time.Hour}
	return appfiscal.NewCancelDocumentUseCase(repo, authority, fastRetry(), policy,
		func() time.Time { return now }, testLogger())
}

func TestCancel_Homologado(t *testing.T) {
	repo := newFakeDocRepo()
	doc := authorizedDoc(t, repo)
	authority := &fakeAuthority{responses: []*sefaz.Response{{
		StatusCode: 200, CStat: 101, Message: "Cancelamento homologado",
		Protocol: "152260000054321",
	}}}
	now := doc.ProtocolDate.Add(2 * time.Hour)

	result, err := cancelUC(repo, authority, now).Cancel(context.Background(), 1, 1, doc.ID,
		"cancelamento por erro de digitação no destinatário")
	require.NoError(t, err)
	assert.True(t, result.Cancelled)

	stored, err := repo.GetByID(context.Background(), 1, 1, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusCancelled, stored.Status)
	assert.Equal(t, "152260000054321", stored.CancelProtocol)
}

func TestCancel_JustificativaCurtaNaoTocaAAutoridade(t *testing.T) {
	repo := newFakeDocRepo()
	doc := authorizedDoc(t, repo)
	authority := &fakeAuthority{}

	_, err := cancelUC(repo, authority, doc.ProtocolDate.Add(time.Hour)).
		Cancel(context.Background(), 1, 1, doc.ID, "curta demais")
	assert.ErrorIs(t, err, domain.ErrShortCancelReason)
	assert.Equal(t, 0, authority.calls)
}

func TestCancel_ForaDaJanela(t *testing.T) {
	repo := newFakeDocRepo()
	doc := authorizedDoc(t, repo)
	authority := &fakeAuthority{}
	now := doc.ProtocolDate.Add(25 * time.Hour)

	_, err := cancelUC(repo, authority, now).Cancel(context.Background(), 1, 1, doc.ID,
		"cancelamento por erro de digitação no destinatário")
	assert.ErrorIs(t, err, domain.ErrCancelWindowOver)
	assert.Equal(t, 0, authority.calls)
}

func TestCancel_NaoHomologadoMantemAutorizado(t *testing.T) {
	repo := newFakeDocRepo()
	doc := authorizedDoc(t, repo)
	authority := &fakeAuthority{responses: []*sefaz.Response{{
		StatusCode: 200, CStat: 573, Message: "Duplicidade de evento",
	}}}

	result, err := cancelUC(repo, authority, doc.ProtocolDate.Add(time.Hour)).
		Cancel(context.Background(), 1, 1, doc.ID, "cancelamento por erro de digitação no destinatário")
	require.NoError(t, err)
	assert.False(t, result.Cancelled)

	stored, err := repo.GetByID(context.Background(), 1, 1, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusAuthorized, stored.Status)
}

func TestCancel_DocumentoNaoAutorizado(t *testing.T) {
	repo := newFakeDocRepo()
	doc := draftWithItem(t, repo)
	authority := &fakeAuthority{}

	_, err := cancelUC(repo, authority, time.Now()).Cancel(context.Background(), 1, 1, doc.ID,
		"cancelamento por erro de digitação no destinatário")
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}
