package entity_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pedrojuniorgyn/AuraCore-sub019/internal/domain"
	"github.com/pedrojuniorgyn/AuraCore-sub019/internal/domain/entity"
	"github.com/pedrojuniorgyn/AuraCore-sub019/internal/domain/fiscal"
)

// Chave modelo 55 com DV módulo 11 correto (mesmo vetor do pacote fiscal).
const testKey55 = "52260906117473000150550010001234571123456789"

func newDraft(t *testing.T) *entity.FiscalDocument {
	t.Helper()
	doc, err := entity.NewFiscalDocument(1, 1, entity.TypeGoodsInvoice, 1, 123457,
		"06117473000150", time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	return doc
}

func newItem(t *testing.T, qty, price int64) entity.DocumentItem {
	t.Helper()
	cfop, err := fiscal.NewCFOP("5102")
	require.NoError(t, err)
	return entity.DocumentItem{
		ProductCode: "PROD-001",
		CFOP:        cfop,
		Quantity:    decimal.NewFromInt(qty),
		UnitPrice:   decimal.NewFromInt(price),
	}
}

func TestNewFiscalDocument_TenantInvalido(t *testing.T) {
	_, err := entity.NewFiscalDocument(0, 1, entity.TypeGoodsInvoice, 1, 1, "06117473000150", time.Now())
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = entity.NewFiscalDocument(1, -5, entity.TypeGoodsInvoice, 1, 1, "06117473000150", time.Now())
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestNewFiscalDocument_CamposObrigatorios(t *testing.T) {
	_, err := entity.NewFiscalDocument(1, 1, entity.DocumentType("XYZ"), 1, 1, "06117473000150", time.Now())
	assert.ErrorIs(t, err, domain.ErrInvalidInput, "tipo fora do conjunto fechado")

	_, err = entity.NewFiscalDocument(1, 1, entity.TypeGoodsInvoice, 1, 1, "123", time.Now())
	assert.ErrorIs(t, err, domain.ErrInvalidInput, "CNPJ curto")

	_, err = entity.NewFiscalDocument(1, 1, entity.TypeGoodsInvoice, 1, 1, "06117473000150", time.Time{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput, "data de emissão zerada")
}

func TestAddItem_RecalculaValorLiquido(t *testing.T) {
	doc := newDraft(t)

	require.NoError(t, doc.AddItem(newItem(t, 10, 100)))
	assert.True(t, doc.NetAmount.Equal(decimal.NewFromInt(1000)), "net = 10 × 100")

	require.NoError(t, doc.AddItem(newItem(t, 2, 50)))
	assert.True(t, doc.NetAmount.Equal(decimal.NewFromInt(1100)), "net recalculado com o segundo item")
	assert.Equal(t, 2, doc.Items[1].LineNumber, "numeração sequencial das linhas")
}

func TestAddItem_DepoisDoSubmitFalha(t *testing.T) {
	doc := newDraft(t)
	require.NoError(t, doc.AddItem(newItem(t, 1, 10)))
	require.NoError(t, doc.Submit())

	err := doc.AddItem(newItem(t, 1, 10))
	assert.ErrorIs(t, err, domain.ErrItemsLocked)
	assert.Len(t, doc.Items, 1, "lista de itens não deve mudar")
}

func TestSubmit_SemItensFalha(t *testing.T) {
	doc := newDraft(t)
	err := doc.Submit()
	assert.ErrorIs(t, err, domain.ErrEmptyItems)
	assert.Equal(t, entity.StatusDraft, doc.Status)
}

func TestAuthorize_FluxoCompleto(t *testing.T) {
	doc := newDraft(t)
	require.NoError(t, doc.AddItem(newItem(t, 10, 100)))
	require.NoError(t, doc.Submit())
	assert.Equal(t, entity.StatusProcessing, doc.Status)

	protocolDate := time.Now()
	require.NoError(t, doc.Authorize(testKey55, "PROT-1", protocolDate))

	assert.Equal(t, entity.StatusAuthorized, doc.Status)
	assert.Equal(t, testKey55, doc.AccessKey.String())
	assert.Equal(t, "PROT-1", doc.ProtocolNumber)
}

func TestAuthorize_ChaveInvalidaMantemProcessing(t *testing.T) {
	doc := newDraft(t)
	require.NoError(t, doc.AddItem(newItem(t, 1, 10)))
	require.NoError(t, doc.Submit())

	cases := []string{
		"",
		"12345",
		testKey55[:43] + "0", // DV trocado
		testKey55 + "9",      // 45 dígitos
	}
	for _, key := range cases {
		err := doc.Authorize(key, "PROT-1", time.Now())
		assert.ErrorIs(t, err, domain.ErrInvalidAccessKey, "chave %q", key)
		assert.Equal(t, entity.StatusProcessing, doc.Status, "documento deve permanecer em PROCESSING")
	}
}

func TestAuthorize_ModeloDaChaveDeveBaterComOTipo(t *testing.T) {
	// Documento de transporte (CT-e, modelo 57) com chave modelo 55.
	doc, err := entity.NewFiscalDocument(1, 1, entity.TypeTransportInvoice, 1, 123457,
		"06117473000150", time.Now())
	require.NoError(t, err)
	require.NoError(t, doc.AddItem(newItem(t, 1, 10)))
	require.NoError(t, doc.Submit())

	err = doc.Authorize(testKey55, "PROT-1", time.Now())
	assert.ErrorIs(t, err, domain.ErrInvalidAccessKey)
}

func TestAuthorize_ForaDeProcessingFalha(t *testing.T) {
	doc := newDraft(t)
	err := doc.Authorize(testKey55, "PROT-1", time.Now())
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestAuthorize_ProtocoloObrigatorio(t *testing.T) {
	doc := newDraft(t)
	require.NoError(t, doc.AddItem(newItem(t, 1, 10)))
	require.NoError(t, doc.Submit())

	err := doc.Authorize(testKey55, "", time.Now())
	assert.ErrorIs(t, err, domain.ErrMissingProtocol)
}

func authorizedDoc(t *testing.T) *entity.FiscalDocument {
	t.Helper()
	doc := newDraft(t)
	require.NoError(t, doc.AddItem(newItem(t, 10, 100)))
	require.NoError(t, doc.Submit())
	require.NoError(t, doc.Authorize(testKey55, "PROT-1", time.Now()))
	return doc
}

func TestCancel_JustificativaCurtaFalha(t *testing.T) {
	doc := authorizedDoc(t)
	err := doc.Cancel("curta", "PROT-C1", time.Now(), 24*time.Hour)
	assert.ErrorIs(t, err, domain.ErrShortCancelReason)
	assert.Equal(t, entity.StatusAuthorized, doc.Status)
}

func TestCancel_DentroDaJanela(t *testing.T) {
	doc := authorizedDoc(t)
	err := doc.Cancel("erro de digitação no destinatário", "PROT-C1", time.Now(), 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusCancelled, doc.Status)
	assert.Equal(t, "PROT-C1", doc.CancelProtocol)
}

func TestCancel_ForaDaJanelaFalha(t *testing.T) {
	doc := authorizedDoc(t)
	afterWindow := doc.ProtocolDate.Add(25 * time.Hour)
	err := doc.Cancel("erro de digitação no destinatário", "PROT-C1", afterWindow, 24*time.Hour)
	assert.ErrorIs(t, err, domain.ErrCancelWindowOver)
	assert.Equal(t, entity.StatusAuthorized, doc.Status)
}

func TestCancel_ProtocoloObrigatorio(t *testing.T) {
	doc := authorizedDoc(t)
	err := doc.Cancel("erro de digitação no destinatário", "", time.Now(), 24*time.Hour)
	assert.ErrorIs(t, err, domain.ErrMissingProtocol)
}

func TestCancel_SomenteDeAuthorized(t *testing.T) {
	doc := newDraft(t)
	err := doc.Cancel("erro de digitação no destinatário", "PROT-C1", time.Now(), 24*time.Hour)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestVersion_IncrementaACadaMutacao(t *testing.T) {
	doc := newDraft(t)
	assert.Equal(t, 1, doc.Version)

	require.NoError(t, doc.AddItem(newItem(t, 1, 10)))
	assert.Equal(t, 2, doc.Version)

	require.NoError(t, doc.Submit())
	assert.Equal(t, 3, doc.Version)

	assert.NoError(t, doc.CheckVersion(3))
	assert.ErrorIs(t, doc.CheckVersion(2), domain.ErrStaleVersion)
}
