package sefaz_test

import (
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pedrojuniorgyn/AuraCore-sub019/internal/domain/entity"
	domfiscal "github.com/pedrojuniorgyn/AuraCore-sub019/internal/domain/fiscal"
	"github.com/pedrojuniorgyn/AuraCore-sub019/internal/infrastructure/sefaz"
)

func buildableDocument(t *testing.T) *entity.FiscalDocument {
	t.Helper()
	doc, err := entity.NewFiscalDocument(1, 1, entity.TypeGoodsInvoice, 1, 123457,
		"06117473000150", time.Date(2026, 9, 10, 8, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	cfop, err := domfiscal.NewCFOP("5102")
	require.NoError(t, err)
	require.NoError(t, doc.AddItem(entity.DocumentItem{
		ProductCode: "PRD-001",
		CFOP:        cfop,
		Quantity:    decimal.NewFromInt(10),
		UnitPrice:   decimal.NewFromFloat(99.90),
	}))
	return doc
}

func buildableKey(t *testing.T) domfiscal.AccessKey {
	t.Helper()
	key, err := domfiscal.ParseAccessKey("52260906117473000150550010001234571123456789")
	require.NoError(t, err)
	return key
}

func TestXMLBuilder_EstruturaDoDocumento(t *testing.T) {
	doc := buildableDocument(t)
	key := buildableKey(t)

	out, err := sefaz.NewXMLBuilderService(sefaz.EnvHomologation).Build(doc, key)
	require.NoError(t, err)

	parsed := etree.NewDocument()
	require.NoError(t, parsed.ReadFromBytes(out))

	inf := parsed.FindElement("//infNFe")
	require.NotNil(t, inf)
	assert.Equal(t, "NFe"+key.String(), inf.SelectAttrValue("Id", ""), "o Id do infNFe é a âncora da assinatura")
	assert.Equal(t, "4.00", inf.SelectAttrValue("versao", ""))

	assert.Equal(t, "52", parsed.FindElement("//ide/cUF").Text())
	assert.Equal(t, "55", parsed.FindElement("//ide/mod").Text())
	assert.Equal(t, "123457", parsed.FindElement("//ide/nNF").Text())
	assert.Equal(t, "2", parsed.FindElement("//ide/tpAmb").Text())
	assert.Equal(t, "06117473000150", parsed.FindElement("//emit/CNPJ").Text())

	det := parsed.FindElement("//det")
	require.NotNil(t, det)
	assert.Equal(t, "1", det.SelectAttrValue("nItem", ""))
	assert.Equal(t, "5102", parsed.FindElement("//det/prod/CFOP").Text())
	assert.Equal(t, "10.0000", parsed.FindElement("//det/prod/qCom").Text())
	assert.Equal(t, "999.00", parsed.FindElement("//det/prod/vProd").Text())

	assert.Equal(t, "999.00", parsed.FindElement("//total/ICMSTot/vNF").Text(),
		"o total do XML vem do valor líquido do agregado")
}

func TestXMLBuilder_EntradasInvalidas(t *testing.T) {
	builder := sefaz.NewXMLBuilderService(sefaz.EnvHomologation)

	_, err := builder.Build(nil, buildableKey(t))
	assert.Error(t, err)

	doc := buildableDocument(t)
	_, err = builder.Build(doc, domfiscal.AccessKey{})
	assert.Error(t, err, "chave zerada não gera XML")

	svcDoc, err := entity.NewFiscalDocument(1, 1, entity.TypeServiceInvoice, 1, 1,
		"06117473000150", time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	_, err = builder.Build(svcDoc, buildableKey(t))
	assert.Error(t, err, "NFS-e não tem layout SEFAZ estadual")
}
