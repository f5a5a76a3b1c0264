package sefaz

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/pedrojuniorgyn/AuraCore-sub019/internal/domain/entity"
	domfiscal "github.com/pedrojuniorgyn/AuraCore-sub019/internal/domain/fiscal"
)

// XMLBuilderService monta o XML do documento fiscal no layout 4.00 do portal
// nacional (sem assinatura; o signer injeta o ds:Signature depois).
type XMLBuilderService struct {
	env string // tpAmb: "1" produção, "2" homologação
}

// NewXMLBuilderService cria o serviço.
func NewXMLBuilderService(env string) *XMLBuilderService {
	return &XMLBuilderService{env: env}
}

// Build gera o []byte do documento com o infNFe identificado pela chave: é
// esse Id que a Reference da assinatura aponta.
func (s *XMLBuilderService) Build(doc *entity.FiscalDocument, key domfiscal.AccessKey) ([]byte, error) {
	if doc == nil {
		return nil, fmt.Errorf("sefaz: documento nulo")
	}
	if key.IsZero() {
		return nil, fmt.Errorf("sefaz: chave de acesso é obrigatória")
	}
	model := doc.Type.ModelCode()
	if model == "" {
		return nil, fmt.Errorf("sefaz: documento do tipo %s não tem layout SEFAZ", doc.Type)
	}

	var buf bytes.Buffer
	enc := xml.NewEncoder(&buf)

	root := xml.StartElement{
		Name: xml.Name{Local: "NFe"},
		Attr: []xml.Attr{{Name: xml.Name{Local: "xmlns"}, Value: nfeNS}},
	}
	if err := enc.EncodeToken(root); err != nil {
		return nil, err
	}

	inf := xml.StartElement{
		Name: xml.Name{Local: "infNFe"},
		Attr: []xml.Attr{
			{Name: xml.Name{Local: "Id"}, Value: "NFe" + key.String()},
			{Name: xml.Name{Local: "versao"}, Value: "4.00"},
		},
	}
	if err := enc.EncodeToken(inf); err != nil {
		return nil, err
	}

	// ide: identificação do documento
	ide := xml.StartElement{Name: xml.Name{Local: "ide"}}
	_ = enc.EncodeToken(ide)
	writeElem(enc, "cUF", strconv.Itoa(key.UF()))
	writeElem(enc, "mod", model)
	writeElem(enc, "serie", strconv.Itoa(doc.Series))
	writeElem(enc, "nNF", strconv.FormatInt(doc.Number, 10))
	writeElem(enc, "dhEmi", doc.IssueDate.Format("2006-01-02T15:04:05-07:00"))
	writeElem(enc, "tpAmb", s.env)
	_ = enc.EncodeToken(ide.End())

	// emit: emitente
	emit := xml.StartElement{Name: xml.Name{Local: "emit"}}
	_ = enc.EncodeToken(emit)
	writeElem(enc, "CNPJ", doc.IssuerCNPJ)
	_ = enc.EncodeToken(emit.End())

	// det: uma linha por item, com o número da linha no atributo nItem
	for _, item := range doc.Items {
		det := xml.StartElement{
			Name: xml.Name{Local: "det"},
			Attr: []xml.Attr{{Name: xml.Name{Local: "nItem"}, Value: strconv.Itoa(item.LineNumber)}},
		}
		_ = enc.EncodeToken(det)

		prod := xml.StartElement{Name: xml.Name{Local: "prod"}}
		_ = enc.EncodeToken(prod)
		writeElem(enc, "cProd", item.ProductCode)
		writeElem(enc, "CFOP", item.CFOP.String())
		writeElem(enc, "qCom", formatDecimal(item.Quantity, 4))
		writeElem(enc, "vUnCom", formatDecimal(item.UnitPrice, 2))
		writeElem(enc, "vProd", formatDecimal(item.Total(), 2))
		_ = enc.EncodeToken(prod.End())

		_ = enc.EncodeToken(det.End())
	}

	// total: o valor líquido do agregado, nunca recalculado aqui
	total := xml.StartElement{Name: xml.Name{Local: "total"}}
	_ = enc.EncodeToken(total)
	icmsTot := xml.StartElement{Name: xml.Name{Local: "ICMSTot"}}
	_ = enc.EncodeToken(icmsTot)
	writeElem(enc, "vNF", formatDecimal(doc.NetAmount, 2))
	_ = enc.EncodeToken(icmsTot.End())
	_ = enc.EncodeToken(total.End())

	if err := enc.EncodeToken(inf.End()); err != nil {
		return nil, err
	}
	if err := enc.EncodeToken(root.End()); err != nil {
		return nil, err
	}
	if err := enc.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeElem(enc *xml.Encoder, local, value string) {
	start := xml.StartElement{Name: xml.Name{Local: local}}
	_ = enc.EncodeToken(start)
	_ = enc.EncodeToken(xml.CharData(value))
	_ = enc.EncodeToken(start.End())
}

func formatDecimal(d decimal.Decimal, places int32) string {
	return d.StringFixed(places)
}
