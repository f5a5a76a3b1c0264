// Package sefaz implementa a comunicação com os web services da autoridade
// fiscal: envio para autorização, registro de evento de cancelamento e a
// política de retry usada em toda chamada.
package sefaz

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// ── Constantes de ambiente ─────────────────────────────────────────────────────

const (
	// EnvProduction ambiente de produção da SEFAZ (tpAmb = 1).
	EnvProduction = "1"
	// EnvHomologation ambiente de homologação/testes (tpAmb = 2).
	EnvHomologation = "2"

	urlAuthorizeProd = "https://nfe.svrs.rs.gov.br/ws/NfeAutorizacao/NFeAutorizacao4.asmx"
	urlAuthorizeHom  = "https://nfe-homologacao.svrs.rs.gov.br/ws/NfeAutorizacao/NFeAutorizacao4.asmx"
	urlEventProd     = "https://nfe.svrs.rs.gov.br/ws/recepcaoevento/recepcaoevento4.asmx"
	urlEventHom      = "https://nfe-homologacao.svrs.rs.gov.br/ws/recepcaoevento/recepcaoevento4.asmx"

	soapNS        = "http://www.w3.org/2003/05/soap-envelope"
	nfeNS         = "http://www.portalfiscal.inf.br/nfe"
	wsdlAuthorize = "http://www.portalfiscal.inf.br/nfe/wsdl/NFeAutorizacao4"
	wsdlEvent     = "http://www.portalfiscal.inf.br/nfe/wsdl/NFeRecepcaoEvento4"
)

// ── Porta (interface) ──────────────────────────────────────────────────────────

// Response resultado de uma operação contra a autoridade: status HTTP + corpo
// interpretado (cStat, protocolo, chave).
type Response struct {
	StatusCode   int
	CStat        int
	Message      string // xMotivo
	Protocol     string // nProt
	ProtocolDate time.Time
	AccessKey    string // chNFe devolvida pela SEFAZ
	Body         []byte // corpo bruto, para diagnóstico
}

// AuthorityClient porta de saída para a autoridade fiscal. A implementação
// concreta usa SOAP; para testes injeta-se um fake. Cada método é UMA
// tentativa de transporte: o retry fica por conta de ExecuteWithRetry.
type AuthorityClient interface {
	// Authorize envia o XML assinado para autorização.
	Authorize(ctx context.Context, signedXML []byte) (*Response, error)
	// Cancel registra o evento de cancelamento de um documento autorizado.
	Cancel(ctx context.Context, accessKey, protocol, reason string) (*Response, error)
}

// ── Implementação SOAP ────────────────────────────────────────────────────────

// Client implementa AuthorityClient contra os web services da SEFAZ.
type Client struct {
	httpClient *http.Client
	env        string
}

// NewClient constrói o cliente. env é "1" (produção) ou "2" (homologação).
// O timeout de rede fica generoso: o corte por tentativa é do retry.
func NewClient(env string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		env:        env,
	}
}

var _ AuthorityClient = (*Client)(nil)

// ── Estruturas SOAP ───────────────────────────────────────────────────────────

type soapEnvelope struct {
	XMLName xml.Name `xml:"soap12:Envelope"`
	XmlnsS  string   `xml:"xmlns:soap12,attr"`
	Body    soapBody `xml:"soap12:Body"`
}

type soapBody struct {
	Content any
}

func (b soapBody) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	start.Name.Local = "soap12:Body"
	if err := e.EncodeToken(start); err != nil {
		return err
	}
	if err := e.Encode(b.Content); err != nil {
		return err
	}
	return e.EncodeToken(start.End())
}

type dadosMsg struct {
	XMLName xml.Name `xml:"nfeDadosMsg"`
	Xmlns   string   `xml:"xmlns,attr"`
	Payload string   `xml:",innerxml"`
}

type cancelEventPayload struct {
	XMLName  xml.Name `xml:"envEvento"`
	Xmlns    string   `xml:"xmlns,attr"`
	Version  string   `xml:"versao,attr"`
	TpAmb    string   `xml:"evento>infEvento>tpAmb"`
	ChNFe    string   `xml:"evento>infEvento>chNFe"`
	TpEvento string   `xml:"evento>infEvento>tpEvento"`
	NProt    string   `xml:"evento>infEvento>detEvento>nProt"`
	XJust    string   `xml:"evento>infEvento>detEvento>xJust"`
}

// ── Estruturas de resposta ────────────────────────────────────────────────────

type soapResponseEnvelope struct {
	Body soapResponseBody `xml:"Body"`
}

type soapResponseBody struct {
	RetEnviNFe *retEnviNFe `xml:"nfeResultMsg>retEnviNFe"`
	RetEvento  *retEvento  `xml:"nfeResultMsg>retEnvEvento"`
	Fault      *soapFault  `xml:"Fault"`
}

type retEnviNFe struct {
	CStat   string   `xml:"cStat"`
	XMotivo string   `xml:"xMotivo"`
	ProtNFe *infProt `xml:"protNFe>infProt"`
}

type infProt struct {
	ChNFe    string `xml:"chNFe"`
	DhRecbto string `xml:"dhRecbto"`
	NProt    string `xml:"nProt"`
	CStat    string `xml:"cStat"`
	XMotivo  string `xml:"xMotivo"`
}

type retEvento struct {
	CStat       string `xml:"retEvento>infEvento>cStat"`
	XMotivo     string `xml:"retEvento>infEvento>xMotivo"`
	NProt       string `xml:"retEvento>infEvento>nProt"`
	DhRegEvento string `xml:"retEvento>infEvento>dhRegEvento"`
}

type soapFault struct {
	Code   string `xml:"Code>Value"`
	Reason string `xml:"Reason>Text"`
}

// ── Operações ─────────────────────────────────────────────────────────────────

// Authorize envia o lote com o XML assinado para o serviço de autorização.
func (c *Client) Authorize(ctx context.Context, signedXML []byte) (*Response, error) {
	if len(signedXML) == 0 {
		return nil, fmt.Errorf("sefaz: XML assinado vazio")
	}
	body := &dadosMsg{
		Xmlns:   wsdlAuthorize,
		Payload: `<enviNFe xmlns="` + nfeNS + `" versao="4.00"><idLote>1</idLote><indSinc>1</indSinc>` + string(signedXML) + `</enviNFe>`,
	}
	return c.post(ctx, c.authorizeURL(), body)
}

// Cancel registra o evento de cancelamento (tpEvento 110111).
func (c *Client) Cancel(ctx context.Context, accessKey, protocol, reason string) (*Response, error) {
	if accessKey == "" || protocol == "" {
		return nil, fmt.Errorf("sefaz: chave e protocolo são obrigatórios no cancelamento")
	}
	payload := &cancelEventPayload{
		Xmlns:    nfeNS,
		Version:  "1.00",
		TpAmb:    c.env,
		ChNFe:    accessKey,
		TpEvento: "110111",
		NProt:    protocol,
		XJust:    reason,
	}
	inner, err := xml.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("sefaz: serializar evento de cancelamento: %w", err)
	}
	body := &dadosMsg{Xmlns: wsdlEvent, Payload: string(inner)}
	return c.post(ctx, c.eventURL(), body)
}

func (c *Client) authorizeURL() string {
	if c.env == EnvProduction {
		return urlAuthorizeProd
	}
	return urlAuthorizeHom
}

func (c *Client) eventURL() string {
	if c.env == EnvProduction {
		return urlEventProd
	}
	return urlEventHom
}

func (c *Client) post(ctx context.Context, url string, content any) (*Response, error) {
	envelope := soapEnvelope{
		XmlnsS: soapNS,
		Body:   soapBody{Content: content},
	}
	payload, err := xml.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("sefaz: serializar envelope: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("sefaz: criar request: %w", err)
	}
	req.Header.Set("Content-Type", "application/soap+xml; charset=utf-8")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("sefaz: timeout ou cancelamento: %w", ctx.Err())
		}
		return nil, fmt.Errorf("sefaz: chamada HTTP falhou: %w", err)
	}
	defer resp.Body.Close()

	rawBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20)) // max 1 MB
	if err != nil {
		return nil, fmt.Errorf("sefaz: ler resposta: %w", err)
	}

	return parseResponse(resp.StatusCode, rawBody)
}

// parseResponse desempacota a resposta SOAP e extrai cStat, protocolo e chave.
// Resposta não parseável não aborta: devolve o corpo bruto para diagnóstico.
func parseResponse(statusCode int, rawBody []byte) (*Response, error) {
	out := &Response{StatusCode: statusCode, Body: rawBody}

	var envResp soapResponseEnvelope
	if err := xml.Unmarshal(rawBody, &envResp); err != nil {
		out.Message = "resposta SOAP não parseável"
		return out, nil
	}

	if envResp.Body.Fault != nil {
		out.Message = fmt.Sprintf("SOAP Fault [%s]: %s", envResp.Body.Fault.Code, envResp.Body.Fault.Reason)
		return out, nil
	}

	if ret := envResp.Body.RetEnviNFe; ret != nil {
		if prot := ret.ProtNFe; prot != nil {
			out.CStat, _ = strconv.Atoi(prot.CStat)
			out.Message = prot.XMotivo
			out.Protocol = prot.NProt
			out.AccessKey = prot.ChNFe
			out.ProtocolDate = parseAuthorityTime(prot.DhRecbto)
		} else {
			out.CStat, _ = strconv.Atoi(ret.CStat)
			out.Message = ret.XMotivo
		}
		return out, nil
	}

	if ret := envResp.Body.RetEvento; ret != nil {
		out.CStat, _ = strconv.Atoi(ret.CStat)
		out.Message = ret.XMotivo
		out.Protocol = ret.NProt
		out.ProtocolDate = parseAuthorityTime(ret.DhRegEvento)
		return out, nil
	}

	out.Message = "resposta SOAP vazia ou inesperada"
	return out, nil
}

// parseAuthorityTime interpreta o timestamp da SEFAZ (RFC 3339 com offset).
func parseAuthorityTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts
	}
	return time.Time{}
}
