// Serviço de assinatura digital XMLDSig para documentos fiscais eletrônicos.
// Pipeline determinístico: canonicaliza o elemento alvo → digest SHA-256 →
// assina o SignedInfo canonicalizado com RSA → injeta <ds:Signature> após o
// elemento assinado.

package signer

import (
	"bytes"
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/beevik/etree"
	"github.com/ucarion/c14n"
)

// DigitalSignatureService implementa a assinatura enveloped do documento fiscal.
// Sem estado mutável: o handle de credencial é read-only e pode ser
// compartilhado entre assinaturas concorrentes.
type DigitalSignatureService struct{}

// NewDigitalSignatureService cria o serviço.
func NewDigitalSignatureService() *DigitalSignatureService {
	return &DigitalSignatureService{}
}

// Sign assina o XML e injeta ds:Signature como irmão do elemento alvo.
// A credencial vem sempre injetada pelo chamador; o serviço nunca lê chave
// de local fixo.
func (s *DigitalSignatureService) Sign(xmlBytes []byte, cert tls.Certificate) ([]byte, error) {
	if len(xmlBytes) == 0 {
		return nil, fmt.Errorf("signer: XML vazio")
	}
	priv, ok := cert.PrivateKey.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("signer: a credencial deve incluir chave privada RSA")
	}
	x509Cert, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		return nil, fmt.Errorf("signer: parsear certificado: %w", err)
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(xmlBytes); err != nil {
		return nil, fmt.Errorf("signer: parsear XML: %w", err)
	}
	target := findSignedElement(doc)
	if target == nil {
		return nil, fmt.Errorf("signer: elemento %s não encontrado no XML", SignedElementTag)
	}
	refID := target.SelectAttrValue("Id", "")
	if refID == "" {
		return nil, fmt.Errorf("signer: elemento %s sem atributo Id", SignedElementTag)
	}

	// 1) Digest do elemento alvo canonicalizado.
	targetBytes, err := serializeElement(target)
	if err != nil {
		return nil, err
	}
	canonicalTarget, err := canonicalizeXML(targetBytes)
	if err != nil {
		canonicalTarget = targetBytes
	}
	docDigest := sha256.Sum256(canonicalTarget)
	docDigestB64 := base64.StdEncoding.EncodeToString(docDigest[:])

	// 2) SignedInfo (Reference #Id, digest SHA-256), assinado em forma canônica.
	signedInfoXML := buildSignedInfo(refID, docDigestB64)
	canonicalSignedInfo, err := canonicalizeXML([]byte(signedInfoXML))
	if err != nil {
		canonicalSignedInfo = []byte(signedInfoXML)
	}
	signHash := sha256.Sum256(canonicalSignedInfo)
	signatureValue, err := rsa.SignPKCS1v15(nil, priv, crypto.SHA256, signHash[:])
	if err != nil {
		return nil, fmt.Errorf("signer: assinar SignedInfo: %w", err)
	}

	// 3) Nó ds:Signature completo (KeyInfo com o certificado X.509).
	signatureXML := buildSignatureXML(signedInfoXML,
		base64.StdEncoding.EncodeToString(signatureValue),
		base64.StdEncoding.EncodeToString(x509Cert.Raw))

	// 4) Injetar a assinatura como irmão do elemento alvo.
	return injectSignature(doc, target, signatureXML)
}

func findSignedElement(doc *etree.Document) *etree.Element {
	root := doc.Root()
	if root == nil {
		return nil
	}
	if root.Tag == SignedElementTag {
		return root
	}
	return findByTag(root, SignedElementTag)
}

func findByTag(el *etree.Element, tag string) *etree.Element {
	for _, child := range el.ChildElements() {
		if child.Tag == tag {
			return child
		}
		if found := findByTag(child, tag); found != nil {
			return found
		}
	}
	return nil
}

// serializeElement escreve o subtree do elemento como documento próprio.
func serializeElement(el *etree.Element) ([]byte, error) {
	sub := etree.NewDocument()
	sub.SetRoot(el.Copy())
	var buf bytes.Buffer
	if _, err := sub.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("signer: serializar elemento alvo: %w", err)
	}
	return buf.Bytes(), nil
}

func canonicalizeXML(data []byte) ([]byte, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Entity = map[string]string{}
	return c14n.Canonicalize(dec)
}

func buildSignedInfo(refID, docDigestB64 string) string {
	var sb strings.Builder
	sb.WriteString(`<ds:SignedInfo xmlns:ds="` + NamespaceDS + `">`)
	sb.WriteString(`<ds:CanonicalizationMethod Algorithm="` + AlgC14N + `"/>`)
	sb.WriteString(`<ds:SignatureMethod Algorithm="` + AlgRSASHA256 + `"/>`)
	sb.WriteString(`<ds:Reference URI="#` + refID + `">`)
	sb.WriteString(`<ds:Transforms><ds:Transform Algorithm="` + TransformEnveloped + `"/>`)
	sb.WriteString(`<ds:Transform Algorithm="` + AlgC14N + `"/></ds:Transforms>`)
	sb.WriteString(`<ds:DigestMethod Algorithm="` + AlgSHA256 + `"/>`)
	sb.WriteString(`<ds:DigestValue>` + docDigestB64 + `</ds:DigestValue>`)
	sb.WriteString(`</ds:Reference>`)
	sb.WriteString(`</ds:SignedInfo>`)
	return sb.String()
}

func buildSignatureXML(signedInfoXML, signatureValueB64, certB64 string) string {
	var sb strings.Builder
	sb.WriteString(`<ds:Signature xmlns:ds="` + NamespaceDS + `">`)
	sb.WriteString(signedInfoXML)
	sb.WriteString(`<ds:SignatureValue>` + signatureValueB64 + `</ds:SignatureValue>`)
	sb.WriteString(`<ds:KeyInfo><ds:X509Data><ds:X509Certificate>` + certB64 + `</ds:X509Certificate></ds:X509Data></ds:KeyInfo>`)
	sb.WriteString(`</ds:Signature>`)
	return sb.String()
}

func injectSignature(doc *etree.Document, target *etree.Element, signatureXML string) ([]byte, error) {
	sigDoc := etree.NewDocument()
	if err := sigDoc.ReadFromString(signatureXML); err != nil {
		return nil, fmt.Errorf("signer: parsear nó Signature: %w", err)
	}
	sigRoot := sigDoc.Root()
	if sigRoot == nil {
		return nil, fmt.Errorf("signer: nó Signature sem raiz")
	}

	parent := target.Parent()
	if parent == nil {
		// Elemento alvo é a raiz: a assinatura vira o último filho dele.
		target.AddChild(sigRoot)
	} else {
		parent.AddChild(sigRoot)
	}

	var out bytes.Buffer
	if _, err := doc.WriteTo(&out); err != nil {
		return nil, fmt.Errorf("signer: serializar XML assinado: %w", err)
	}
	return out.Bytes(), nil
}
