// Constantes XMLDSig para assinatura de documentos fiscais eletrônicos.

package signer

// Namespaces e algoritmos XMLDSig.
const (
	NamespaceDS        = "http://www.w3.org/2000/09/xmldsig#"
	AlgC14N            = "http://www.w3.org/TR/2001/REC-xml-c14n-20010315"
	AlgRSASHA256       = "http://www.w3.org/2001/04/xmldsig-more#rsa-sha256"
	AlgSHA256          = "http://www.w3.org/2000/09/xmldsig#sha256"
	TransformEnveloped = "http://www.w3.org/2000/09/xmldsig#enveloped-signature"
)

// SignedElementTag é o elemento alvo da assinatura no XML do documento
// (a Reference aponta para o atributo Id deste elemento).
const SignedElementTag = "infNFe"
