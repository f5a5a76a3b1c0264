// Package fiscal contém catálogos e códigos alinhados aos layouts dos
// documentos fiscais eletrônicos (NF-e/CT-e/MDF-e) e às tabelas da SEFAZ.
package fiscal

// =============================================================================
// Códigos IBGE das UFs (campo cUF da chave de acesso)
// =============================================================================

const (
	UFGoias          = 52
	UFSaoPaulo       = 35
	UFRioDeJaneiro   = 33
	UFMinasGerais    = 31
	UFParana         = 41
	UFRioGrandeDoSul = 43
	UFBahia          = 29
	UFPernambuco     = 26
	UFCeara          = 23
	UFDistritoFed    = 53
)

// ValidUFCodes códigos IBGE de UF aceitos na chave de acesso.
var ValidUFCodes = map[int]bool{
	11: true, 12: true, 13: true, 14: true, 15: true, 16: true, 17: true, // Norte
	21: true, 22: true, 23: true, 24: true, 25: true, 26: true, 27: true, 28: true, 29: true, // Nordeste
	31: true, 32: true, 33: true, 35: true, // Sudeste
	41: true, 42: true, 43: true, // Sul
	50: true, 51: true, 52: true, 53: true, // Centro-Oeste
}

// =============================================================================
// Modelos de documento fiscal (campo mod da chave de acesso)
// =============================================================================

const (
	ModelNFe  = "55" // Nota Fiscal Eletrônica
	ModelCTe  = "57" // Conhecimento de Transporte Eletrônico
	ModelMDFe = "58" // Manifesto de Documentos Fiscais Eletrônicos
	ModelNFCe = "65" // Nota Fiscal de Consumidor Eletrônica
)

// =============================================================================
// Tipos de emissão (campo tpEmis da chave de acesso)
// =============================================================================

const (
	EmissionNormal      = 1 // Emissão normal
	EmissionContingency = 2 // Contingência FS-IA
	EmissionSVCAN       = 6 // Contingência SVC-AN
	EmissionSVCRS       = 7 // Contingência SVC-RS
	EmissionOffline     = 9 // Contingência off-line (NFC-e)
)

// =============================================================================
// Códigos de status da SEFAZ (cStat) relevantes para o motor
// =============================================================================

const (
	CStatAuthorized     = 100 // Autorizado o uso do documento
	CStatCancelled      = 101 // Cancelamento homologado
	CStatServicePaused  = 108 // Serviço paralisado momentaneamente (curto prazo)
	CStatServiceStopped = 109 // Serviço paralisado sem previsão
	CStatDuplicate      = 204 // Duplicidade de documento
	CStatRejectedSchema = 225 // Falha no schema XML
)

// IsAuthorizedStatus indica se o cStat corresponde a uma autorização de uso.
func IsAuthorizedStatus(cStat int) bool {
	return cStat == CStatAuthorized
}

// IsCancelHomologated indica se o cStat corresponde a cancelamento homologado.
// A SEFAZ devolve 101 no evento e 135/155 em algumas versões do serviço de eventos.
func IsCancelHomologated(cStat int) bool {
	return cStat == CStatCancelled || cStat == 135 || cStat == 155
}
