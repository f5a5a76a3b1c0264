package fiscal

import (
	"crypto/tls"
	"time"

	"github.com/pedrojuniorgyn/AuraCore-sub019/internal/domain/entity"
	domfiscal "github.com/pedrojuniorgyn/AuraCore-sub019/internal/domain/fiscal"
)

// Signer porta de saída da assinatura digital. A credencial é sempre injetada
// pelo chamador; nenhuma implementação deve ler chave de local fixo.
type Signer interface {
	Sign(xmlBytes []byte, cert tls.Certificate) ([]byte, error)
}

// XMLBuilder porta de saída da montagem do XML do documento fiscal. A
// serialização concreta (layout NFe/CTe) vive na infraestrutura; os casos de
// uso só conhecem este contrato.
type XMLBuilder interface {
	Build(doc *entity.FiscalDocument, key domfiscal.AccessKey) ([]byte, error)
}

// CancelPolicy janela legal de cancelamento por tipo de documento. A janela
// nunca é uma constante do domínio: cada UF e tipo tem prazo próprio, então a
// política chega configurada de fora.
type CancelPolicy struct {
	PerType map[entity.DocumentType]time.Duration
	Default time.Duration
}

// WindowFor devolve a janela aplicável ao tipo, caindo no default quando não
// há entrada específica. Zero significa janela ilimitada.
func (p CancelPolicy) WindowFor(t entity.DocumentType) time.Duration {
	if w, ok := p.PerType[t]; ok {
		return w
	}
	return p.Default
}
