package sped

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding/charmap"
)

// Tipos de escrituração suportados pelo gerador.
const (
	TypeECD     = "ECD"      // Escrituração Contábil Digital
	TypeEFDICMS = "EFD-ICMS" // Escrituração Fiscal Digital ICMS/IPI
)

// Document é o arquivo SPED completo: sequência ordenada de blocos que deve
// começar no bloco "0" (abertura) e terminar no bloco "9" (controle).
type Document struct {
	docType string
	blocks  []Block
}

// NewDocument valida e cria o documento. A ordem dos blocos é preservada.
func NewDocument(docType string, blocks []Block) (Document, error) {
	if docType != TypeECD && docType != TypeEFDICMS {
		return Document{}, fmt.Errorf("sped: tipo de escrituração %q desconhecido", docType)
	}
	if len(blocks) < 2 {
		return Document{}, fmt.Errorf("sped: documento precisa de ao menos os blocos 0 e 9, recebidos %d", len(blocks))
	}
	if blocks[0].ID() != "0" {
		return Document{}, fmt.Errorf("sped: o primeiro bloco deve ser o bloco 0, recebido %q", blocks[0].ID())
	}
	if last := blocks[len(blocks)-1]; last.ID() != "9" {
		return Document{}, fmt.Errorf("sped: o último bloco deve ser o bloco 9, recebido %q", last.ID())
	}

	bs := make([]Block, len(blocks))
	copy(bs, blocks)
	return Document{docType: docType, blocks: bs}, nil
}

// Type devolve o tipo de escrituração.
func (d Document) Type() string { return d.docType }

// Blocks devolve uma cópia dos blocos na ordem do arquivo.
func (d Document) Blocks() []Block {
	out := make([]Block, len(d.blocks))
	copy(out, d.blocks)
	return out
}

// RegisterCount devolve o total de registros de todos os blocos.
func (d Document) RegisterCount() int {
	total := 0
	for _, b := range d.blocks {
		total += b.RegisterCount()
	}
	return total
}

// FileContent serializa todos os blocos, linhas unidas por "\n", na ordem do arquivo.
func (d Document) FileContent() string {
	var lines []string
	for _, b := range d.blocks {
		lines = append(lines, b.ToLines()...)
	}
	return strings.Join(lines, "\n")
}

// Bytes codifica o conteúdo em ISO-8859-1, o encoding de byte único exigido
// pelo validador do SPED; sequências UTF-8 multi-byte em caracteres
// acentuados são rejeitadas pelo PVA. Caracteres fora do Latin-1 são erro.
func (d Document) Bytes() ([]byte, error) {
	encoded, err := charmap.ISO8859_1.NewEncoder().Bytes([]byte(d.FileContent()))
	if err != nil {
		return nil, fmt.Errorf("sped: conteúdo com caractere fora do ISO-8859-1: %w", err)
	}
	return encoded, nil
}
