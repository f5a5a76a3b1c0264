package sped

import "fmt"

// Block é uma sequência ordenada de registros de um mesmo bloco. Invariantes
// estruturais do layout: o primeiro registro deve ser o de abertura
// ({bloco}001) e o último o de encerramento ({bloco}990). Duas exceções das
// pontas do arquivo: o bloco 0 pode abrir com o registro 0000 (identificação)
// desde que o 0001 venha imediatamente depois, e o bloco 9 pode terminar com
// o registro 9999 (encerramento do arquivo) desde que o 9990 venha
// imediatamente antes.
type Block struct {
	id        string
	registers []Register
}

// NewBlock valida e cria um bloco. Exige no mínimo os registros de abertura e
// encerramento, nas posições corretas.
func NewBlock(blockID string, registers []Register) (Block, error) {
	if blockID == "" {
		return Block{}, fmt.Errorf("sped: bloco sem identificador")
	}
	if len(registers) < 2 {
		return Block{}, fmt.Errorf("sped: bloco %s precisa de ao menos abertura e encerramento, recebidos %d registros", blockID, len(registers))
	}
	opening := blockID + "001"
	closing := blockID + "990"
	switch {
	case registers[0].Code() == opening:
		// abertura padrão
	case blockID == "0" && registers[0].Code() == "0000":
		if len(registers) < 3 || registers[1].Code() != "0001" {
			return Block{}, fmt.Errorf("sped: bloco 0 com 0000 exige o 0001 imediatamente depois")
		}
	default:
		return Block{}, fmt.Errorf("sped: bloco %s deve abrir com %s, primeiro registro é %s", blockID, opening, registers[0].Code())
	}
	last := registers[len(registers)-1]
	switch {
	case last.Code() == closing:
		// encerramento padrão
	case blockID == "9" && last.Code() == "9999":
		if len(registers) < 3 || registers[len(registers)-2].Code() != "9990" {
			return Block{}, fmt.Errorf("sped: bloco 9 com 9999 exige o 9990 imediatamente antes")
		}
	default:
		return Block{}, fmt.Errorf("sped: bloco %s deve encerrar com %s, último registro é %s", blockID, closing, last.Code())
	}

	regs := make([]Register, len(registers))
	copy(regs, registers)
	return Block{id: blockID, registers: regs}, nil
}

// ID devolve o identificador do bloco ("0", "I", "C", "9"...).
func (b Block) ID() string { return b.id }

// RegisterCount devolve o número de registros do bloco.
func (b Block) RegisterCount() int { return len(b.registers) }

// Registers devolve uma cópia dos registros, preservando a imutabilidade do bloco.
func (b Block) Registers() []Register {
	out := make([]Register, len(b.registers))
	copy(out, b.registers)
	return out
}

// ToLines serializa cada registro na ordem do bloco.
func (b Block) ToLines() []string {
	lines := make([]string, len(b.registers))
	for i, r := range b.registers {
		lines[i] = r.ToLine()
	}
	return lines
}
