package sped_test

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pedrojuniorgyn/AuraCore-sub019/internal/domain/sped"
)

func mustRegister(t *testing.T, code string, fields ...any) sped.Register {
	t.Helper()
	r, err := sped.NewRegister(code, fields)
	require.NoError(t, err)
	return r
}

// minBlock monta um bloco válido só com abertura e encerramento.
func minBlock(t *testing.T, id string) sped.Block {
	t.Helper()
	b, err := sped.NewBlock(id, []sped.Register{
		mustRegister(t, id+"001", 0),
		mustRegister(t, id+"990", 2),
	})
	require.NoError(t, err)
	return b
}

func TestNewRegister_Validacoes(t *testing.T) {
	_, err := sped.NewRegister("", []any{"x"})
	assert.Error(t, err, "código vazio")

	_, err = sped.NewRegister("0000", nil)
	assert.Error(t, err, "sem campos")
}

func TestRegister_ToLine(t *testing.T) {
	r := mustRegister(t, "0000", "LECD", "01012026", "31012026")
	assert.Equal(t, "|0000|LECD|01012026|31012026|", r.ToLine())
}

func TestRegister_CampoNilRenderizaVazio(t *testing.T) {
	r := mustRegister(t, "I050", "1.1.01", nil, "A")
	line := r.ToLine()
	assert.Equal(t, "|I050|1.1.01||A|", line)
	assert.NotContains(t, line, "null", `segmento nulo nunca vira o literal "null"`)
}

func TestRegister_FormatosDeCampo(t *testing.T) {
	r := mustRegister(t, "I155",
		decimal.NewFromFloat(1234.5),                 // monetário: vírgula decimal
		time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC), // data: ddMMaaaa
		int64(42),
		time.Time{}, // data zerada: segmento vazio
	)
	assert.Equal(t, "|I155|1234,50|31012026|42||", r.ToLine())
}

func TestNewBlock_InvariantesDeAberturaEEncerramento(t *testing.T) {
	open := mustRegister(t, "I001", 0)
	other := mustRegister(t, "I050", "1.1.01")
	close9 := mustRegister(t, "I990", 3)

	_, err := sped.NewBlock("I", []sped.Register{open})
	assert.Error(t, err, "menos de 2 registros")

	_, err = sped.NewBlock("I", []sped.Register{other, close9})
	assert.Error(t, err, "primeiro registro não é I001")

	_, err = sped.NewBlock("I", []sped.Register{open, other})
	assert.Error(t, err, "último registro não é I990")

	b, err := sped.NewBlock("I", []sped.Register{open, other, close9})
	require.NoError(t, err)
	assert.Equal(t, 3, b.RegisterCount())
}

func TestNewBlock_Bloco9PodeEncerrarCom9999(t *testing.T) {
	open := mustRegister(t, "9001", 0)
	totals := mustRegister(t, "9990", 4)
	trailer := mustRegister(t, "9999", 10)

	b, err := sped.NewBlock("9", []sped.Register{open, totals, trailer})
	require.NoError(t, err, "9999 após o 9990 encerra o arquivo")
	assert.Equal(t, 3, b.RegisterCount())

	_, err = sped.NewBlock("9", []sped.Register{open, trailer})
	assert.Error(t, err, "9999 sem o 9990 imediatamente antes é inválido")

	_, err = sped.NewBlock("C", []sped.Register{
		mustRegister(t, "C001", 0),
		mustRegister(t, "C999", 1),
	})
	assert.Error(t, err, "a exceção do 9999 vale só para o bloco 9")
}

func TestNewBlock_Bloco0PodeAbrirCom0000(t *testing.T) {
	ident := mustRegister(t, "0000", "LECD", "01012026", "31012026")
	open := mustRegister(t, "0001", 0)
	close0 := mustRegister(t, "0990", 3)

	b, err := sped.NewBlock("0", []sped.Register{ident, open, close0})
	require.NoError(t, err, "0000 antes do 0001 abre o arquivo")
	assert.Equal(t, 3, b.RegisterCount())

	_, err = sped.NewBlock("0", []sped.Register{ident, close0})
	assert.Error(t, err, "0000 sem o 0001 imediatamente depois é inválido")
}

// TestBlock_RoundTripBlockID re-parseia os códigos de abertura/encerramento das
// linhas serializadas e recupera o mesmo blockId usado na construção.
func TestBlock_RoundTripBlockID(t *testing.T) {
	b := minBlock(t, "C")
	lines := b.ToLines()
	require.Len(t, lines, 2)

	first := strings.Split(lines[0], "|")[1]  // "C001"
	last := strings.Split(lines[len(lines)-1], "|")[1] // "C990"
	assert.Equal(t, b.ID(), strings.TrimSuffix(first, "001"))
	assert.Equal(t, b.ID(), strings.TrimSuffix(last, "990"))
}

func TestNewDocument_OrdemDosBlocos(t *testing.T) {
	b0 := minBlock(t, "0")
	bC := minBlock(t, "C")
	b9 := minBlock(t, "9")

	doc, err := sped.NewDocument(sped.TypeECD, []sped.Block{b0, bC, b9})
	require.NoError(t, err, "ordem 0, C, 9 é válida")
	assert.Equal(t, 6, doc.RegisterCount())

	_, err = sped.NewDocument(sped.TypeECD, []sped.Block{bC, b0, b9})
	assert.Error(t, err, "bloco 0 deve ser o primeiro")

	_, err = sped.NewDocument(sped.TypeECD, []sped.Block{b0, b9, bC})
	assert.Error(t, err, "bloco 9 deve ser o último")

	_, err = sped.NewDocument(sped.TypeECD, []sped.Block{b0})
	assert.Error(t, err, "faltando bloco 9")

	_, err = sped.NewDocument("XML", []sped.Block{b0, b9})
	assert.Error(t, err, "tipo de escrituração desconhecido")
}

func TestDocument_FileContent(t *testing.T) {
	doc, err := sped.NewDocument(sped.TypeECD, []sped.Block{minBlock(t, "0"), minBlock(t, "9")})
	require.NoError(t, err)

	content := doc.FileContent()
	lines := strings.Split(content, "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "|0001|0|", lines[0])
	assert.Equal(t, "|9990|2|", lines[3])
}

func TestDocument_BytesISO88591(t *testing.T) {
	open, err := sped.NewRegister("0001", []any{0})
	require.NoError(t, err)
	acentuado, err := sped.NewRegister("0005", []any{"ESCRITURAÇÃO"})
	require.NoError(t, err)
	close0, err := sped.NewRegister("0990", []any{3})
	require.NoError(t, err)

	b0, err := sped.NewBlock("0", []sped.Register{open, acentuado, close0})
	require.NoError(t, err)

	doc, err := sped.NewDocument(sped.TypeECD, []sped.Block{b0, minBlock(t, "9")})
	require.NoError(t, err)

	raw, err := doc.Bytes()
	require.NoError(t, err)

	// Em ISO-8859-1 cada caractere ocupa exatamente 1 byte: "Ç" = 0xC7, "Ã" = 0xC3.
	assert.Equal(t, len([]rune(doc.FileContent())), len(raw), "codificação deve ser de byte único")
	assert.Contains(t, string(raw), "ESCRITURA\xc7\xc3O")
}
