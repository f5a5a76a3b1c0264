// Package sped monta o arquivo da Escrituração Contábil Digital (ECD) a partir
// do razão fornecido pelo colaborador contábil: bloco 0 (abertura), bloco I
// (plano de contas, saldos e lançamentos) e bloco 9 (controle e totalizadores).
package sped

import (
	"context"
	"fmt"
	"time"

	"github.com/pedrojuniorgyn/AuraCore-sub019/internal/domain"
	"github.com/pedrojuniorgyn/AuraCore-sub019/internal/domain/repository"
	domsped "github.com/pedrojuniorgyn/AuraCore-sub019/internal/domain/sped"
	"github.com/pedrojuniorgyn/AuraCore-sub019/pkg/logger"
)

// GenerateInput parâmetros de geração de uma escrituração.
type GenerateInput struct {
	OrganizationID int64
	BranchID       int64
	CompanyName    string
	CNPJ           string
	UF             string // sigla da UF do estabelecimento ("GO", "SP"...)
	From           time.Time
	To             time.Time
}

// ECDGenerator gera o arquivo ECD consumindo o razão de um LedgerReader. O
// gerador não possui os dados contábeis; apenas os serializa no layout.
type ECDGenerator struct {
	ledger repository.LedgerReader
	log    *logger.Logger
}

// NewECDGenerator constrói o gerador.
func NewECDGenerator(ledger repository.LedgerReader, log *logger.Logger) *ECDGenerator {
	return &ECDGenerator{ledger: ledger, log: log}
}

// Generate monta o documento ECD completo do período. As invariantes
// estruturais (abertura/encerramento de bloco, ordem dos blocos) são
// garantidas pelos construtores do pacote de domínio.
func (g *ECDGenerator) Generate(ctx context.Context, in GenerateInput) (domsped.Document, error) {
	if in.OrganizationID <= 0 || in.BranchID <= 0 {
		return domsped.Document{}, fmt.Errorf("%w: organização e filial devem ser positivas", domain.ErrInvalidInput)
	}
	if len(in.CNPJ) != 14 {
		return domsped.Document{}, fmt.Errorf("%w: CNPJ deve ter 14 dígitos", domain.ErrInvalidInput)
	}
	if in.From.IsZero() || in.To.IsZero() || in.To.Before(in.From) {
		return domsped.Document{}, fmt.Errorf("%w: período de escrituração inválido", domain.ErrInvalidInput)
	}

	accounts, err := g.ledger.ChartOfAccounts(ctx, in.OrganizationID, in.BranchID)
	if err != nil {
		return domsped.Document{}, fmt.Errorf("plano de contas: %w", err)
	}
	balances, err := g.ledger.AccountBalances(ctx, in.OrganizationID, in.BranchID, in.From, in.To)
	if err != nil {
		return domsped.Document{}, fmt.Errorf("saldos: %w", err)
	}
	entries, err := g.ledger.JournalEntries(ctx, in.OrganizationID, in.BranchID, in.From, in.To)
	if err != nil {
		return domsped.Document{}, fmt.Errorf("lançamentos: %w", err)
	}

	block0, err := g.buildBlock0(in)
	if err != nil {
		return domsped.Document{}, err
	}
	blockI, err := g.buildBlockI(in, accounts, balances, entries)
	if err != nil {
		return domsped.Document{}, err
	}
	block9, err := buildBlock9(block0, blockI)
	if err != nil {
		return domsped.Document{}, err
	}

	doc, err := domsped.NewDocument(domsped.TypeECD, []domsped.Block{block0, blockI, block9})
	if err != nil {
		return domsped.Document{}, err
	}

	g.log.Info().
		Str("cnpj", in.CNPJ).
		Str("from", in.From.Format("2006-01-02")).
		Str("to", in.To.Format("2006-01-02")).
		Int("registers", doc.RegisterCount()).
		Msg("escrituração ECD gerada")
	return doc, nil
}

// buildBlock0 abertura do arquivo: identificação da entidade e do período.
func (g *ECDGenerator) buildBlock0(in GenerateInput) (domsped.Block, error) {
	r0000, err := domsped.NewRegister("0000", []any{
		"LECD", in.From, in.To, in.CompanyName, in.CNPJ, in.UF,
		nil, nil, nil, nil, // IE, município, IM, situação especial: fora do motor
	})
	if err != nil {
		return domsped.Block{}, err
	}
	r0001, err := domsped.NewRegister("0001", []any{0})
	if err != nil {
		return domsped.Block{}, err
	}
	r0990, err := domsped.NewRegister("0990", []any{3})
	if err != nil {
		return domsped.Block{}, err
	}
	return domsped.NewBlock("0", []domsped.Register{r0000, r0001, r0990})
}

// buildBlockI lançamentos contábeis: plano de contas (I050), saldos
// periódicos (I150/I155) e lançamentos (I200/I250).
func (g *ECDGenerator) buildBlockI(in GenerateInput, accounts []repository.LedgerAccount, balances []repository.AccountBalance, entries []repository.JournalEntry) (domsped.Block, error) {
	var regs []domsped.Register

	rI001, err := domsped.NewRegister("I001", []any{0})
	if err != nil {
		return domsped.Block{}, err
	}
	regs = append(regs, rI001)

	for _, acc := range accounts {
		r, err := domsped.NewRegister("I050", []any{
			in.From, acc.Nature, acc.Kind, acc.Level, acc.Code, acc.ParentCode, acc.Name,
		})
		if err != nil {
			return domsped.Block{}, err
		}
		regs = append(regs, r)
	}

	if len(balances) > 0 {
		rI150, err := domsped.NewRegister("I150", []any{in.From, in.To})
		if err != nil {
			return domsped.Block{}, err
		}
		regs = append(regs, rI150)
		for _, bal := range balances {
			r, err := domsped.NewRegister("I155", []any{
				bal.AccountCode, nil,
				bal.Opening, bal.OpeningSign,
				bal.TotalDebits, bal.TotalCredits,
				bal.Closing, bal.ClosingSign,
			})
			if err != nil {
				return domsped.Block{}, err
			}
			regs = append(regs, r)
		}
	}

	for _, entry := range entries {
		rI200, err := domsped.NewRegister("I200", []any{
			entry.Number, entry.Date, entry.Amount, "N",
		})
		if err != nil {
			return domsped.Block{}, err
		}
		rI250, err := domsped.NewRegister("I250", []any{
			entry.AccountCode, nil, entry.Amount, entry.Indicator, nil, entry.History,
		})
		if err != nil {
			return domsped.Block{}, err
		}
		regs = append(regs, rI200, rI250)
	}

	rI990, err := domsped.NewRegister("I990", []any{len(regs) + 1})
	if err != nil {
		return domsped.Block{}, err
	}
	regs = append(regs, rI990)
	return domsped.NewBlock("I", regs)
}

// buildBlock9 controle: um 9900 por código de registro presente no arquivo
// (inclusive os do próprio bloco 9), o total do bloco (9990) e o total do
// arquivo (9999).
func buildBlock9(blocks ...domsped.Block) (domsped.Block, error) {
	counts := map[string]int{}
	var order []string
	note := func(code string, n int) {
		if _, seen := counts[code]; !seen {
			order = append(order, code)
		}
		counts[code] += n
	}

	contentLines := 0
	for _, b := range blocks {
		for _, r := range b.Registers() {
			note(r.Code(), 1)
			contentLines++
		}
	}
	note("9001", 1)
	note("9900", 0) // a própria contagem entra depois, quando o total de códigos fechar
	note("9990", 1)
	note("9999", 1)
	counts["9900"] = len(order)

	block9Lines := 1 + len(order) + 2 // 9001 + linhas 9900 + 9990 + 9999
	totalLines := contentLines + block9Lines

	regs := make([]domsped.Register, 0, block9Lines)
	r9001, err := domsped.NewRegister("9001", []any{0})
	if err != nil {
		return domsped.Block{}, err
	}
	regs = append(regs, r9001)

	for _, code := range order {
		r, err := domsped.NewRegister("9900", []any{code, counts[code]})
		if err != nil {
			return domsped.Block{}, err
		}
		regs = append(regs, r)
	}

	r9990, err := domsped.NewRegister("9990", []any{block9Lines})
	if err != nil {
		return domsped.Block{}, err
	}
	r9999, err := domsped.NewRegister("9999", []any{totalLines})
	if err != nil {
		return domsped.Block{}, err
	}
	regs = append(regs, r9990, r9999)
	return domsped.NewBlock("9", regs)
}
