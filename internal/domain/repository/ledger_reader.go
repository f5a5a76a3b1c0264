package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Linhas contábeis fornecidas pelo colaborador de razão/relatórios. São
// read-models para a geração de arquivos, não entidades do motor.

// LedgerAccount uma conta do plano de contas.
type LedgerAccount struct {
	Code       string
	Name       string
	Nature     string // "01" ativo, "02" passivo, "03" PL, "04" resultado, "09" outras
	Kind       string // "S" sintética, "A" analítica
	Level      int
	ParentCode string
}

// JournalEntry um lançamento contábil (partida simples já explodida).
type JournalEntry struct {
	Number      int64
	Date        time.Time
	AccountCode string
	Amount      decimal.Decimal
	Indicator   string // "D" débito, "C" crédito
	History     string
}

// AccountBalance saldos de uma conta no período.
type AccountBalance struct {
	AccountCode  string
	Opening      decimal.Decimal
	OpeningSign  string // "D" ou "C"
	TotalDebits  decimal.Decimal
	TotalCredits decimal.Decimal
	Closing      decimal.Decimal
	ClosingSign  string // "D" ou "C"
}

// LedgerReader porta de leitura do colaborador contábil que alimenta a
// geração do SPED. O motor não possui o razão; apenas o consome.
type LedgerReader interface {
	ChartOfAccounts(ctx context.Context, orgID, branchID int64) ([]LedgerAccount, error)
	JournalEntries(ctx context.Context, orgID, branchID int64, from, to time.Time) ([]JournalEntry, error)
	AccountBalances(ctx context.Context, orgID, branchID int64, from, to time.Time) ([]AccountBalance, error)
}
