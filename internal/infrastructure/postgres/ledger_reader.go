package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pedrojuniorgyn/AuraCore-sub019/internal/domain/repository"
)

var _ repository.LedgerReader = (*LedgerReaderRepo)(nil)

// LedgerReaderRepo leitura do razão contábil para a geração do SPED. As
// tabelas pertencem ao módulo contábil; aqui só se consulta.
type LedgerReaderRepo struct {
	q Querier
}

// NewLedgerReader constrói o adaptador.
func NewLedgerReader(q Querier) *LedgerReaderRepo {
	return &LedgerReaderRepo{q: q}
}

// ChartOfAccounts plano de contas do tenant, na ordem hierárquica dos códigos.
func (r *LedgerReaderRepo) ChartOfAccounts(ctx context.Context, orgID, branchID int64) ([]repository.LedgerAccount, error) {
	rows, err := r.q.Query(ctx, `
		SELECT code, name, nature, kind, level, COALESCE(parent_code, '')
		FROM ledger_accounts
		WHERE organization_id = $1 AND branch_id = $2
		ORDER BY code`, orgID, branchID)
	if err != nil {
		return nil, fmt.Errorf("plano de contas: %w", err)
	}
	defer rows.Close()

	var out []repository.LedgerAccount
	for rows.Next() {
		var acc repository.LedgerAccount
		if err := rows.Scan(&acc.Code, &acc.Name, &acc.Nature, &acc.Kind, &acc.Level, &acc.ParentCode); err != nil {
			return nil, fmt.Errorf("scan conta: %w", err)
		}
		out = append(out, acc)
	}
	return out, rows.Err()
}

// JournalEntries lançamentos do período, na ordem de data e número.
func (r *LedgerReaderRepo) JournalEntries(ctx context.Context, orgID, branchID int64, from, to time.Time) ([]repository.JournalEntry, error) {
	rows, err := r.q.Query(ctx, `
		SELECT number, date, account_code, amount, indicator, COALESCE(history, '')
		FROM journal_entries
		WHERE organization_id = $1 AND branch_id = $2 AND date BETWEEN $3 AND $4
		ORDER BY date, number`, orgID, branchID, from, to)
	if err != nil {
		return nil, fmt.Errorf("lançamentos: %w", err)
	}
	defer rows.Close()

	var out []repository.JournalEntry
	for rows.Next() {
		var entry repository.JournalEntry
		if err := rows.Scan(&entry.Number, &entry.Date, &entry.AccountCode, &entry.Amount, &entry.Indicator, &entry.History); err != nil {
			return nil, fmt.Errorf("scan lançamento: %w", err)
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

// AccountBalances saldos do período derivados dos lançamentos: abertura antes
// do início, movimento dentro do intervalo, fechamento pela soma.
func (r *LedgerReaderRepo) AccountBalances(ctx context.Context, orgID, branchID int64, from, to time.Time) ([]repository.AccountBalance, error) {
	rows, err := r.q.Query(ctx, `
		WITH movement AS (
			SELECT account_code,
			       SUM(CASE WHEN indicator = 'D' AND date <  $3 THEN amount
			                WHEN indicator = 'C' AND date <  $3 THEN -amount
			                ELSE 0 END) AS opening,
			       SUM(CASE WHEN indicator = 'D' AND date BETWEEN $3 AND $4 THEN amount ELSE 0 END) AS debits,
			       SUM(CASE WHEN indicator = 'C' AND date BETWEEN $3 AND $4 THEN amount ELSE 0 END) AS credits
			FROM journal_entries
			WHERE organization_id = $1 AND branch_id = $2 AND date <= $4
			GROUP BY account_code
		)
		SELECT account_code, opening, debits, credits, opening + debits - credits AS closing
		FROM movement
		ORDER BY account_code`, orgID, branchID, from, to)
	if err != nil {
		return nil, fmt.Errorf("saldos: %w", err)
	}
	defer rows.Close()

	var out []repository.AccountBalance
	for rows.Next() {
		var bal repository.AccountBalance
		if err := rows.Scan(&bal.AccountCode, &bal.Opening, &bal.TotalDebits, &bal.TotalCredits, &bal.Closing); err != nil {
			return nil, fmt.Errorf("scan saldo: %w", err)
		}
		bal.OpeningSign = balanceSign(&bal.Opening)
		bal.ClosingSign = balanceSign(&bal.Closing)
		out = append(out, bal)
	}
	return out, rows.Err()
}

// balanceSign normaliza o saldo para valor absoluto + indicador D/C do layout.
func balanceSign(v *decimal.Decimal) string {
	if v.IsNegative() {
		*v = v.Neg()
		return "C"
	}
	return "D"
}
