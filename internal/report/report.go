// Package report exports the categorized batch as an XLSX workbook.
package report

import (
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/dvloznov/finance-assistant/internal/domain"
	"github.com/dvloznov/finance-assistant/internal/split"
)

const (
	TransactionsSheet = "Transactions"
	SummarySheet      = "Summary"

	// Unassigned labels transactions without a category in the summary.
	Unassigned = "Unassigned"
)

var transactionHeader = []interface{}{
	"Date", "Description", "Account", "Source Category", "Amount", "Assigned Category",
}

var summaryHeader = []interface{}{"Category", "Total", "Transactions"}

// CategoryTotal is one row of the summary sheet.
type CategoryTotal struct {
	Category string
	Total    decimal.Decimal
	Count    int
}

// Summarize totals amounts per category. A split adds each allocation to its
// category; transactions whose amount cannot be parsed are left out.
// Rows follow the closed-set order with Unassigned last.
func Summarize(txs []domain.Transaction) []CategoryTotal {
	totals := make(map[string]*CategoryTotal)
	add := func(name string, v decimal.Decimal) {
		ct, ok := totals[name]
		if !ok {
			ct = &CategoryTotal{Category: name}
			totals[name] = ct
		}
		ct.Total = ct.Total.Add(v)
		ct.Count++
	}

	for _, tx := range txs {
		amount, err := tx.AmountValue()
		if err != nil {
			continue
		}
		switch {
		case !tx.IsAssigned():
			add(Unassigned, amount)
		case split.IsSplit(tx.AssignedCategory):
			for c, v := range split.Parse(tx.AssignedCategory) {
				add(c.String(), v)
			}
		default:
			name := tx.AssignedCategory
			if c, ok := domain.ParseCategory(name); ok {
				name = c.String()
			}
			add(name, amount)
		}
	}

	var out []CategoryTotal
	for _, c := range domain.Categories {
		if ct, ok := totals[c.String()]; ok {
			out = append(out, *ct)
			delete(totals, c.String())
		}
	}
	if ct, ok := totals[Unassigned]; ok {
		out = append(out, *ct)
	}
	return out
}

// Build creates the workbook. The caller must Close it.
func Build(txs []domain.Transaction) (*excelize.File, error) {
	f := excelize.NewFile()

	if err := f.SetSheetName(f.GetSheetName(0), TransactionsSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("Build: rename sheet: %w", err)
	}
	if _, err := f.NewSheet(SummarySheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("Build: add summary sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("Build: header style: %w", err)
	}
	moneyStyle, err := f.NewStyle(&excelize.Style{NumFmt: 4})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("Build: money style: %w", err)
	}

	if err := writeTransactions(f, txs, headerStyle, moneyStyle); err != nil {
		f.Close()
		return nil, err
	}
	if err := writeSummary(f, Summarize(txs), headerStyle, moneyStyle); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

// Write builds the workbook and writes it to w.
func Write(w io.Writer, txs []domain.Transaction) error {
	f, err := Build(txs)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("Write: %w", err)
	}
	return nil
}

func writeTransactions(f *excelize.File, txs []domain.Transaction, headerStyle, moneyStyle int) error {
	if err := f.SetSheetRow(TransactionsSheet, "A1", &transactionHeader); err != nil {
		return fmt.Errorf("writeTransactions: header: %w", err)
	}
	if err := f.SetRowStyle(TransactionsSheet, 1, 1, headerStyle); err != nil {
		return fmt.Errorf("writeTransactions: header style: %w", err)
	}

	for i, tx := range txs {
		row := []interface{}{tx.Date, tx.Description, tx.Account, tx.SourceCategory, tx.Amount, tx.AssignedCategory}
		if v, err := tx.AmountValue(); err == nil {
			row[4] = v.InexactFloat64()
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(TransactionsSheet, cell, &row); err != nil {
			return fmt.Errorf("writeTransactions: row %d: %w", i+2, err)
		}
	}

	if len(txs) > 0 {
		last := fmt.Sprintf("E%d", len(txs)+1)
		if err := f.SetCellStyle(TransactionsSheet, "E2", last, moneyStyle); err != nil {
			return fmt.Errorf("writeTransactions: amount style: %w", err)
		}
	}
	if err := f.SetColWidth(TransactionsSheet, "B", "B", 48); err != nil {
		return fmt.Errorf("writeTransactions: column width: %w", err)
	}
	return f.SetColWidth(TransactionsSheet, "F", "F", 40)
}

func writeSummary(f *excelize.File, totals []CategoryTotal, headerStyle, moneyStyle int) error {
	if err := f.SetSheetRow(SummarySheet, "A1", &summaryHeader); err != nil {
		return fmt.Errorf("writeSummary: header: %w", err)
	}
	if err := f.SetRowStyle(SummarySheet, 1, 1, headerStyle); err != nil {
		return fmt.Errorf("writeSummary: header style: %w", err)
	}

	for i, ct := range totals {
		row := []interface{}{ct.Category, ct.Total.InexactFloat64(), ct.Count}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SummarySheet, cell, &row); err != nil {
			return fmt.Errorf("writeSummary: row %d: %w", i+2, err)
		}
	}

	if len(totals) > 0 {
		if err := f.SetCellStyle(SummarySheet, "B2", fmt.Sprintf("B%d", len(totals)+1), moneyStyle); err != nil {
			return fmt.Errorf("writeSummary: total style: %w", err)
		}
	}
	return f.SetColWidth(SummarySheet, "A", "A", 24)
}
