package csvimport

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/dvloznov/finance-assistant/internal/domain"
)

// zipMagic starts every XLSX file.
var zipMagic = []byte("PK\x03\x04")

func isXLSX(data []byte) bool {
	return bytes.HasPrefix(data, zipMagic)
}

// parseXLSX reads the first sheet of a workbook export with the same header
// rules as the CSV path: the first row mentioning the anchor is the header,
// marker characters are stripped and blank rows are skipped.
func (p *Parser) parseXLSX(data []byte) ([]domain.Transaction, error) {
	xl, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, &domain.FormatError{Msg: fmt.Sprintf("reading workbook: %v", err)}
	}
	defer xl.Close()

	rows, err := xl.GetRows(xl.GetSheetName(0))
	if err != nil {
		return nil, &domain.FormatError{Msg: fmt.Sprintf("reading sheet: %v", err)}
	}

	headerIdx := -1
	for i, row := range rows {
		if strings.Contains(strings.Join(row, string(p.profile.Delimiter)), p.profile.HeaderAnchor) {
			headerIdx = i
			break
		}
	}
	if headerIdx == -1 {
		return nil, &domain.FormatError{Msg: ErrHeadersNotFound}
	}

	header := make([]string, len(rows[headerIdx]))
	for i, cell := range rows[headerIdx] {
		if p.profile.HeaderMarker != "" {
			cell = strings.ReplaceAll(cell, p.profile.HeaderMarker, "")
		}
		header[i] = cell
	}
	colIndex := headerIndex(header)

	var txns []domain.Transaction
	for _, row := range rows[headerIdx+1:] {
		if blankRow(row) {
			continue
		}
		txns = append(txns, p.toTransaction(row, colIndex))
	}
	return txns, nil
}

func blankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
