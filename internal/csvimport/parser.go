package csvimport

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dvloznov/finance-assistant/internal/domain"
)

// ErrHeadersNotFound is the FormatError message for input without a header row.
const ErrHeadersNotFound = "headers not found"

// Columns names the header fields each Transaction field is read from.
type Columns struct {
	Date        string
	Description string
	Account     string
	Category    string
	Amount      string
}

// Profile describes one bank's export layout.
type Profile struct {
	Name         string
	HeaderAnchor string // substring identifying the header line
	HeaderMarker string // stray characters stripped from the header line
	Delimiter    rune
	Columns      Columns
}

// MBank is the default profile: a Polish retail bank export with an account
// summary preamble and '#'-prefixed column names.
var MBank = Profile{
	Name:         "mbank",
	HeaderAnchor: "Data operacji",
	HeaderMarker: "#",
	Delimiter:    ';',
	Columns: Columns{
		Date:        "Data operacji",
		Description: "Opis operacji",
		Account:     "Rachunek",
		Category:    "Kategoria",
		Amount:      "Kwota",
	},
}

// Parser converts a bank CSV export into Transactions.
type Parser struct {
	profile Profile
}

// NewParser returns a Parser for profile. Zero fields fall back to MBank.
func NewParser(profile Profile) *Parser {
	if profile.Name == "" {
		profile.Name = MBank.Name
	}
	if profile.HeaderAnchor == "" {
		profile.HeaderAnchor = MBank.HeaderAnchor
	}
	if profile.Delimiter == 0 {
		profile.Delimiter = MBank.Delimiter
	}
	if profile.Columns == (Columns{}) {
		profile.Columns = MBank.Columns
	}
	return &Parser{profile: profile}
}

// Format returns the profile name.
func (p *Parser) Format() string { return p.profile.Name }

// Parse locates the header row, drops the preamble and blank lines, and
// decodes the remaining rows by header name. Missing columns decode to "".
// Workbook (XLSX) input is detected by its signature and read from the first
// sheet. It returns a *domain.FormatError when no header row exists or a row
// is not valid CSV.
func (p *Parser) Parse(r io.Reader) ([]domain.Transaction, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading input: %w", err)
	}
	if isXLSX(data) {
		return p.parseXLSX(data)
	}
	text, err := decodeText(data)
	if err != nil {
		return nil, &domain.FormatError{Msg: err.Error()}
	}

	body, lineNumbers, err := p.extractTable(splitLines(text))
	if err != nil {
		return nil, err
	}

	cr := csv.NewReader(strings.NewReader(body))
	cr.Comma = p.profile.Delimiter
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		return nil, &domain.FormatError{Msg: fmt.Sprintf("reading header: %v", err), Line: lineNumbers[0]}
	}
	colIndex := headerIndex(header)

	var txns []domain.Transaction
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &domain.FormatError{Msg: err.Error(), Line: sourceLine(err, lineNumbers)}
		}
		txns = append(txns, p.toTransaction(rec, colIndex))
	}
	return txns, nil
}

// headerIndex maps trimmed column names to positions; the first occurrence wins.
func headerIndex(header []string) map[string]int {
	colIndex := make(map[string]int, len(header))
	for i, col := range header {
		name := strings.TrimSpace(col)
		if _, dup := colIndex[name]; !dup {
			colIndex[name] = i
		}
	}
	return colIndex
}

func (p *Parser) toTransaction(rec []string, colIndex map[string]int) domain.Transaction {
	cols := p.profile.Columns
	return domain.Transaction{
		Date:           field(rec, colIndex, cols.Date),
		Description:    field(rec, colIndex, cols.Description),
		Account:        field(rec, colIndex, cols.Account),
		SourceCategory: field(rec, colIndex, cols.Category),
		Amount:         field(rec, colIndex, cols.Amount),
	}
}

// extractTable returns the sanitized header followed by every non-blank line
// after it, plus the 1-based source line number of each kept line.
func (p *Parser) extractTable(lines []string) (string, []int, error) {
	headerIdx := -1
	for i, line := range lines {
		if strings.Contains(line, p.profile.HeaderAnchor) {
			headerIdx = i
			break
		}
	}
	if headerIdx == -1 {
		return "", nil, &domain.FormatError{Msg: ErrHeadersNotFound}
	}

	header := lines[headerIdx]
	if p.profile.HeaderMarker != "" {
		header = strings.ReplaceAll(header, p.profile.HeaderMarker, "")
	}

	var b strings.Builder
	b.WriteString(header)
	b.WriteByte('\n')
	lineNumbers := []int{headerIdx + 1}
	for i := headerIdx + 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "" {
			continue
		}
		b.WriteString(lines[i])
		b.WriteByte('\n')
		lineNumbers = append(lineNumbers, i+1)
	}
	return b.String(), lineNumbers, nil
}

func splitLines(text string) []string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

func field(rec []string, colIndex map[string]int, name string) string {
	i, ok := colIndex[name]
	if !ok || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

// sourceLine maps a csv.ParseError back to the line in the original input.
func sourceLine(err error, lineNumbers []int) int {
	var pe *csv.ParseError
	if !errors.As(err, &pe) {
		return 0
	}
	if pe.StartLine >= 1 && pe.StartLine <= len(lineNumbers) {
		return lineNumbers[pe.StartLine-1]
	}
	return 0
}
