package csvimport

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"

	"github.com/dvloznov/finance-assistant/internal/domain"
)

func TestParser_ParseExport(t *testing.T) {
	f, err := os.Open("testdata/mbank_2024_01.csv")
	require.NoError(t, err)
	defer f.Close()

	txns, err := NewParser(MBank).Parse(f)
	require.NoError(t, err)
	require.Len(t, txns, 4)

	assert.Equal(t, domain.Transaction{
		Date:           "2024-01-05",
		Description:    "COFFEE SHOP",
		Account:        "eKonto 1111 ... 2222",
		SourceCategory: "Jedzenie poza domem",
		Amount:         "-12,50 PLN",
	}, txns[0])

	assert.Equal(t, "Żywność i chemia domowa", txns[1].SourceCategory)
	assert.Equal(t, "PRZELEW WYNAGRODZENIE STYCZEŃ", txns[2].Description)
	assert.Equal(t, "-1 234,56 PLN", txns[3].Amount)

	for _, tx := range txns {
		assert.Empty(t, tx.AssignedCategory)
	}

	amount, err := txns[3].AmountValue()
	require.NoError(t, err)
	assert.Equal(t, "-1234.56", amount.StringFixed(2))
}

func TestParser_HeadersNotFound(t *testing.T) {
	input := "mBank S.A.;\n#Klient;\nJAN KOWALSKI;\n2024-01-05;COFFEE;-1,00;\n"

	txns, err := NewParser(MBank).Parse(strings.NewReader(input))
	require.Error(t, err)
	assert.Empty(t, txns)

	var fe *domain.FormatError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, ErrHeadersNotFound, fe.Error())
}

func TestParser_RowsStrictlyAfterHeader(t *testing.T) {
	for k := 0; k < 5; k++ {
		t.Run(fmt.Sprintf("header at line %d", k+1), func(t *testing.T) {
			var lines []string
			for i := 0; i < k; i++ {
				lines = append(lines, fmt.Sprintf("preamble %d;;", i))
			}
			lines = append(lines, "#Data operacji;#Opis operacji;#Kwota;")
			lines = append(lines, "2024-01-01;A;-1,00;", "", "2024-01-02;B;-2,00;", "   ", "2024-01-03;C;-3,00;", "")

			txns, err := NewParser(MBank).Parse(strings.NewReader(strings.Join(lines, "\n")))
			require.NoError(t, err)
			require.Len(t, txns, 3)
			assert.Equal(t, []string{"A", "B", "C"}, []string{txns[0].Description, txns[1].Description, txns[2].Description})
		})
	}
}

func TestParser_ColumnOrderAndMissingColumns(t *testing.T) {
	input := "#Kwota;#Opis operacji;#Data operacji\n-5,00;\"KIOSK\";2024-02-01\n-7,00;\"BAKERY\"\n"

	txns, err := NewParser(MBank).Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, txns, 2)

	assert.Equal(t, "2024-02-01", txns[0].Date)
	assert.Equal(t, "KIOSK", txns[0].Description)
	assert.Equal(t, "-5,00", txns[0].Amount)
	assert.Empty(t, txns[0].Account, "absent column decodes to empty")
	assert.Empty(t, txns[0].SourceCategory)

	assert.Equal(t, "BAKERY", txns[1].Description)
	assert.Empty(t, txns[1].Date, "short row decodes to empty")
}

func TestParser_CRLFAndBOM(t *testing.T) {
	input := "\xEF\xBB\xBFsummary;\r\n#Data operacji;#Opis operacji;#Kwota;\r\n2024-01-05;COFFEE SHOP;-12,50;\r\n\r\n"

	txns, err := NewParser(MBank).Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, "COFFEE SHOP", txns[0].Description)
	assert.Equal(t, "-12,50", txns[0].Amount)
}

func TestParser_Windows1250(t *testing.T) {
	utf := "#Data operacji;#Opis operacji;#Kategoria;#Kwota;\n2024-01-06;ŻABKA ŁÓDŹ;Żywność;-9,99;\n"
	encoded, err := charmap.Windows1250.NewEncoder().String(utf)
	require.NoError(t, err)

	txns, err := NewParser(MBank).Parse(strings.NewReader(encoded))
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, "ŻABKA ŁÓDŹ", txns[0].Description)
	assert.Equal(t, "Żywność", txns[0].SourceCategory)
}

func TestParser_CustomProfile(t *testing.T) {
	p := NewParser(Profile{
		Name:         "generic",
		HeaderAnchor: "Booking date",
		Delimiter:    ',',
		Columns: Columns{
			Date:        "Booking date",
			Description: "Details",
			Amount:      "Value",
		},
	})
	assert.Equal(t, "generic", p.Format())

	input := "Statement for ACME\nBooking date,Details,Value\n2024-03-01,\"RENT, MARCH\",-1500.00\n"
	txns, err := p.Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, "RENT, MARCH", txns[0].Description)
	assert.Equal(t, "-1500.00", txns[0].Amount)
}

func TestNewParser_Defaults(t *testing.T) {
	p := NewParser(Profile{})
	assert.Equal(t, "mbank", p.Format())
	assert.Equal(t, MBank.Columns, p.profile.Columns)
}
