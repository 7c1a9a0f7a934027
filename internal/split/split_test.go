package split

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/finance-assistant/internal/domain"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestValidate(t *testing.T) {
	ok := Split{domain.Education: d("30"), domain.Pleasures: d("70")}
	assert.NoError(t, Validate(ok, d("100")))

	bad := Split{domain.Education: d("30"), domain.Pleasures: d("69.5")}
	err := Validate(bad, d("100"))
	require.Error(t, err)

	var ve *domain.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Contains(t, err.Error(), "69.5")
	assert.Contains(t, err.Error(), "100.00")
	assert.Contains(t, err.Error(), "Sum of amounts (99.50) must equal transaction amount (100.00)")
}

func TestValidate_Tolerance(t *testing.T) {
	total := d("100")
	assert.NoError(t, Validate(Split{domain.Education: d("99.99")}, total))
	assert.NoError(t, Validate(Split{domain.Education: d("100.01")}, total))
	assert.Error(t, Validate(Split{domain.Education: d("99.98")}, total))
	assert.Error(t, Validate(Split{}, total))
	assert.NoError(t, Validate(Split{}, decimal.Zero))
}

func TestValidate_NegativeAmounts(t *testing.T) {
	s := Split{domain.BasicOutcomes: d("-50.25"), domain.Pleasures: d("-50.25")}
	assert.NoError(t, Validate(s, d("-100.50")))
}

func TestFormatParse_RoundTrip(t *testing.T) {
	s := Split{domain.Education: d("12.50"), domain.Pleasures: d("7.50")}

	formatted := Format(s)
	assert.Equal(t, "Education: 12.50, Pleasures: 7.50", formatted)

	parsed := Parse(formatted)
	require.Len(t, parsed, 2)
	assert.True(t, parsed[domain.Education].Equal(d("12.50")))
	assert.True(t, parsed[domain.Pleasures].Equal(d("7.50")))
	assert.Equal(t, formatted, Format(parsed))
}

func TestFormat_ClosedSetOrder(t *testing.T) {
	s := Split{domain.Pleasures: d("1"), domain.BasicOutcomes: d("2"), domain.KidsEducation: d("3")}
	assert.Equal(t, "Basic Outcomes: 2.00, Kids Education: 3.00, Pleasures: 1.00", Format(s))
}

func TestParse_IgnoresUnknown(t *testing.T) {
	parsed := Parse("Education: 12.50, Travel: 5.00, Pleasures: abc, Emergency Fund: 2.50")

	assert.Equal(t, []domain.Category{domain.EmergencyFund, domain.Education}, parsed.Categories())
	assert.Empty(t, Parse("Education"))
	assert.Empty(t, Parse(""))
}

func TestEven(t *testing.T) {
	cs := []domain.Category{domain.Education, domain.Pleasures, domain.BasicOutcomes}
	s := Even(d("100"), cs)

	assert.True(t, s[domain.Education].Equal(d("33.33")))
	assert.True(t, s[domain.Pleasures].Equal(d("33.33")))
	assert.True(t, s[domain.BasicOutcomes].Equal(d("33.34")))
	assert.True(t, s.Sum().Equal(d("100")))

	assert.Empty(t, Even(d("100"), nil))
}

func TestFromAmounts(t *testing.T) {
	s, err := FromAmounts(map[string]decimal.Decimal{"education": d("5"), "Pleasures": d("5")})
	require.NoError(t, err)
	assert.Equal(t, "Education: 5.00, Pleasures: 5.00", Format(s))

	_, err = FromAmounts(map[string]decimal.Decimal{"Travel": d("5")})
	assert.Error(t, err)
}

func TestEditor_ToggleSplitsEvenly(t *testing.T) {
	e := NewEditor(d("20"))
	assert.False(t, e.CanConfirm())

	require.NoError(t, e.Toggle(domain.Education))
	assert.True(t, e.Amounts()[domain.Education].Equal(d("20")))
	assert.True(t, e.CanConfirm())

	require.NoError(t, e.Toggle(domain.Pleasures))
	assert.True(t, e.Amounts()[domain.Education].Equal(d("10")))
	assert.True(t, e.Amounts()[domain.Pleasures].Equal(d("10")))

	require.NoError(t, e.Toggle(domain.Education))
	assert.Equal(t, []domain.Category{domain.Pleasures}, e.Selected())
	_, stillThere := e.Amounts()[domain.Education]
	assert.False(t, stillThere)
	assert.True(t, e.Amounts()[domain.Pleasures].Equal(d("20")))
}

func TestEditor_HandEditRevalidates(t *testing.T) {
	e := NewEditor(d("20"))
	require.NoError(t, e.Toggle(domain.Education))
	require.NoError(t, e.Toggle(domain.Pleasures))

	require.NoError(t, e.SetAmount(domain.Education, d("12.5")))
	assert.False(t, e.CanConfirm())
	assert.Error(t, e.Err())
	_, err := e.Confirm()
	assert.Error(t, err)

	require.NoError(t, e.SetAmount(domain.Pleasures, d("7.5")))
	assert.True(t, e.CanConfirm())

	out, err := e.Confirm()
	require.NoError(t, err)
	assert.Equal(t, "Education: 12.50, Pleasures: 7.50", out)
}

func TestEditor_Errors(t *testing.T) {
	e := NewEditor(d("20"))
	assert.Error(t, e.Toggle(domain.Category("Travel")))
	assert.Error(t, e.SetAmount(domain.Education, d("1")))

	_, err := e.Confirm()
	assert.Error(t, err)
}

func TestEditorFor(t *testing.T) {
	tx := domain.Transaction{Amount: "-20,00", AssignedCategory: "Education: -12.50, Pleasures: -7.50"}

	e, err := EditorFor(tx)
	require.NoError(t, err)
	assert.Equal(t, []domain.Category{domain.Education, domain.Pleasures}, e.Selected())
	assert.True(t, e.CanConfirm())

	single, err := EditorFor(domain.Transaction{Amount: "-20,00", AssignedCategory: "Pleasures"})
	require.NoError(t, err)
	assert.True(t, single.Amounts()[domain.Pleasures].Equal(d("-20")))

	empty, err := EditorFor(domain.Transaction{Amount: "15"})
	require.NoError(t, err)
	assert.Empty(t, empty.Selected())

	_, err = EditorFor(domain.Transaction{Amount: "n/a"})
	assert.Error(t, err)
}
