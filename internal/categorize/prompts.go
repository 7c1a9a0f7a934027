package categorize

import (
	"strings"

	"github.com/dvloznov/finance-assistant/internal/domain"
	"github.com/dvloznov/finance-assistant/internal/llm"
)

// buildAssignmentPrompt lists the closed category set and describes the
// expected JSON reply.
func buildAssignmentPrompt() string {
	var b strings.Builder
	b.WriteString("You are a helpful assistant that categorizes financial transactions.\n")
	b.WriteString("Given a transaction description, assign it to one of the following categories:\n")
	for _, c := range domain.Categories {
		b.WriteString("- " + c.String() + "\n")
	}
	b.WriteString("\n")
	b.WriteString("Respond with a JSON object containing your rationale for the categorization and the final category assignment, like this:\n")
	b.WriteString("{\n")
	b.WriteString("  \"rationale\": \"This transaction appears to be for groceries which is a basic necessity\",\n")
	b.WriteString("  \"category\": \"" + domain.BasicOutcomes.String() + "\"\n")
	b.WriteString("}\n\n")
	b.WriteString("The category must be EXACTLY one of the names listed above.\n")
	return b.String()
}

// assignmentSchema constrains the provider's JSON output to the closed set.
func assignmentSchema() *llm.Schema {
	return &llm.Schema{
		Properties: map[string]llm.Property{
			"rationale": {Description: "Short reasoning behind the chosen category."},
			"category":  {Description: "The assigned budget category.", Enum: domain.CategoryNames()},
		},
		Required: []string{"rationale", "category"},
		Order:    []string{"rationale", "category"},
	}
}
