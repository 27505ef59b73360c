package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild_AppliesDefaults(t *testing.T) {
	p, err := Build(LetterInput{ClientName: "Acme Traders", ComplianceType: "GSTR-3B", Period: "March 2024"})
	require.NoError(t, err)

	assert.Contains(t, p.System, "GST compliance reminder")
	for _, want := range []string{
		"Client Name: Acme Traders",
		"GSTIN: Not provided",
		"Due Date: Applicable due date",
		"Consequence: Late fee / interest",
		"Tone: Polite",
		"Language: English",
		"Place: [Place]",
		"Date: [Date]",
		"Dear Acme Traders,",
		"[Name]\n[Designation]\n[Firm Name]",
	} {
		assert.Contains(t, p.User, want)
	}
	assert.NotContains(t, p.User, "ADDITIONAL USER INSTRUCTIONS")
}

func TestBuild_UsesProvidedValues(t *testing.T) {
	p, err := Build(LetterInput{
		ClientName:             "Acme",
		GSTIN:                  "29ABCDE1234F1Z5",
		ComplianceType:         "GSTR-1",
		Period:                 "Q1 FY24",
		DueDate:                "11/07/2024",
		Tone:                   "Urgent",
		Language:               "Tamil",
		SignerName:             "R. Iyer",
		AdditionalInstructions: "  Mention the pending invoices.  ",
	})
	require.NoError(t, err)

	assert.Contains(t, p.User, "GSTIN: 29ABCDE1234F1Z5")
	assert.Contains(t, p.User, `write it exactly as "11/07/2024"`)
	assert.Contains(t, p.User, "Tone: Urgent")
	assert.Contains(t, p.User, "Write the ENTIRE letter in Tamil")
	assert.Contains(t, p.User, "R. Iyer")
	assert.True(t, strings.HasSuffix(p.User, "Mention the pending invoices."))
}

func TestWithDefaults_DoesNotMutateInput(t *testing.T) {
	in := LetterInput{ClientName: "Acme"}
	_ = in.WithDefaults()
	assert.Empty(t, in.Tone)
}
