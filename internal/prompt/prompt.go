// Package prompt renders the chat messages sent to the text-generation provider
// for a GST compliance letter.
package prompt

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"
	"text/template"
)

// LetterInput is the caller-supplied letter description. Only ClientName,
// ComplianceType and Period are required; the rest fall back to defaults.
type LetterInput struct {
	ClientName             string `json:"client_name"`
	GSTIN                  string `json:"gstin,omitempty"`
	ComplianceType         string `json:"compliance_type"`
	Period                 string `json:"period"`
	DueDate                string `json:"due_date,omitempty"`
	Consequence            string `json:"consequence,omitempty"`
	Tone                   string `json:"tone,omitempty"`
	Language               string `json:"language,omitempty"`
	LetterDate             string `json:"letter_date,omitempty"`
	Place                  string `json:"place,omitempty"`
	SignerName             string `json:"signer_name,omitempty"`
	Designation            string `json:"designation,omitempty"`
	FirmName               string `json:"firm_name,omitempty"`
	AdditionalInstructions string `json:"additional_instructions,omitempty"`
}

const (
	DefaultTone     = "Polite"
	DefaultLanguage = "English"
)

// Prompt is a system/user message pair.
type Prompt struct {
	System string
	User   string
}

//go:embed system.txt
var systemPrompt string

//go:embed user.tmpl
var userTemplate string

var userTmpl = template.Must(template.New("user").Parse(userTemplate))

// WithDefaults returns a copy of in with every optional field filled.
func (in LetterInput) WithDefaults() LetterInput {
	out := in
	out.GSTIN = orDefault(in.GSTIN, "Not provided")
	out.DueDate = orDefault(in.DueDate, "Applicable due date")
	out.Consequence = orDefault(in.Consequence, "Late fee / interest")
	out.Tone = orDefault(in.Tone, DefaultTone)
	out.Language = orDefault(in.Language, DefaultLanguage)
	out.Place = orDefault(in.Place, "[Place]")
	out.LetterDate = orDefault(in.LetterDate, "[Date]")
	out.SignerName = orDefault(in.SignerName, "[Name]")
	out.Designation = orDefault(in.Designation, "[Designation]")
	out.FirmName = orDefault(in.FirmName, "[Firm Name]")
	out.AdditionalInstructions = strings.TrimSpace(in.AdditionalInstructions)
	return out
}

// Build renders the messages for in. Required fields must already be validated.
func Build(in LetterInput) (Prompt, error) {
	var buf bytes.Buffer
	if err := userTmpl.Execute(&buf, in.WithDefaults()); err != nil {
		return Prompt{}, fmt.Errorf("render user prompt: %w", err)
	}
	return Prompt{System: strings.TrimSpace(systemPrompt), User: strings.TrimSpace(buf.String())}, nil
}

func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v == "" {
		return def
	}
	return v
}
