// ABOUTME: Form-conformance analysis of an administrative act: document type and formal requirements
// ABOUTME: JSON field names follow the French public API of the /analyser endpoint
package models

import "time"

// DocumentType is the kind of administrative act
type DocumentType string

const (
	DocumentArrete       DocumentType = "arrêté"
	DocumentDecision     DocumentType = "décision"
	DocumentDeliberation DocumentType = "délibération"
	DocumentConvention   DocumentType = "convention"
	DocumentOther        DocumentType = "autre"
)

// DocumentTypes lists the accepted document types
var DocumentTypes = []DocumentType{DocumentArrete, DocumentDecision, DocumentDeliberation, DocumentConvention, DocumentOther}

// ConformityState is the outcome of one formal requirement
type ConformityState string

const (
	StateCompliant    ConformityState = "conforme"
	StateNonCompliant ConformityState = "non conforme"
	// StateImplicit means the requirement cannot be read from the text but is presumed met
	StateImplicit ConformityState = "implicite"
)

// ConformityStates lists the accepted requirement states
var ConformityStates = []ConformityState{StateCompliant, StateNonCompliant, StateImplicit}

// RequirementCheck is the state of one requirement and its justification
type RequirementCheck struct {
	State       ConformityState `json:"etat"`
	Explanation string          `json:"explication"`
}

// FormRequirements are the formal requirements an act is checked against
type FormRequirements struct {
	Writing      RequirementCheck `json:"ecriture"`
	Date         RequirementCheck `json:"date"`
	Signature    RequirementCheck `json:"signature"`
	Visas        RequirementCheck `json:"visas"`
	Recitals     RequirementCheck `json:"considerants"`
	Operative    RequirementCheck `json:"dispositif"`
	Publication  RequirementCheck `json:"publication"`
	Transmission RequirementCheck `json:"transmission"`
}

// Named returns the requirements in display order with their JSON names
func (r FormRequirements) Named() []NamedRequirement {
	return []NamedRequirement{
		{"ecriture", r.Writing},
		{"date", r.Date},
		{"signature", r.Signature},
		{"visas", r.Visas},
		{"considerants", r.Recitals},
		{"dispositif", r.Operative},
		{"publication", r.Publication},
		{"transmission", r.Transmission},
	}
}

// NamedRequirement pairs a requirement check with its name
type NamedRequirement struct {
	Name string
	RequirementCheck
}

// FormAnalysis is the form-conformance judgment for one document
type FormAnalysis struct {
	Status       ParseStatus      `json:"status"`
	DocumentType DocumentType     `json:"type_de_document,omitempty"`
	Requirements FormRequirements `json:"conformite_aux_exigences_legales"`
	Observation  string           `json:"observation,omitempty"`
	Confidence   *float64         `json:"niveau_de_confiance,omitempty"`
	Authority    string           `json:"collectivite,omitempty"`
	Signatory    string           `json:"signataire,omitempty"`
	References   []Passage        `json:"references"`
	Raw          string           `json:"raw"`
	Model        string           `json:"model,omitempty"`
	AnalyzedAt   time.Time        `json:"analyzed_at"`
}

// Parsed reports whether the model output matched the analysis schema
func (f *FormAnalysis) Parsed() bool {
	return f.Status == ParseStatusParsed
}

// NonCompliant names the requirements judged not met
func (f *FormAnalysis) NonCompliant() []string {
	var out []string
	for _, r := range f.Requirements.Named() {
		if r.State == StateNonCompliant {
			out = append(out, r.Name)
		}
	}
	return out
}
