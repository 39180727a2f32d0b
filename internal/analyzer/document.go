// Package analyzer classifies already-extracted report documents: one
// document at a time, or a whole archive of them with per-entry failure
// isolation. Upstream PDF text extraction is assumed done; a document
// arrives as a structured set of labeled fields.
package analyzer

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/go-playground/validator/v10"

	"nbslab/pkg/contracts/domain"
)

// Document is the extracted-field form of one screening report:
// patient identity plus the five measurement groups.
type Document struct {
	FileName            string                    `json:"file_name"`
	PatientInfo         domain.PatientInfo        `json:"patient_info"`
	BiochemicalParams   []domain.BiochemicalParam `json:"biochemical_params" validate:"dive"`
	AminoAcids          []domain.TestResult       `json:"amino_acids" validate:"dive"`
	AminoAcidRatios     []domain.TestRatio        `json:"amino_acid_ratios" validate:"dive"`
	Acylcarnitines      []domain.TestResult       `json:"acylcarnitines" validate:"dive"`
	AcylcarnitineRatios []domain.TestRatio        `json:"acylcarnitine_ratios" validate:"dive"`
}

// DecodeDocument reads and validates one JSON document. A document with
// no quantitative measurements at all is rejected: there is nothing to
// classify, so it is almost certainly not a screening report.
func DecodeDocument(r io.Reader, validate *validator.Validate) (*Document, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()

	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("invalid document: %w", err)
	}
	if err := validate.Struct(&doc); err != nil {
		return nil, fmt.Errorf("document failed validation: %w", err)
	}
	if len(doc.AminoAcids) == 0 && len(doc.Acylcarnitines) == 0 {
		return nil, fmt.Errorf("no quantitative test results found in document")
	}
	return &doc, nil
}
