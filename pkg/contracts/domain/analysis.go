package domain

// PatientInfo carries the identity fields extracted from a report
// document. All fields are optional; absent fields stay empty.
type PatientInfo struct {
	Name        string `json:"name,omitempty"`
	AgeGender   string `json:"age_gender,omitempty"`
	UHID        string `json:"uhid,omitempty"`
	ReferredBy  string `json:"referred_by,omitempty"`
	CollectedOn string `json:"collected_on,omitempty"`
	ReceivedOn  string `json:"received_on,omitempty"`
	ReportedOn  string `json:"reported_on,omitempty"`
}

// BiochemicalParam is a qualitative screening parameter (TSH, G-6PD, ...)
type BiochemicalParam struct {
	Parameter string `json:"parameter" validate:"required"`
	Result    string `json:"result" validate:"required"`
	Method    string `json:"method,omitempty"`
}

// TestResult is one quantitative measurement from a report document,
// optionally carrying the reference range printed on the report.
type TestResult struct {
	Analyte          string   `json:"analyte" validate:"required"`
	Value            *float64 `json:"value"`
	ReferenceRange   string   `json:"reference_range,omitempty"`
	Unit             string   `json:"unit,omitempty"`
	IsNormal         *bool    `json:"is_normal,omitempty"`
	ValidationReason string   `json:"validation_reason,omitempty"`
}

// TestRatio is a derived molar ratio measurement
type TestRatio struct {
	Ratio            string   `json:"ratio" validate:"required"`
	Value            *float64 `json:"value"`
	ReferenceRange   string   `json:"reference_range,omitempty"`
	IsNormal         *bool    `json:"is_normal,omitempty"`
	ValidationReason string   `json:"validation_reason,omitempty"`
}

// Abnormality surfaces one non-normal measurement for clinical review
type Abnormality struct {
	Category       string   `json:"category"`
	Analyte        string   `json:"analyte"`
	Value          *float64 `json:"value"`
	ReferenceRange string   `json:"reference_range"`
	Reason         string   `json:"reason"`
	Unit           string   `json:"unit"`
}

// Status values reported in an AnalysisSummary
const (
	StatusNormal   = "normal"
	StatusAbnormal = "abnormal"
)

// AnalysisSummary aggregates the per-document verdict counts
type AnalysisSummary struct {
	TotalTests    int    `json:"total_tests"`
	NormalCount   int    `json:"normal_count"`
	AbnormalCount int    `json:"abnormal_count"`
	Status        string `json:"status"`
}

// AnalysisResult is one subject's full outcome: identity, every
// measurement group with classifications, the abnormal subset, and the
// summary. Instances are built fresh per request and never mutated after
// classification has run.
type AnalysisResult struct {
	FileName            string             `json:"file_name"`
	PatientInfo         PatientInfo        `json:"patient_info"`
	BiochemicalParams   []BiochemicalParam `json:"biochemical_params"`
	AminoAcids          []TestResult       `json:"amino_acids"`
	AminoAcidRatios     []TestRatio        `json:"amino_acid_ratios"`
	Acylcarnitines      []TestResult       `json:"acylcarnitines"`
	AcylcarnitineRatios []TestRatio        `json:"acylcarnitine_ratios"`
	Abnormalities       []Abnormality      `json:"abnormalities"`
	Summary             AnalysisSummary    `json:"summary"`
}

// FailedReport records one batch entry that could not be processed
type FailedReport struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// BatchResult buckets many AnalysisResult values. The reducer that
// builds it guarantees Total == Successful + Failed and that every
// successful result lands in exactly one of the two report buckets.
type BatchResult struct {
	Total           int              `json:"total"`
	Successful      int              `json:"successful"`
	Failed          int              `json:"failed"`
	Normal          int              `json:"normal"`
	Abnormal        int              `json:"abnormal"`
	NormalReports   []AnalysisResult `json:"normal_reports"`
	AbnormalReports []AnalysisResult `json:"abnormal_reports"`
	FailedReports   []FailedReport   `json:"failed_reports"`
}
