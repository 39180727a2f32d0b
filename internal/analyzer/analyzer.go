package analyzer

import (
	"log/slog"

	"github.com/go-playground/validator/v10"

	"nbslab/internal/classifier"
	"nbslab/pkg/contracts/domain"
)

// Categories reported on abnormalities, matching the printed reports
const (
	categoryAminoAcid          = "Amino Acid"
	categoryAminoAcidRatio     = "Amino Acid Ratio"
	categoryAcylcarnitine      = "Acylcarnitine"
	categoryAcylcarnitineRatio = "Acylcarnitine Ratio"
)

// Analyzer runs extracted-field documents through the reference range
// classifier. It is stateless apart from its immutable collaborators
// and safe for concurrent use.
type Analyzer struct {
	cls      *classifier.Classifier
	validate *validator.Validate
	logger   *slog.Logger
}

// New creates a document analyzer
func New(cls *classifier.Classifier, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{
		cls:      cls,
		validate: validator.New(),
		logger:   logger,
	}
}

// Validator exposes the shared struct validator for document decoding
func (a *Analyzer) Validator() *validator.Validate {
	return a.validate
}

// Analyze classifies every measurement in the document at patient tier
// and assembles the full analysis result. The document's own printed
// reference range wins when it parses; otherwise the compound falls
// back to the configured table (patient tier for measurements, ratio
// tier for ratio groups). Measurements without any usable range are
// "not evaluated" and never counted abnormal.
func (a *Analyzer) Analyze(doc *Document, sourceName string) domain.AnalysisResult {
	if sourceName == "" {
		sourceName = doc.FileName
	}
	result := domain.AnalysisResult{
		FileName:          sourceName,
		PatientInfo:       doc.PatientInfo,
		BiochemicalParams: doc.BiochemicalParams,
		Abnormalities:     []domain.Abnormality{},
	}

	result.AminoAcids = a.classifyResults(doc.AminoAcids, domain.TierPatient, categoryAminoAcid, &result.Abnormalities)
	result.AminoAcidRatios = a.classifyRatios(doc.AminoAcidRatios, categoryAminoAcidRatio, &result.Abnormalities)
	result.Acylcarnitines = a.classifyResults(doc.Acylcarnitines, domain.TierPatient, categoryAcylcarnitine, &result.Abnormalities)
	result.AcylcarnitineRatios = a.classifyRatios(doc.AcylcarnitineRatios, categoryAcylcarnitineRatio, &result.Abnormalities)

	total := len(result.AminoAcids) + len(result.AminoAcidRatios) +
		len(result.Acylcarnitines) + len(result.AcylcarnitineRatios)
	abnormal := len(result.Abnormalities)
	status := domain.StatusNormal
	if abnormal > 0 {
		status = domain.StatusAbnormal
	}
	result.Summary = domain.AnalysisSummary{
		TotalTests:    total,
		NormalCount:   total - abnormal,
		AbnormalCount: abnormal,
		Status:        status,
	}

	a.logger.Debug("document analyzed",
		slog.String("source", sourceName),
		slog.Int("total_tests", total),
		slog.Int("abnormal", abnormal),
		slog.String("status", status))
	return result
}

func (a *Analyzer) classifyResults(in []domain.TestResult, tier domain.Tier, category string, abnormalities *[]domain.Abnormality) []domain.TestResult {
	out := make([]domain.TestResult, len(in))
	for i, tr := range in {
		mc := a.classifyOne(tr.Analyte, tier, tr.Value, tr.ReferenceRange)
		normal := !mc.Verdict.Abnormal()
		tr.IsNormal = &normal
		tr.ValidationReason = mc.Reason
		out[i] = tr

		if mc.Verdict.Abnormal() {
			*abnormalities = append(*abnormalities, domain.Abnormality{
				Category:       category,
				Analyte:        tr.Analyte,
				Value:          tr.Value,
				ReferenceRange: tr.ReferenceRange,
				Reason:         mc.Reason,
				Unit:           a.unitFor(tr.Analyte, tr.Unit),
			})
		}
	}
	return out
}

func (a *Analyzer) classifyRatios(in []domain.TestRatio, category string, abnormalities *[]domain.Abnormality) []domain.TestRatio {
	out := make([]domain.TestRatio, len(in))
	for i, tr := range in {
		mc := a.classifyOne(tr.Ratio, domain.TierRatio, tr.Value, tr.ReferenceRange)
		normal := !mc.Verdict.Abnormal()
		tr.IsNormal = &normal
		tr.ValidationReason = mc.Reason
		out[i] = tr

		if mc.Verdict.Abnormal() {
			*abnormalities = append(*abnormalities, domain.Abnormality{
				Category:       category,
				Analyte:        tr.Ratio,
				Value:          tr.Value,
				ReferenceRange: tr.ReferenceRange,
				Reason:         mc.Reason,
			})
		}
	}
	return out
}

// unitFor keeps the unit printed on the document and falls back to the
// compound definition when the document omits one.
func (a *Analyzer) unitFor(analyte, documentUnit string) string {
	if documentUnit != "" {
		return documentUnit
	}
	if def, ok := a.cls.Table().Definition(analyte); ok {
		return def.Unit
	}
	return ""
}

// classifyOne picks the range source: the printed range string when it
// parses, the configured table otherwise.
func (a *Analyzer) classifyOne(analyte string, tier domain.Tier, value *float64, printedRange string) domain.MeasurementClassification {
	mc := domain.MeasurementClassification{Compound: analyte, Tier: tier, Value: value}
	if value == nil {
		mc.Verdict = domain.VerdictNotEvaluated
		mc.Color = domain.ColorNone
		mc.Reason = "value not reported"
		return mc
	}
	if r, ok := classifier.ParseRangeString(printedRange); ok {
		mc.Verdict, mc.Color, mc.Reason = classifier.Against(r, *value)
		return mc
	}
	return a.cls.Classify(analyte, tier, value)
}
