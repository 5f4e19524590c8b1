// Package clauses extracts typed contract clauses with risk analysis and
// removes duplicate extractions.
package clauses

// Clause types. The model classifies every extracted clause as one of these.
const (
	TypeTermination          = "Termination"
	TypePayment              = "Payment"
	TypeLiability            = "Liability"
	TypeIndemnification      = "Indemnification"
	TypeIntellectualProperty = "Intellectual Property"
	TypeConfidentiality      = "Confidentiality"
	TypeDisputeResolution    = "Dispute Resolution"
	TypeForceMajeure         = "Force Majeure"
	TypeCompliance           = "Compliance"
	TypeInsurance            = "Insurance"
	TypeWarranties           = "Warranties"
	TypeLimitationOfDamages  = "Limitation of Damages"
	TypeDataPrivacy          = "Data Privacy"
	TypeNonCompete           = "Non-Compete"
	TypeAssignment           = "Assignment"
	TypeGoverningLaw         = "Governing Law"
	TypeNotices              = "Notices"
	TypeAmendment            = "Amendment"
	TypeSeverability         = "Severability"
	TypeEntireAgreement      = "Entire Agreement"
	TypeDefinitions          = "Definitions"
	TypeOther                = "Other"
)

// Types lists every clause type in taxonomy order.
var Types = []string{
	TypeTermination, TypePayment, TypeLiability, TypeIndemnification,
	TypeIntellectualProperty, TypeConfidentiality, TypeDisputeResolution,
	TypeForceMajeure, TypeCompliance, TypeInsurance, TypeWarranties,
	TypeLimitationOfDamages, TypeDataPrivacy, TypeNonCompete, TypeAssignment,
	TypeGoverningLaw, TypeNotices, TypeAmendment, TypeSeverability,
	TypeEntireAgreement, TypeDefinitions, TypeOther,
}

// Risk flags. These exact strings are what the model must emit.
const (
	FlagUnfavorableTermination = "unfavorable_termination"
	FlagHighLiability          = "high_liability"
	FlagUnfairPaymentTerms     = "unfair_payment_terms"
	FlagWeakIndemnification    = "weak_indemnification"
	FlagIPRisk                 = "ip_risk"
	FlagComplianceRisk         = "compliance_risk"
	FlagDataPrivacyRisk        = "data_privacy_risk"
	FlagExcessivePenalties     = "excessive_penalties"
	FlagOneSidedTerms          = "one_sided_terms"
	FlagUnclearLanguage        = "unclear_language"
	FlagMissingProtections     = "missing_protections"
)

// Flags lists every valid risk flag.
var Flags = []string{
	FlagUnfavorableTermination, FlagHighLiability, FlagUnfairPaymentTerms,
	FlagWeakIndemnification, FlagIPRisk, FlagComplianceRisk,
	FlagDataPrivacyRisk, FlagExcessivePenalties, FlagOneSidedTerms,
	FlagUnclearLanguage, FlagMissingProtections,
}

// Risk bands.
const (
	RiskLow      = "low"
	RiskMedium   = "medium"
	RiskHigh     = "high"
	RiskCritical = "critical"
)

// RiskBand maps a 0-100 risk score to its band.
func RiskBand(score float64) string {
	switch {
	case score >= 75:
		return RiskCritical
	case score >= 50:
		return RiskHigh
	case score >= 25:
		return RiskMedium
	default:
		return RiskLow
	}
}

// ExtractedClause is a single clause identified by the model.
type ExtractedClause struct {
	ClauseType      string   `json:"clause_type"`
	ExtractedText   string   `json:"extracted_text"`
	PageNumber      int      `json:"page_number"`
	SectionName     string   `json:"section_name"`
	ConfidenceScore float64  `json:"confidence_score"`
	RiskScore       float64  `json:"risk_score"`
	RiskFlags       []string `json:"risk_flags"`
	RiskReasoning   string   `json:"risk_reasoning"`
	ClauseSubtype   string   `json:"clause_subtype"`
}
