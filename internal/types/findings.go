package types

import "fmt"

// Severity classifies a finding. The engine only classifies; callers decide
// whether errors block submission.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// ErrorKind is the error taxonomy a finding belongs to.
type ErrorKind string

const (
	KindFieldFormat              ErrorKind = "FieldFormatError"
	KindCrossFieldInconsistency  ErrorKind = "CrossFieldInconsistency"
	KindReferenceDataUnavailable ErrorKind = "ReferenceDataUnavailable"
	KindCalculationOverflow      ErrorKind = "CalculationOverflow"
)

// Finding is one advisory validation result. Findings never mutate data.
type Finding struct {
	// Path is the field path, e.g. "consignee.tin" or "items[0].net_weight".
	Path     string    `json:"path"`
	Message  string    `json:"message"`
	Severity Severity  `json:"severity"`
	Kind     ErrorKind `json:"kind"`
}

// String renders the finding for logs and CLI output.
func (f Finding) String() string {
	return fmt.Sprintf("[%s] %s: %s (%s)", f.Severity, f.Path, f.Message, f.Kind)
}

// ReasonCode is the stable reason attached to a correction.
type ReasonCode string

const (
	ReasonCountryCodeNormalized  ReasonCode = "COUNTRY_CODE_NORMALIZED"
	ReasonCurrencyCodeNormalized ReasonCode = "CURRENCY_CODE_NORMALIZED"
	ReasonIncotermsNormalized    ReasonCode = "INCOTERMS_NORMALIZED"
	ReasonHSCodeNormalized       ReasonCode = "HS_CODE_NORMALIZED"
	ReasonDefaultApplied         ReasonCode = "DEFAULT_APPLIED"
	ReasonPackageCountClamped    ReasonCode = "PACKAGE_COUNT_CLAMPED"
	ReasonRounded                ReasonCode = "ROUNDED"
)

// CorrectionEntry records one change made by the auto-corrector.
type CorrectionEntry struct {
	Path      string     `json:"path"`
	Original  string     `json:"original"`
	Corrected string     `json:"corrected"`
	Reason    ReasonCode `json:"reason"`
}

// FieldFormatError reports a raw value that could not be represented in the
// canonical model (unparseable or non-finite number, bad integer).
type FieldFormatError struct {
	Path   string
	Value  string
	Reason string
}

func (e *FieldFormatError) Error() string {
	return fmt.Sprintf("%s: %s (value: %q)", e.Path, e.Reason, e.Value)
}
