// =============================================================================
// GTD Declaration Engine - Form Adapter
// =============================================================================
//
// This module maps the flat, string-keyed UI form to the canonical declaration
// model and back. Every canonical field has exactly one form key; the tables
// below are the single source of truth for both directions.
//
// FORM SHAPE:
//   Header fields are flat snake_case keys (exporter_tin, invoice_total, ...).
//   Items are a list of flat records (hs_code, net_weight, ...).
//   Every value is an optional string: nil means absent.
//
// ROUND TRIP:
//   CanonicalToForm(FormToCanonical(f)) == f for every well-formed form f:
//     - no value is the empty string
//     - numbers are written in canonical decimal form ("19245", "0.5")
//     - integer counts and sequence numbers are plain integers, seq > 0
//
// The adapter neither validates nor corrects. Values that cannot be parsed
// into the canonical model are left absent and reported in a ParseError.
//
// =============================================================================

package adapter

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/gtd-declaration-engine/internal/types"
)

// =============================================================================
// FORM RECORDS
// =============================================================================

// Form is the UI form representation of a declaration.
type Form struct {
	ID            *string `json:"id,omitempty"`
	Type          *string `json:"type,omitempty"`
	Date          *string `json:"date,omitempty"`
	ProcedureCode *string `json:"procedure_code,omitempty"`

	ExporterName    *string `json:"exporter_name,omitempty"`
	ExporterAddress *string `json:"exporter_address,omitempty"`
	ExporterTIN     *string `json:"exporter_tin,omitempty"`
	ExporterCountry *string `json:"exporter_country,omitempty"`

	ConsigneeName    *string `json:"consignee_name,omitempty"`
	ConsigneeAddress *string `json:"consignee_address,omitempty"`
	ConsigneeTIN     *string `json:"consignee_tin,omitempty"`
	ConsigneeCountry *string `json:"consignee_country,omitempty"`

	DeclarantName    *string `json:"declarant_name,omitempty"`
	DeclarantAddress *string `json:"declarant_address,omitempty"`
	DeclarantTIN     *string `json:"declarant_tin,omitempty"`
	DeclarantCountry *string `json:"declarant_country,omitempty"`

	Currency       *string `json:"currency,omitempty"`
	InvoiceNumber  *string `json:"invoice_number,omitempty"`
	InvoiceDate    *string `json:"invoice_date,omitempty"`
	InvoiceTotal   *string `json:"invoice_total,omitempty"`
	ExchangeRate   *string `json:"exchange_rate,omitempty"`
	Incoterms      *string `json:"incoterms,omitempty"`
	IncotermsPlace *string `json:"incoterms_place,omitempty"`

	TransportMode      *string `json:"transport_mode,omitempty"`
	DispatchCountry    *string `json:"dispatch_country,omitempty"`
	OriginCountry      *string `json:"origin_country,omitempty"`
	DestinationCountry *string `json:"destination_country,omitempty"`
	CustomsOffice      *string `json:"customs_office,omitempty"`

	TotalGrossWeight *string `json:"total_gross_weight,omitempty"`
	TotalNetWeight   *string `json:"total_net_weight,omitempty"`
	TotalPackages    *string `json:"total_packages,omitempty"`
	TotalDuty        *string `json:"total_duty,omitempty"`
	TotalVAT         *string `json:"total_vat,omitempty"`
	TotalExcise      *string `json:"total_excise,omitempty"`
	TotalFee         *string `json:"total_fee,omitempty"`
	TotalPayment     *string `json:"total_payment,omitempty"`

	Items []FormItem `json:"items,omitempty"`
}

// FormItem is one goods row of the form.
type FormItem struct {
	Seq              *string `json:"seq,omitempty"`
	HSCode           *string `json:"hs_code,omitempty"`
	Description      *string `json:"description,omitempty"`
	OriginCountry    *string `json:"origin_country,omitempty"`
	GrossWeight      *string `json:"gross_weight,omitempty"`
	NetWeight        *string `json:"net_weight,omitempty"`
	Quantity         *string `json:"quantity,omitempty"`
	UnitCode         *string `json:"unit_code,omitempty"`
	InvoiceValue     *string `json:"invoice_value,omitempty"`
	CustomsValue     *string `json:"customs_value,omitempty"`
	StatisticalValue *string `json:"statistical_value,omitempty"`
	PackagingType    *string `json:"packaging_type,omitempty"`
	PackageCount     *string `json:"package_count,omitempty"`

	DutyRate   *string `json:"duty_rate,omitempty"`
	VATRate    *string `json:"vat_rate,omitempty"`
	ExciseRate *string `json:"excise_rate,omitempty"`
	Duty       *string `json:"duty,omitempty"`
	VAT        *string `json:"vat,omitempty"`
	Excise     *string `json:"excise,omitempty"`
	Fee        *string `json:"fee,omitempty"`
	Total      *string `json:"total,omitempty"`
}

// Ref returns a pointer to s, for building forms in code.
func Ref(s string) *string {
	return &s
}

// =============================================================================
// PARSE ERRORS
// =============================================================================

// ParseError aggregates every form value that could not be represented in the
// canonical model.
type ParseError struct {
	Errors []*types.FieldFormatError
}

func (e *ParseError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		msgs[i] = fe.Error()
	}
	return fmt.Sprintf("%d unparseable form value(s): %s", len(e.Errors), strings.Join(msgs, "; "))
}

// Unwrap exposes the individual field errors to errors.As.
func (e *ParseError) Unwrap() []error {
	out := make([]error, len(e.Errors))
	for i, fe := range e.Errors {
		out[i] = fe
	}
	return out
}

func (e *ParseError) add(path, raw string, err error) {
	e.Errors = append(e.Errors, &types.FieldFormatError{Path: path, Value: raw, Reason: err.Error()})
}

func (e *ParseError) orNil() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e
}

// ErrUnknownKey is returned by Set for a key that is not part of the form.
var ErrUnknownKey = errors.New("unknown form key")

// =============================================================================
// TYPED VALUES
// =============================================================================

// value is a typed view of one canonical field.
type value interface {
	format() *string
	parse(raw string) error
}

type textValue struct{ p *string }

func (v textValue) format() *string {
	if *v.p == "" {
		return nil
	}
	return Ref(*v.p)
}

func (v textValue) parse(raw string) error {
	*v.p = raw
	return nil
}

type decimalValue struct{ p *decimal.NullDecimal }

func (v decimalValue) format() *string {
	if !v.p.Valid {
		return nil
	}
	return Ref(v.p.Decimal.String())
}

// Bounds on form numbers. Amounts above the calculator's overflow limit but
// below maxIntegerDigits still parse so that the item is aborted with a
// calculation finding instead of a format finding.
const (
	maxNumberLength   = 64
	maxIntegerDigits  = 18
	maxFractionDigits = 20
)

var numberLimit = decimal.New(1, maxIntegerDigits)

func (v decimalValue) parse(raw string) error {
	s := strings.TrimSpace(raw)
	if len(s) > maxNumberLength {
		return fmt.Errorf("longer than %d characters", maxNumberLength)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return errors.New("not a finite decimal number")
	}
	// Check the exponent before anything rescales the coefficient.
	if exp := d.Exponent(); exp < -maxFractionDigits {
		return fmt.Errorf("more than %d decimal places", maxFractionDigits)
	} else if exp > maxIntegerDigits || d.Abs().GreaterThanOrEqual(numberLimit) {
		return errors.New("out of range")
	}
	*v.p = types.Some(d)
	return nil
}

type countValue struct{ p *sql.NullInt64 }

func (v countValue) format() *string {
	if !v.p.Valid {
		return nil
	}
	return Ref(strconv.FormatInt(v.p.Int64, 10))
}

func (v countValue) parse(raw string) error {
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return errors.New("not an integer")
	}
	*v.p = types.SomeInt(n)
	return nil
}

type seqValue struct{ p *int }

func (v seqValue) format() *string {
	if *v.p == 0 {
		return nil
	}
	return Ref(strconv.Itoa(*v.p))
}

func (v seqValue) parse(raw string) error {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return errors.New("not an integer")
	}
	*v.p = n
	return nil
}

// =============================================================================
// FIELD TABLES
// =============================================================================

type headerField struct {
	key  string
	path string
	form func(f *Form) **string
	decl func(d *types.Declaration) value
}

type itemField struct {
	key  string
	form func(f *FormItem) **string
	item func(it *types.Item) value
}

var headerFields = []headerField{
	{"id", "id", func(f *Form) **string { return &f.ID }, func(d *types.Declaration) value { return textValue{&d.ID} }},
	{"type", "type", func(f *Form) **string { return &f.Type }, func(d *types.Declaration) value { return textValue{(*string)(&d.Type)} }},
	{"date", "date", func(f *Form) **string { return &f.Date }, func(d *types.Declaration) value { return textValue{&d.Date} }},
	{"procedure_code", "procedure_code", func(f *Form) **string { return &f.ProcedureCode }, func(d *types.Declaration) value { return textValue{&d.ProcedureCode} }},

	{"exporter_name", "exporter.name", func(f *Form) **string { return &f.ExporterName }, func(d *types.Declaration) value { return textValue{&d.Exporter.Name} }},
	{"exporter_address", "exporter.address", func(f *Form) **string { return &f.ExporterAddress }, func(d *types.Declaration) value { return textValue{&d.Exporter.Address} }},
	{"exporter_tin", "exporter.tin", func(f *Form) **string { return &f.ExporterTIN }, func(d *types.Declaration) value { return textValue{&d.Exporter.TIN} }},
	{"exporter_country", "exporter.country", func(f *Form) **string { return &f.ExporterCountry }, func(d *types.Declaration) value { return textValue{&d.Exporter.Country} }},

	{"consignee_name", "consignee.name", func(f *Form) **string { return &f.ConsigneeName }, func(d *types.Declaration) value { return textValue{&d.Consignee.Name} }},
	{"consignee_address", "consignee.address", func(f *Form) **string { return &f.ConsigneeAddress }, func(d *types.Declaration) value { return textValue{&d.Consignee.Address} }},
	{"consignee_tin", "consignee.tin", func(f *Form) **string { return &f.ConsigneeTIN }, func(d *types.Declaration) value { return textValue{&d.Consignee.TIN} }},
	{"consignee_country", "consignee.country", func(f *Form) **string { return &f.ConsigneeCountry }, func(d *types.Declaration) value { return textValue{&d.Consignee.Country} }},

	{"declarant_name", "declarant.name", func(f *Form) **string { return &f.DeclarantName }, func(d *types.Declaration) value { return textValue{&d.Declarant.Name} }},
	{"declarant_address", "declarant.address", func(f *Form) **string { return &f.DeclarantAddress }, func(d *types.Declaration) value { return textValue{&d.Declarant.Address} }},
	{"declarant_tin", "declarant.tin", func(f *Form) **string { return &f.DeclarantTIN }, func(d *types.Declaration) value { return textValue{&d.Declarant.TIN} }},
	{"declarant_country", "declarant.country", func(f *Form) **string { return &f.DeclarantCountry }, func(d *types.Declaration) value { return textValue{&d.Declarant.Country} }},

	{"currency", "financial.currency", func(f *Form) **string { return &f.Currency }, func(d *types.Declaration) value { return textValue{&d.Financial.Currency} }},
	{"invoice_number", "financial.invoice_number", func(f *Form) **string { return &f.InvoiceNumber }, func(d *types.Declaration) value { return textValue{&d.Financial.InvoiceNumber} }},
	{"invoice_date", "financial.invoice_date", func(f *Form) **string { return &f.InvoiceDate }, func(d *types.Declaration) value { return textValue{&d.Financial.InvoiceDate} }},
	{"invoice_total", "financial.invoice_total", func(f *Form) **string { return &f.InvoiceTotal }, func(d *types.Declaration) value { return decimalValue{&d.Financial.InvoiceTotal} }},
	{"exchange_rate", "financial.exchange_rate", func(f *Form) **string { return &f.ExchangeRate }, func(d *types.Declaration) value { return decimalValue{&d.Financial.ExchangeRate} }},
	{"incoterms", "financial.incoterms", func(f *Form) **string { return &f.Incoterms }, func(d *types.Declaration) value { return textValue{&d.Financial.Incoterms} }},
	{"incoterms_place", "financial.incoterms_place", func(f *Form) **string { return &f.IncotermsPlace }, func(d *types.Declaration) value { return textValue{&d.Financial.IncotermsPlace} }},

	{"transport_mode", "logistics.transport_mode", func(f *Form) **string { return &f.TransportMode }, func(d *types.Declaration) value { return textValue{&d.Logistics.TransportMode} }},
	{"dispatch_country", "logistics.dispatch_country", func(f *Form) **string { return &f.DispatchCountry }, func(d *types.Declaration) value { return textValue{&d.Logistics.DispatchCountry} }},
	{"origin_country", "logistics.origin_country", func(f *Form) **string { return &f.OriginCountry }, func(d *types.Declaration) value { return textValue{&d.Logistics.OriginCountry} }},
	{"destination_country", "logistics.destination_country", func(f *Form) **string { return &f.DestinationCountry }, func(d *types.Declaration) value { return textValue{&d.Logistics.DestinationCountry} }},
	{"customs_office", "logistics.customs_office", func(f *Form) **string { return &f.CustomsOffice }, func(d *types.Declaration) value { return textValue{&d.Logistics.CustomsOffice} }},

	{"total_gross_weight", "totals.gross_weight", func(f *Form) **string { return &f.TotalGrossWeight }, func(d *types.Declaration) value { return decimalValue{&d.Totals.GrossWeight} }},
	{"total_net_weight", "totals.net_weight", func(f *Form) **string { return &f.TotalNetWeight }, func(d *types.Declaration) value { return decimalValue{&d.Totals.NetWeight} }},
	{"total_packages", "totals.packages", func(f *Form) **string { return &f.TotalPackages }, func(d *types.Declaration) value { return countValue{&d.Totals.Packages} }},
	{"total_duty", "totals.duty", func(f *Form) **string { return &f.TotalDuty }, func(d *types.Declaration) value { return decimalValue{&d.Totals.Duty} }},
	{"total_vat", "totals.vat", func(f *Form) **string { return &f.TotalVAT }, func(d *types.Declaration) value { return decimalValue{&d.Totals.VAT} }},
	{"total_excise", "totals.excise", func(f *Form) **string { return &f.TotalExcise }, func(d *types.Declaration) value { return decimalValue{&d.Totals.Excise} }},
	{"total_fee", "totals.fee", func(f *Form) **string { return &f.TotalFee }, func(d *types.Declaration) value { return decimalValue{&d.Totals.Fee} }},
	{"total_payment", "totals.payment", func(f *Form) **string { return &f.TotalPayment }, func(d *types.Declaration) value { return decimalValue{&d.Totals.Payment} }},
}

var itemFields = []itemField{
	{"seq", func(f *FormItem) **string { return &f.Seq }, func(it *types.Item) value { return seqValue{&it.Seq} }},
	{"hs_code", func(f *FormItem) **string { return &f.HSCode }, func(it *types.Item) value { return textValue{&it.HSCode} }},
	{"description", func(f *FormItem) **string { return &f.Description }, func(it *types.Item) value { return textValue{&it.Description} }},
	{"origin_country", func(f *FormItem) **string { return &f.OriginCountry }, func(it *types.Item) value { return textValue{&it.OriginCountry} }},
	{"gross_weight", func(f *FormItem) **string { return &f.GrossWeight }, func(it *types.Item) value { return decimalValue{&it.GrossWeight} }},
	{"net_weight", func(f *FormItem) **string { return &f.NetWeight }, func(it *types.Item) value { return decimalValue{&it.NetWeight} }},
	{"quantity", func(f *FormItem) **string { return &f.Quantity }, func(it *types.Item) value { return decimalValue{&it.Quantity} }},
	{"unit_code", func(f *FormItem) **string { return &f.UnitCode }, func(it *types.Item) value { return textValue{&it.UnitCode} }},
	{"invoice_value", func(f *FormItem) **string { return &f.InvoiceValue }, func(it *types.Item) value { return decimalValue{&it.InvoiceValue} }},
	{"customs_value", func(f *FormItem) **string { return &f.CustomsValue }, func(it *types.Item) value { return decimalValue{&it.CustomsValue} }},
	{"statistical_value", func(f *FormItem) **string { return &f.StatisticalValue }, func(it *types.Item) value { return decimalValue{&it.StatisticalValue} }},
	{"packaging_type", func(f *FormItem) **string { return &f.PackagingType }, func(it *types.Item) value { return textValue{&it.PackagingType} }},
	{"package_count", func(f *FormItem) **string { return &f.PackageCount }, func(it *types.Item) value { return countValue{&it.PackageCount} }},
	{"duty_rate", func(f *FormItem) **string { return &f.DutyRate }, func(it *types.Item) value { return decimalValue{&it.Payment.DutyRate} }},
	{"vat_rate", func(f *FormItem) **string { return &f.VATRate }, func(it *types.Item) value { return decimalValue{&it.Payment.VATRate} }},
	{"excise_rate", func(f *FormItem) **string { return &f.ExciseRate }, func(it *types.Item) value { return decimalValue{&it.Payment.ExciseRate} }},
	{"duty", func(f *FormItem) **string { return &f.Duty }, func(it *types.Item) value { return decimalValue{&it.Payment.Duty} }},
	{"vat", func(f *FormItem) **string { return &f.VAT }, func(it *types.Item) value { return decimalValue{&it.Payment.VAT} }},
	{"excise", func(f *FormItem) **string { return &f.Excise }, func(it *types.Item) value { return decimalValue{&it.Payment.Excise} }},
	{"fee", func(f *FormItem) **string { return &f.Fee }, func(it *types.Item) value { return decimalValue{&it.Payment.Fee} }},
	{"total", func(f *FormItem) **string { return &f.Total }, func(it *types.Item) value { return decimalValue{&it.Payment.Total} }},
}

// HeaderKeys lists every header form key in form order.
func HeaderKeys() []string {
	keys := make([]string, len(headerFields))
	for i, f := range headerFields {
		keys[i] = f.key
	}
	return keys
}

// ItemKeys lists every item form key in form order.
func ItemKeys() []string {
	keys := make([]string, len(itemFields))
	for i, f := range itemFields {
		keys[i] = f.key
	}
	return keys
}

// Get returns the value of a header key.
func (f *Form) Get(key string) (*string, bool) {
	for _, hf := range headerFields {
		if hf.key == key {
			return *hf.form(f), true
		}
	}
	return nil, false
}

// Set assigns the value of a header key.
func (f *Form) Set(key string, v *string) error {
	for _, hf := range headerFields {
		if hf.key == key {
			*hf.form(f) = v
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrUnknownKey, key)
}

// Get returns the value of an item key.
func (f *FormItem) Get(key string) (*string, bool) {
	for _, itf := range itemFields {
		if itf.key == key {
			return *itf.form(f), true
		}
	}
	return nil, false
}

// Set assigns the value of an item key.
func (f *FormItem) Set(key string, v *string) error {
	for _, itf := range itemFields {
		if itf.key == key {
			*itf.form(f) = v
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrUnknownKey, key)
}

// =============================================================================
// MAPPING
// =============================================================================

// FormToCanonical maps a form to the canonical model.
//
// RETURNS:
//   - The declaration. Absent or empty form values stay absent.
//   - A *ParseError when some values could not be parsed; the declaration is
//     still returned with those fields absent.
func FormToCanonical(f Form) (types.Declaration, error) {
	var (
		decl types.Declaration
		perr ParseError
	)

	for _, hf := range headerFields {
		raw := *hf.form(&f)
		if raw == nil || *raw == "" {
			continue
		}
		if err := hf.decl(&decl).parse(*raw); err != nil {
			perr.add(hf.path, *raw, err)
		}
	}

	if f.Items != nil {
		decl.Items = make([]types.Item, len(f.Items))
	}
	for i := range f.Items {
		for _, itf := range itemFields {
			raw := *itf.form(&f.Items[i])
			if raw == nil || *raw == "" {
				continue
			}
			if err := itf.item(&decl.Items[i]).parse(*raw); err != nil {
				perr.add(fmt.Sprintf("items[%d].%s", i, itf.key), *raw, err)
			}
		}
	}

	return decl, perr.orNil()
}

// CanonicalToForm maps a declaration to its form representation.
func CanonicalToForm(decl types.Declaration) Form {
	var f Form

	for _, hf := range headerFields {
		*hf.form(&f) = hf.decl(&decl).format()
	}

	if decl.Items != nil {
		f.Items = make([]FormItem, len(decl.Items))
	}
	for i := range decl.Items {
		for _, itf := range itemFields {
			*itf.form(&f.Items[i]) = itf.item(&decl.Items[i]).format()
		}
	}

	return f
}
