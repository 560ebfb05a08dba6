package adapter

import (
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/gtd-declaration-engine/internal/money"
	"github.com/ginjaninja78/gtd-declaration-engine/internal/types"
)

const (
	// PrimaryItemRows is the number of goods rows on the main TD1 sheet.
	PrimaryItemRows = 1

	// ContinuationRows is the number of goods rows on each continuation sheet.
	ContinuationRows = 3
)

// PrintModel is the TD1 record consumed by the print renderer. Field names
// and nesting are a fixed contract with the renderer templates.
type PrintModel struct {
	Header PrintHeader `json:"header"`

	// Primary is the first item, printed on the main sheet. Nil for a
	// declaration without items.
	Primary *PrintItem `json:"primary"`

	// AdditionalItems are the items beyond the main sheet, never nil.
	AdditionalItems []PrintItem `json:"additional_items"`

	// Continuations groups AdditionalItems into continuation sheets.
	Continuations []ContinuationSheet `json:"continuations"`

	TotalItems  int `json:"total_items"`
	TotalSheets int `json:"total_sheets"`
}

// ContinuationSheet is one continuation sheet; Sheet numbers start at 2.
type ContinuationSheet struct {
	Sheet int         `json:"sheet"`
	Items []PrintItem `json:"items"`
}

// PrintHeader holds the formatted header boxes of the main sheet.
type PrintHeader struct {
	ID            string `json:"id"`
	Type          string `json:"type"`
	Date          string `json:"date"`
	ProcedureCode string `json:"procedure_code"`

	Exporter  PrintParty `json:"exporter"`
	Consignee PrintParty `json:"consignee"`
	Declarant PrintParty `json:"declarant"`

	Currency       string `json:"currency"`
	InvoiceNumber  string `json:"invoice_number"`
	InvoiceDate    string `json:"invoice_date"`
	InvoiceTotal   string `json:"invoice_total"`
	ExchangeRate   string `json:"exchange_rate"`
	Incoterms      string `json:"incoterms"`
	IncotermsPlace string `json:"incoterms_place"`

	TransportMode      string `json:"transport_mode"`
	DispatchCountry    string `json:"dispatch_country"`
	OriginCountry      string `json:"origin_country"`
	DestinationCountry string `json:"destination_country"`
	CustomsOffice      string `json:"customs_office"`

	TotalGrossWeight string `json:"total_gross_weight"`
	TotalNetWeight   string `json:"total_net_weight"`
	TotalPackages    string `json:"total_packages"`
	TotalDuty        string `json:"total_duty"`
	TotalVAT         string `json:"total_vat"`
	TotalExcise      string `json:"total_excise"`
	TotalFee         string `json:"total_fee"`
	TotalPayment     string `json:"total_payment"`
}

// PrintParty is a formatted participant box.
type PrintParty struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	TIN     string `json:"tin"`
	Country string `json:"country"`
}

// PrintItem is one formatted goods row.
type PrintItem struct {
	Seq              string `json:"seq"`
	HSCode           string `json:"hs_code"`
	Description      string `json:"description"`
	OriginCountry    string `json:"origin_country"`
	GrossWeight      string `json:"gross_weight"`
	NetWeight        string `json:"net_weight"`
	Quantity         string `json:"quantity"`
	UnitCode         string `json:"unit_code"`
	InvoiceValue     string `json:"invoice_value"`
	CustomsValue     string `json:"customs_value"`
	StatisticalValue string `json:"statistical_value"`
	PackagingType    string `json:"packaging_type"`
	PackageCount     string `json:"package_count"`
	DutyRate         string `json:"duty_rate"`
	VATRate          string `json:"vat_rate"`
	ExciseRate       string `json:"excise_rate"`
	Duty             string `json:"duty"`
	VAT              string `json:"vat"`
	Excise           string `json:"excise"`
	Fee              string `json:"fee"`
	Total            string `json:"total"`
}

// CanonicalToPrintModel splits a declaration into the main sheet and its
// continuation sheets.
func CanonicalToPrintModel(decl types.Declaration) PrintModel {
	model := PrintModel{
		Header:          printHeader(decl),
		AdditionalItems: []PrintItem{},
		Continuations:   []ContinuationSheet{},
		TotalItems:      len(decl.Items),
		TotalSheets:     1,
	}

	for i, it := range decl.Items {
		row := printItem(it)
		if i < PrimaryItemRows {
			model.Primary = &row
			continue
		}
		model.AdditionalItems = append(model.AdditionalItems, row)
	}

	for start := 0; start < len(model.AdditionalItems); start += ContinuationRows {
		end := min(start+ContinuationRows, len(model.AdditionalItems))
		model.Continuations = append(model.Continuations, ContinuationSheet{
			Sheet: len(model.Continuations) + 2,
			Items: model.AdditionalItems[start:end],
		})
	}
	model.TotalSheets += len(model.Continuations)

	return model
}

// SheetCount returns the number of sheets needed to print itemCount items.
func SheetCount(itemCount int) int {
	extra := itemCount - PrimaryItemRows
	if extra <= 0 {
		return 1
	}
	return 1 + (extra+ContinuationRows-1)/ContinuationRows
}

func printHeader(d types.Declaration) PrintHeader {
	return PrintHeader{
		ID:            d.ID,
		Type:          string(d.Type),
		Date:          money.FormatDate(d.Date),
		ProcedureCode: d.ProcedureCode,

		Exporter:  printParty(d.Exporter),
		Consignee: printParty(d.Consignee),
		Declarant: printParty(d.Declarant),

		Currency:       d.Financial.Currency,
		InvoiceNumber:  d.Financial.InvoiceNumber,
		InvoiceDate:    money.FormatDate(d.Financial.InvoiceDate),
		InvoiceTotal:   money.FormatAmount(d.Financial.InvoiceTotal),
		ExchangeRate:   formatRate(d.Financial.ExchangeRate),
		Incoterms:      d.Financial.Incoterms,
		IncotermsPlace: d.Financial.IncotermsPlace,

		TransportMode:      d.Logistics.TransportMode,
		DispatchCountry:    d.Logistics.DispatchCountry,
		OriginCountry:      d.Logistics.OriginCountry,
		DestinationCountry: d.Logistics.DestinationCountry,
		CustomsOffice:      d.Logistics.CustomsOffice,

		TotalGrossWeight: money.FormatWeight(d.Totals.GrossWeight),
		TotalNetWeight:   money.FormatWeight(d.Totals.NetWeight),
		TotalPackages:    formatCount(d.Totals.Packages.Int64, d.Totals.Packages.Valid),
		TotalDuty:        money.FormatAmount(d.Totals.Duty),
		TotalVAT:         money.FormatAmount(d.Totals.VAT),
		TotalExcise:      money.FormatAmount(d.Totals.Excise),
		TotalFee:         money.FormatAmount(d.Totals.Fee),
		TotalPayment:     money.FormatAmount(d.Totals.Payment),
	}
}

func printParty(p types.Party) PrintParty {
	return PrintParty{Name: p.Name, Address: p.Address, TIN: p.TIN, Country: p.Country}
}

func printItem(it types.Item) PrintItem {
	return PrintItem{
		Seq:              formatCount(int64(it.Seq), it.Seq != 0),
		HSCode:           it.HSCode,
		Description:      it.Description,
		OriginCountry:    it.OriginCountry,
		GrossWeight:      money.FormatWeight(it.GrossWeight),
		NetWeight:        money.FormatWeight(it.NetWeight),
		Quantity:         money.FormatWeight(it.Quantity),
		UnitCode:         it.UnitCode,
		InvoiceValue:     money.FormatAmount(it.InvoiceValue),
		CustomsValue:     money.FormatAmount(it.CustomsValue),
		StatisticalValue: money.FormatAmount(it.StatisticalValue),
		PackagingType:    it.PackagingType,
		PackageCount:     formatCount(it.PackageCount.Int64, it.PackageCount.Valid),
		DutyRate:         formatRate(it.Payment.DutyRate),
		VATRate:          formatRate(it.Payment.VATRate),
		ExciseRate:       formatRate(it.Payment.ExciseRate),
		Duty:             money.FormatAmount(it.Payment.Duty),
		VAT:              money.FormatAmount(it.Payment.VAT),
		Excise:           money.FormatAmount(it.Payment.Excise),
		Fee:              money.FormatAmount(it.Payment.Fee),
		Total:            money.FormatAmount(it.Payment.Total),
	}
}

// formatRate renders percentages and exchange rates without padding; they are
// not amounts and keep their own precision.
func formatRate(n decimal.NullDecimal) string {
	if !n.Valid {
		return ""
	}
	return n.Decimal.String()
}

func formatCount(v int64, ok bool) string {
	if !ok {
		return ""
	}
	return strconv.FormatInt(v, 10)
}
