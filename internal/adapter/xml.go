package adapter

import (
	"encoding/xml"

	"github.com/ginjaninja78/gtd-declaration-engine/internal/money"
	"github.com/ginjaninja78/gtd-declaration-engine/internal/types"
)

// XMLModel mirrors the canonical declaration one to one for the XML
// exporter. Values are preformatted strings; absent values are empty and
// omitted from the document.
type XMLModel struct {
	XMLName xml.Name `xml:"Declaration"`

	ID            string `xml:"ID,omitempty"`
	Type          string `xml:"Type,omitempty"`
	Date          string `xml:"Date,omitempty"`
	ProcedureCode string `xml:"ProcedureCode,omitempty"`

	Exporter  XMLParty `xml:"Exporter"`
	Consignee XMLParty `xml:"Consignee"`
	Declarant XMLParty `xml:"Declarant"`

	Financial XMLFinancial `xml:"Financial"`
	Logistics XMLLogistics `xml:"Logistics"`
	Totals    XMLTotals    `xml:"Totals"`

	Items []XMLItem `xml:"Items>Item"`
}

// XMLParty is a declaration participant.
type XMLParty struct {
	Name    string `xml:"Name,omitempty"`
	Address string `xml:"Address,omitempty"`
	TIN     string `xml:"TIN,omitempty"`
	Country string `xml:"Country,omitempty"`
}

// XMLFinancial holds the commercial terms.
type XMLFinancial struct {
	Currency       string `xml:"Currency,omitempty"`
	InvoiceNumber  string `xml:"InvoiceNumber,omitempty"`
	InvoiceDate    string `xml:"InvoiceDate,omitempty"`
	InvoiceTotal   string `xml:"InvoiceTotal,omitempty"`
	ExchangeRate   string `xml:"ExchangeRate,omitempty"`
	Incoterms      string `xml:"Incoterms,omitempty"`
	IncotermsPlace string `xml:"IncotermsPlace,omitempty"`
}

// XMLLogistics holds the routing.
type XMLLogistics struct {
	TransportMode      string `xml:"TransportMode,omitempty"`
	DispatchCountry    string `xml:"DispatchCountry,omitempty"`
	OriginCountry      string `xml:"OriginCountry,omitempty"`
	DestinationCountry string `xml:"DestinationCountry,omitempty"`
	CustomsOffice      string `xml:"CustomsOffice,omitempty"`
}

// XMLTotals holds the aggregates.
type XMLTotals struct {
	GrossWeight string `xml:"GrossWeight,omitempty"`
	NetWeight   string `xml:"NetWeight,omitempty"`
	Packages    string `xml:"Packages,omitempty"`
	Duty        string `xml:"Duty,omitempty"`
	VAT         string `xml:"VAT,omitempty"`
	Excise      string `xml:"Excise,omitempty"`
	Fee         string `xml:"Fee,omitempty"`
	Payment     string `xml:"Payment,omitempty"`
}

// XMLItem is one goods line. Seq is carried as the n attribute.
type XMLItem struct {
	Seq              string     `xml:"n,attr,omitempty"`
	HSCode           string     `xml:"HSCode,omitempty"`
	Description      string     `xml:"Description,omitempty"`
	OriginCountry    string     `xml:"OriginCountry,omitempty"`
	GrossWeight      string     `xml:"GrossWeight,omitempty"`
	NetWeight        string     `xml:"NetWeight,omitempty"`
	Quantity         string     `xml:"Quantity,omitempty"`
	UnitCode         string     `xml:"UnitCode,omitempty"`
	InvoiceValue     string     `xml:"InvoiceValue,omitempty"`
	CustomsValue     string     `xml:"CustomsValue,omitempty"`
	StatisticalValue string     `xml:"StatisticalValue,omitempty"`
	PackagingType    string     `xml:"PackagingType,omitempty"`
	PackageCount     string     `xml:"PackageCount,omitempty"`
	Payment          XMLPayment `xml:"Payment"`
}

// XMLPayment holds the computed payments of an item.
type XMLPayment struct {
	DutyRate   string `xml:"DutyRate,omitempty"`
	VATRate    string `xml:"VATRate,omitempty"`
	ExciseRate string `xml:"ExciseRate,omitempty"`
	Duty       string `xml:"Duty,omitempty"`
	VAT        string `xml:"VAT,omitempty"`
	Excise     string `xml:"Excise,omitempty"`
	Fee        string `xml:"Fee,omitempty"`
	Total      string `xml:"Total,omitempty"`
}

// CanonicalToXMLModel mirrors decl without splitting items.
func CanonicalToXMLModel(decl types.Declaration) XMLModel {
	m := XMLModel{
		ID:            decl.ID,
		Type:          string(decl.Type),
		Date:          money.FormatDate(decl.Date),
		ProcedureCode: decl.ProcedureCode,
		Exporter:      xmlParty(decl.Exporter),
		Consignee:     xmlParty(decl.Consignee),
		Declarant:     xmlParty(decl.Declarant),
		Financial: XMLFinancial{
			Currency:       decl.Financial.Currency,
			InvoiceNumber:  decl.Financial.InvoiceNumber,
			InvoiceDate:    money.FormatDate(decl.Financial.InvoiceDate),
			InvoiceTotal:   money.FormatAmount(decl.Financial.InvoiceTotal),
			ExchangeRate:   formatRate(decl.Financial.ExchangeRate),
			Incoterms:      decl.Financial.Incoterms,
			IncotermsPlace: decl.Financial.IncotermsPlace,
		},
		Logistics: XMLLogistics{
			TransportMode:      decl.Logistics.TransportMode,
			DispatchCountry:    decl.Logistics.DispatchCountry,
			OriginCountry:      decl.Logistics.OriginCountry,
			DestinationCountry: decl.Logistics.DestinationCountry,
			CustomsOffice:      decl.Logistics.CustomsOffice,
		},
		Totals: XMLTotals{
			GrossWeight: money.FormatWeight(decl.Totals.GrossWeight),
			NetWeight:   money.FormatWeight(decl.Totals.NetWeight),
			Packages:    formatCount(decl.Totals.Packages.Int64, decl.Totals.Packages.Valid),
			Duty:        money.FormatAmount(decl.Totals.Duty),
			VAT:         money.FormatAmount(decl.Totals.VAT),
			Excise:      money.FormatAmount(decl.Totals.Excise),
			Fee:         money.FormatAmount(decl.Totals.Fee),
			Payment:     money.FormatAmount(decl.Totals.Payment),
		},
	}

	for _, it := range decl.Items {
		m.Items = append(m.Items, XMLItem{
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
			Payment: XMLPayment{
				DutyRate:   formatRate(it.Payment.DutyRate),
				VATRate:    formatRate(it.Payment.VATRate),
				ExciseRate: formatRate(it.Payment.ExciseRate),
				Duty:       money.FormatAmount(it.Payment.Duty),
				VAT:        money.FormatAmount(it.Payment.VAT),
				Excise:     money.FormatAmount(it.Payment.Excise),
				Fee:        money.FormatAmount(it.Payment.Fee),
				Total:      money.FormatAmount(it.Payment.Total),
			},
		})
	}

	return m
}

func xmlParty(p types.Party) XMLParty {
	return XMLParty{Name: p.Name, Address: p.Address, TIN: p.TIN, Country: p.Country}
}
