package adapter

import (
	"encoding/json"
	"reflect"
	"strconv"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/gtd-declaration-engine/internal/types"
)

func dec(s string) decimal.NullDecimal {
	return types.Some(decimal.RequireFromString(s))
}

// fullForm sets every key with a canonical value.
func fullForm() Form {
	f := Form{}
	for _, key := range HeaderKeys() {
		v := "X-" + key
		switch key {
		case "type":
			v = "IMPORT"
		case "invoice_total", "exchange_rate", "total_gross_weight", "total_net_weight",
			"total_duty", "total_vat", "total_excise", "total_fee", "total_payment":
			v = "1234.5"
		case "total_packages":
			v = "7"
		}
		if err := f.Set(key, Ref(v)); err != nil {
			panic(err)
		}
	}
	for seq := 1; seq <= 2; seq++ {
		var it FormItem
		for _, key := range ItemKeys() {
			v := "V-" + key
			switch key {
			case "seq":
				v = strconv.Itoa(seq)
			case "package_count":
				v = "3"
			case "gross_weight", "net_weight", "quantity", "invoice_value", "customs_value",
				"statistical_value", "duty_rate", "vat_rate", "excise_rate", "duty", "vat",
				"excise", "fee", "total":
				v = "19245.125"
			}
			if err := it.Set(key, Ref(v)); err != nil {
				panic(err)
			}
		}
		f.Items = append(f.Items, it)
	}
	return f
}

func fullDeclaration() types.Declaration {
	return types.Declaration{
		ID: "GTD-1", Type: types.TypeImport, Date: "2024-03-01", ProcedureCode: "40",
		Exporter:  types.Party{Name: "Shanghai Motors", Address: "Shanghai", TIN: "91310000", Country: "CN"},
		Consignee: types.Party{Name: "Avto Trade", Address: "Tashkent", TIN: "123456789", Country: "UZ"},
		Declarant: types.Party{Name: "Broker", Address: "Tashkent", TIN: "987654321", Country: "UZ"},
		Financial: types.Financial{
			Currency: "USD", InvoiceNumber: "INV-7", InvoiceDate: "2024-02-20",
			InvoiceTotal: dec("1515.5"), ExchangeRate: dec("12700.25"),
			Incoterms: "FOB", IncotermsPlace: "SHANGHAI",
		},
		Logistics: types.Logistics{
			TransportMode: "30", DispatchCountry: "CN", OriginCountry: "CN",
			DestinationCountry: "UZ", CustomsOffice: "26001",
		},
		Totals: types.Totals{
			GrossWeight: dec("1500.125"), NetWeight: dec("1350"), Packages: types.SomeInt(2),
			Duty: dec("4811.25"), VAT: dec("2886.75"), Excise: dec("1"), Fee: dec("50000"), Payment: dec("57699"),
		},
		Items: []types.Item{
			{
				Seq: 1, HSCode: "8703220000", Description: "Passenger car", OriginCountry: "CN",
				GrossWeight: dec("1500.125"), NetWeight: dec("1350"), Quantity: dec("1"), UnitCode: "796",
				InvoiceValue: dec("1515.5"), CustomsValue: dec("19245"), StatisticalValue: dec("1515.5"),
				PackagingType: "PK", PackageCount: types.SomeInt(1),
				Payment: types.ItemPayment{
					DutyRate: dec("25"), VATRate: dec("12"), ExciseRate: dec("0.5"),
					Duty: dec("4811.25"), VAT: dec("2886.75"), Excise: dec("1"), Fee: dec("50000"), Total: dec("57699"),
				},
			},
			{Seq: 2, Description: "Spare wheel", PackageCount: types.SomeInt(1)},
		},
	}
}

func TestFormRoundTrip(t *testing.T) {
	forms := map[string]Form{
		"full":        fullForm(),
		"empty":       {},
		"header only": {ID: Ref("x"), Currency: Ref("usd"), InvoiceTotal: Ref("-3.25")},
		"sparse items": {Items: []FormItem{
			{Seq: Ref("1")},
			{Seq: Ref("2"), NetWeight: Ref("0.001"), PackageCount: Ref("0")},
		}},
		"no items slice": {Items: []FormItem{}},
	}

	for name, f := range forms {
		t.Run(name, func(t *testing.T) {
			decl, err := FormToCanonical(f)
			require.NoError(t, err)
			assert.Equal(t, f, CanonicalToForm(decl))
		})
	}
}

func TestCanonicalRoundTrip(t *testing.T) {
	decl := fullDeclaration()
	back, err := FormToCanonical(CanonicalToForm(decl))
	require.NoError(t, err)

	want, err := json.Marshal(decl)
	require.NoError(t, err)
	got, err := json.Marshal(back)
	require.NoError(t, err)
	assert.JSONEq(t, string(want), string(got))
}

func TestCanonicalToForm_IsTotal(t *testing.T) {
	f := CanonicalToForm(fullDeclaration())

	assertAllSet := func(v reflect.Value, where string) {
		for i := 0; i < v.NumField(); i++ {
			field := v.Field(i)
			if field.Kind() != reflect.Pointer {
				continue
			}
			assert.False(t, field.IsNil(), "%s.%s has no form value", where, v.Type().Field(i).Name)
		}
	}
	assertAllSet(reflect.ValueOf(f), "form")
	assertAllSet(reflect.ValueOf(f.Items[0]), "items[0]")

	assert.Len(t, HeaderKeys(), reflect.TypeOf(Form{}).NumField()-1, "one key per header field")
	assert.Len(t, ItemKeys(), reflect.TypeOf(FormItem{}).NumField(), "one key per item field")
}

func TestFormToCanonical_ReportsUnparseableValues(t *testing.T) {
	f := Form{
		ID:            Ref("draft"),
		InvoiceTotal:  Ref("12,5O"),
		ExchangeRate:  Ref("NaN"),
		TotalPackages: Ref("2.5"),
		Items: []FormItem{
			{Seq: Ref("one"), NetWeight: Ref("Inf"), GrossWeight: Ref("10")},
		},
	}

	decl, err := FormToCanonical(f)
	require.Error(t, err)

	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	paths := make([]string, len(perr.Errors))
	for i, fe := range perr.Errors {
		paths[i] = fe.Path
	}
	assert.Equal(t, []string{
		"financial.invoice_total",
		"financial.exchange_rate",
		"totals.packages",
		"items[0].seq",
		"items[0].net_weight",
	}, paths)

	var fe *types.FieldFormatError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "financial.invoice_total", fe.Path)

	assert.Equal(t, "draft", decl.ID)
	assert.False(t, decl.Financial.InvoiceTotal.Valid)
	assert.Equal(t, 0, decl.Items[0].Seq)
	assert.True(t, decl.Items[0].GrossWeight.Valid)
}

func TestFormToCanonical_RejectsNumbersOutOfRange(t *testing.T) {
	tests := []struct {
		name   string
		value  string
		reason string
	}{
		{"huge exponent", "1e20000000", "out of range"},
		{"tiny exponent", "1e-999999999", "decimal places"},
		{"at the limit", "1e18", "out of range"},
		{"negative at the limit", "-1000000000000000000", "out of range"},
		{"too many places", "0.000000000000000000001", "decimal places"},
		{"too long", strings.Repeat("1", 65), "longer than"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := Form{Items: []FormItem{{Seq: Ref("1"), CustomsValue: Ref(tt.value)}}}

			decl, err := FormToCanonical(f)

			var fe *types.FieldFormatError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, "items[0].customs_value", fe.Path)
			assert.Equal(t, tt.value, fe.Value)
			assert.Contains(t, fe.Reason, tt.reason)
			assert.False(t, decl.Items[0].CustomsValue.Valid)
		})
	}
}

func TestFormToCanonical_AcceptsLargeAmountsBelowTheLimit(t *testing.T) {
	f := Form{Items: []FormItem{{Seq: Ref("1"), CustomsValue: Ref("999999999999999999.99")}}}

	decl, err := FormToCanonical(f)
	require.NoError(t, err)
	assert.True(t, decl.Items[0].CustomsValue.Valid)
}

func TestFormKeys_GetSet(t *testing.T) {
	var f Form
	require.NoError(t, f.Set("consignee_tin", Ref("123456789")))
	v, ok := f.Get("consignee_tin")
	require.True(t, ok)
	assert.Equal(t, "123456789", *v)
	assert.Equal(t, "123456789", *f.ConsigneeTIN)

	require.ErrorIs(t, f.Set("nope", Ref("x")), ErrUnknownKey)
	_, ok = f.Get("nope")
	assert.False(t, ok)

	var it FormItem
	require.NoError(t, it.Set("hs_code", Ref("8703220000")))
	assert.Equal(t, "8703220000", *it.HSCode)
	require.ErrorIs(t, it.Set("currency", Ref("USD")), ErrUnknownKey)
}

func itemsWithSeq(n int) []types.Item {
	items := make([]types.Item, n)
	for i := range items {
		items[i] = types.Item{Seq: i + 1, CustomsValue: dec("100")}
	}
	return items
}

func TestCanonicalToPrintModel_Split(t *testing.T) {
	tests := []struct {
		items         int
		additional    int
		continuations []int
		sheets        int
	}{
		{0, 0, nil, 1},
		{1, 0, nil, 1},
		{2, 1, []int{1}, 2},
		{4, 3, []int{3}, 2},
		{5, 4, []int{3, 1}, 3},
		{10, 9, []int{3, 3, 3}, 4},
	}

	for _, tt := range tests {
		model := CanonicalToPrintModel(types.Declaration{Items: itemsWithSeq(tt.items)})

		assert.Equal(t, tt.items, model.TotalItems)
		assert.Len(t, model.AdditionalItems, tt.additional, "items=%d", tt.items)
		assert.Equal(t, tt.sheets, model.TotalSheets, "items=%d", tt.items)
		assert.Equal(t, SheetCount(tt.items), model.TotalSheets)
		assert.NotNil(t, model.AdditionalItems)

		require.Len(t, model.Continuations, len(tt.continuations))
		for i, size := range tt.continuations {
			assert.Equal(t, i+2, model.Continuations[i].Sheet)
			assert.Len(t, model.Continuations[i].Items, size)
		}

		if tt.items == 0 {
			assert.Nil(t, model.Primary)
			continue
		}
		require.NotNil(t, model.Primary)
		assert.Equal(t, "1", model.Primary.Seq)
		if tt.items > 1 {
			assert.Equal(t, "2", model.AdditionalItems[0].Seq)
		}
	}
}

func TestCanonicalToPrintModel_Formatting(t *testing.T) {
	model := CanonicalToPrintModel(fullDeclaration())

	assert.Equal(t, "1515.50", model.Header.InvoiceTotal)
	assert.Equal(t, "12700.25", model.Header.ExchangeRate)
	assert.Equal(t, "1350.000", model.Header.TotalNetWeight)
	assert.Equal(t, "50000.00", model.Header.TotalFee)
	assert.Equal(t, "2", model.Header.TotalPackages)
	assert.Equal(t, "123456789", model.Header.Consignee.TIN)

	p := model.Primary
	require.NotNil(t, p)
	assert.Equal(t, "19245.00", p.CustomsValue)
	assert.Equal(t, "1500.125", p.GrossWeight)
	assert.Equal(t, "1.000", p.Quantity)
	assert.Equal(t, "25", p.DutyRate)
	assert.Equal(t, "57699.00", p.Total)

	extra := model.AdditionalItems[0]
	assert.Equal(t, "", extra.CustomsValue)
	assert.Equal(t, "", extra.GrossWeight)
	assert.Equal(t, "1", extra.PackageCount)
}

func TestCanonicalToXMLModel_Mirror(t *testing.T) {
	decl := fullDeclaration()
	m := CanonicalToXMLModel(decl)

	require.Len(t, m.Items, len(decl.Items), "no primary/overflow split")
	assert.Equal(t, "GTD-1", m.ID)
	assert.Equal(t, "2024-03-01", m.Date)
	assert.Equal(t, "1515.50", m.Financial.InvoiceTotal)
	assert.Equal(t, "1500.125", m.Totals.GrossWeight)
	assert.Equal(t, "57699.00", m.Totals.Payment)
	assert.Equal(t, "1", m.Items[0].Seq)
	assert.Equal(t, "4811.25", m.Items[0].Payment.Duty)
	assert.Equal(t, "0.5", m.Items[0].Payment.ExciseRate)
	assert.Equal(t, "", m.Items[1].HSCode)

	many := CanonicalToXMLModel(types.Declaration{Items: itemsWithSeq(25)})
	assert.Len(t, many.Items, 25)
	assert.Equal(t, "25", many.Items[24].Seq)
}
