// =============================================================================
// GTD Declaration Engine - XML Writer Module
// =============================================================================
//
// This module serialises the XML model of a declaration. The model already
// carries every value as a formatted string (amounts with 2 decimals, weights
// with 3, dates as yyyy-MM-dd); this module adds the XML declaration, the
// root attributes, indentation and escaping.
//
// XML STRUCTURE:
//
//   <Declaration>
//     <ID>GTD-1</ID>
//     <Type>IMPORT</Type>
//     <Exporter>
//       <Name>Shanghai Motors</Name>
//       <Country>CN</Country>
//     </Exporter>
//     ...
//     <Items>
//       <Item n="1">
//         <HSCode>8703220000</HSCode>
//         <CustomsValue>19245.00</CustomsValue>
//         <Payment>
//           <Duty>4811.25</Duty>
//         </Payment>
//       </Item>
//     </Items>
//   </Declaration>
//
// Absent values are omitted rather than written as empty elements.
//
// =============================================================================

package xmlwriter

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"sort"

	"github.com/ginjaninja78/gtd-declaration-engine/internal/adapter"
	"github.com/ginjaninja78/gtd-declaration-engine/internal/types"
)

// =============================================================================
// XML GENERATION OPTIONS
// =============================================================================

// GenerateOptions contains options for XML generation.
type GenerateOptions struct {
	// Indent is the string used for indentation.
	// Default: "  " (two spaces)
	Indent string

	// IncludeXMLDeclaration determines whether to include the XML declaration.
	// Default: true
	IncludeXMLDeclaration bool

	// XMLVersion is the XML version for the declaration.
	// Default: "1.0"
	XMLVersion string

	// Encoding is the encoding for the XML declaration.
	// Default: "UTF-8"
	Encoding string

	// RootElement overrides the name of the root element.
	// Default: "Declaration"
	RootElement string

	// RootAttributes are additional attributes for the root element, written
	// in key order.
	// Example: {"xmlns": "urn:uz:customs:gtd"}
	RootAttributes map[string]string
}

// DefaultGenerateOptions returns the default generation options.
func DefaultGenerateOptions() GenerateOptions {
	return GenerateOptions{
		Indent:                "  ",
		IncludeXMLDeclaration: true,
		XMLVersion:            "1.0",
		Encoding:              "UTF-8",
		RootElement:           "Declaration",
		RootAttributes:        make(map[string]string),
	}
}

// =============================================================================
// XML GENERATION FUNCTIONS
// =============================================================================

// Generate renders a declaration as an XML document with default options.
func Generate(decl types.Declaration) ([]byte, error) {
	return GenerateModel(adapter.CanonicalToXMLModel(decl), DefaultGenerateOptions())
}

// GenerateModel renders an XML model.
//
// RETURNS:
//   - The XML document as a byte slice.
//   - An error if marshalling fails.
func GenerateModel(model adapter.XMLModel, options GenerateOptions) ([]byte, error) {
	var buffer bytes.Buffer
	if err := Write(&buffer, model, options); err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}

// Write streams the XML document for model to w.
func Write(w io.Writer, model adapter.XMLModel, options GenerateOptions) error {
	if options.IncludeXMLDeclaration {
		if _, err := fmt.Fprintf(w, "<?xml version=\"%s\" encoding=\"%s\"?>\n",
			options.XMLVersion, options.Encoding); err != nil {
			return fmt.Errorf("failed to write XML declaration: %w", err)
		}
	}

	encoder := xml.NewEncoder(w)
	encoder.Indent("", options.Indent)

	if err := encoder.EncodeElement(model, rootElement(options)); err != nil {
		return fmt.Errorf("failed to marshal XML: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return fmt.Errorf("failed to flush XML: %w", err)
	}

	_, err := io.WriteString(w, "\n")
	return err
}

// rootElement builds the root start element with its attributes.
func rootElement(options GenerateOptions) xml.StartElement {
	name := options.RootElement
	if name == "" {
		name = "Declaration"
	}

	keys := make([]string, 0, len(options.RootAttributes))
	for key := range options.RootAttributes {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	start := xml.StartElement{Name: xml.Name{Local: name}}
	for _, key := range keys {
		start.Attr = append(start.Attr, xml.Attr{
			Name:  xml.Name{Local: key},
			Value: options.RootAttributes[key],
		})
	}
	return start
}
