// Package extraction merges confidence-scored AI extraction payloads from
// several trade documents into a single declaration form.
//
// For every form key the value with the highest confidence wins. Ties go to
// the extraction that comes first. Blank values never win.
package extraction

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/ginjaninja78/gtd-declaration-engine/internal/adapter"
)

// Field is one extracted value with its confidence in [0, 1].
type Field struct {
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
}

// Extraction is the payload extracted from one document. Keys are form keys.
type Extraction struct {
	Source string             `json:"source"`
	Header map[string]Field   `json:"header"`
	Items  []map[string]Field `json:"items"`
}

// Choice records which extraction supplied a merged value.
type Choice struct {
	Source     string  `json:"source"`
	Confidence float64 `json:"confidence"`
}

// Provenance explains a merged form key by key.
type Provenance struct {
	Header map[string]Choice   `json:"header"`
	Items  []map[string]Choice `json:"items"`

	// Unknown lists "source: key" pairs that are not form keys and were dropped.
	Unknown []string `json:"unknown,omitempty"`
}

// Merge combines extractions into one form. Items are merged by position.
func Merge(extractions ...Extraction) (adapter.Form, Provenance) {
	var form adapter.Form
	prov := Provenance{Header: map[string]Choice{}, Items: []map[string]Choice{}}

	headerKeys := adapter.HeaderKeys()
	for _, key := range headerKeys {
		best, choice, ok := pick(extractions, func(e Extraction) map[string]Field { return e.Header }, key)
		if !ok {
			continue
		}
		_ = form.Set(key, adapter.Ref(best))
		prov.Header[key] = choice
	}

	itemCount := 0
	for _, e := range extractions {
		itemCount = max(itemCount, len(e.Items))
	}
	itemKeys := adapter.ItemKeys()
	for i := 0; i < itemCount; i++ {
		var item adapter.FormItem
		choices := map[string]Choice{}
		at := func(e Extraction) map[string]Field {
			if i < len(e.Items) {
				return e.Items[i]
			}
			return nil
		}
		for _, key := range itemKeys {
			best, choice, ok := pick(extractions, at, key)
			if !ok {
				continue
			}
			_ = item.Set(key, adapter.Ref(best))
			choices[key] = choice
		}
		form.Items = append(form.Items, item)
		prov.Items = append(prov.Items, choices)
	}

	prov.Unknown = unknownKeys(extractions, headerKeys, itemKeys)
	return form, prov
}

// pick returns the winning value of key across extractions.
func pick(extractions []Extraction, fields func(Extraction) map[string]Field, key string) (string, Choice, bool) {
	var (
		best   string
		choice Choice
		found  bool
	)
	for _, e := range extractions {
		f, ok := fields(e)[key]
		if !ok || strings.TrimSpace(f.Value) == "" {
			continue
		}
		c := clampConfidence(f.Confidence)
		if found && c <= choice.Confidence {
			continue
		}
		best, choice, found = f.Value, Choice{Source: e.Source, Confidence: c}, true
	}
	return best, choice, found
}

func clampConfidence(c float64) float64 {
	switch {
	case math.IsNaN(c) || c < 0:
		return 0
	case c > 1:
		return 1
	}
	return c
}

func unknownKeys(extractions []Extraction, headerKeys, itemKeys []string) []string {
	known := func(keys []string) map[string]bool {
		m := make(map[string]bool, len(keys))
		for _, k := range keys {
			m[k] = true
		}
		return m
	}
	header, item := known(headerKeys), known(itemKeys)

	var out []string
	for _, e := range extractions {
		var keys []string
		for k := range e.Header {
			if !header[k] {
				keys = append(keys, k)
			}
		}
		for i, it := range e.Items {
			for k := range it {
				if !item[k] {
					keys = append(keys, fmt.Sprintf("items[%d].%s", i, k))
				}
			}
		}
		sort.Strings(keys)
		for _, k := range keys {
			out = append(out, e.Source+": "+k)
		}
	}
	return out
}
