package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// PayloadKind classifies the shape of a query result payload.
type PayloadKind string

const (
	PayloadEmpty    PayloadKind = "empty"
	PayloadScalar   PayloadKind = "scalar"
	PayloadSeries   PayloadKind = "series"
	PayloadTable    PayloadKind = "table"
	PayloadDocument PayloadKind = "document"
)

// Payload is a query result or query response document. It keeps the JSON
// it was built from, so arbitrary shapes survive storage without a schema,
// and exposes typed views for the common kinds.
//
//	scalar:   42, "n/a", true
//	series:   [1, 2, 3]
//	table:    [{"month": "2024-01", "revenue": 10}, ...]
//	document: {"sql": "SELECT ...", "rows": [...]}
type Payload struct {
	raw json.RawMessage
}

// NewPayload marshals v into a Payload.
func NewPayload(v any) (Payload, error) {
	if v == nil {
		return Payload{}, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return Payload{}, fmt.Errorf("marshal payload: %w", err)
	}
	var p Payload
	if err := p.UnmarshalJSON(data); err != nil {
		return Payload{}, err
	}
	return p, nil
}

// MustPayload is NewPayload for values known to marshal, such as literals in tests.
func MustPayload(v any) Payload {
	p, err := NewPayload(v)
	if err != nil {
		panic(err)
	}
	return p
}

// MarshalJSON implements json.Marshaler.
func (p Payload) MarshalJSON() ([]byte, error) {
	if len(p.raw) == 0 {
		return []byte("null"), nil
	}
	return p.raw, nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *Payload) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		p.raw = nil
		return nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}
	p.raw = buf.Bytes()
	return nil
}

// IsEmpty reports whether the payload is absent or JSON null.
func (p Payload) IsEmpty() bool { return len(p.raw) == 0 }

// Raw returns the compacted JSON of the payload.
func (p Payload) Raw() json.RawMessage { return p.raw }

// Kind reports the shape of the payload.
func (p Payload) Kind() PayloadKind {
	if p.IsEmpty() {
		return PayloadEmpty
	}
	switch p.raw[0] {
	case '{':
		return PayloadDocument
	case '[':
		var elems []json.RawMessage
		if err := json.Unmarshal(p.raw, &elems); err != nil {
			return PayloadSeries
		}
		for _, e := range elems {
			if len(e) == 0 || e[0] != '{' {
				return PayloadSeries
			}
		}
		return PayloadTable
	default:
		return PayloadScalar
	}
}

// Decode unmarshals the payload into v.
func (p Payload) Decode(v any) error {
	if p.IsEmpty() {
		return fmt.Errorf("decode payload: empty")
	}
	return json.Unmarshal(p.raw, v)
}

// Rows returns the records of a table payload.
func (p Payload) Rows() ([]map[string]any, error) {
	if k := p.Kind(); k != PayloadTable {
		return nil, fmt.Errorf("payload is %s, not table", k)
	}
	var rows []map[string]any
	if err := json.Unmarshal(p.raw, &rows); err != nil {
		return nil, fmt.Errorf("decode rows: %w", err)
	}
	return rows, nil
}

// StringField returns a top-level string field of a document payload.
func (p Payload) StringField(name string) (string, bool) {
	if p.Kind() != PayloadDocument {
		return "", false
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(p.raw, &doc); err != nil {
		return "", false
	}
	raw, ok := doc[name]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}
