package models

import (
	"encoding/json"
	"testing"
)

func TestPayloadKinds(t *testing.T) {
	tests := []struct {
		in   string
		want PayloadKind
	}{
		{`null`, PayloadEmpty},
		{`42`, PayloadScalar},
		{`"n/a"`, PayloadScalar},
		{`[1, 2, 3]`, PayloadSeries},
		{`[{"month":"2024-01","revenue":10}]`, PayloadTable},
		{`[]`, PayloadTable},
		{`[{"a":1}, 2]`, PayloadSeries},
		{`{"sql":"SELECT 1"}`, PayloadDocument},
	}
	for _, tt := range tests {
		var p Payload
		if err := json.Unmarshal([]byte(tt.in), &p); err != nil {
			t.Fatalf("unmarshal %s: %v", tt.in, err)
		}
		if got := p.Kind(); got != tt.want {
			t.Errorf("Kind(%s) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestPayloadRoundTrip(t *testing.T) {
	in := `{"id":"x","results":{"sql":"SELECT month, sum(revenue) FROM sales GROUP BY 1","rows":[{"month":"2024-01","revenue":10.5}]}}`

	var doc struct {
		ID      string  `json:"id"`
		Results Payload `json:"results"`
	}
	if err := json.Unmarshal([]byte(in), &doc); err != nil {
		t.Fatal(err)
	}
	out, err := json.Marshal(doc)
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != in {
		t.Errorf("round trip mismatch:\n got %s\nwant %s", out, in)
	}

	sql, ok := doc.Results.StringField("sql")
	if !ok || sql != "SELECT month, sum(revenue) FROM sales GROUP BY 1" {
		t.Errorf("StringField(sql) = %q, %v", sql, ok)
	}
}

func TestPayloadEmptyMarshalsNull(t *testing.T) {
	data, err := json.Marshal(struct {
		Results Payload `json:"results"`
	}{})
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"results":null}` {
		t.Errorf("got %s", data)
	}
}

func TestPayloadRows(t *testing.T) {
	p := MustPayload([]map[string]any{{"month": "2024-01", "revenue": 10}})
	rows, err := p.Rows()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0]["month"] != "2024-01" {
		t.Errorf("unexpected rows: %v", rows)
	}

	if _, err := MustPayload(12).Rows(); err == nil {
		t.Error("expected error for scalar payload")
	}
}

func TestPayloadInvalid(t *testing.T) {
	var p Payload
	if err := p.UnmarshalJSON([]byte(`{"broken"`)); err == nil {
		t.Error("expected error for invalid JSON")
	}
}
