package loader

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const samplePayload = `{
  "societies": [
    {
      "society": {"id": 1, "name": "Society A", "iso_code": "A",
                  "location": {"type": "Point", "coordinates": [-98.0, 38.0]}},
      "variable_coded_values": [{"variable": 1, "coded_value": "1"}]
    },
    {
      "society": {"id": 2, "name": "Society B", "iso_code": "B",
                  "location": {"type": "Point", "coordinates": [2.35, 48.85]}},
      "variable_coded_values": [{"variable": 1, "code_value": "2"}]
    }
  ],
  "code_ids": {"1": [{"code": "1"}, {"code": "2"}]},
  "trees": [{"name": "pair", "newick_string": "(A:1,B:2)Root:0;"}]
}`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeFile(t, "results.json", samplePayload)
	p, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	r := p.Results
	if len(r.Societies) != 2 || len(r.Trees) != 1 {
		t.Fatalf("unexpected payload: %d societies, %d trees", len(r.Societies), len(r.Trees))
	}
	if got := r.Societies[0].VariableCodedValues[0].CodedValue; got != "1" {
		t.Errorf("coded_value key not read: %q", got)
	}
	if got := r.Societies[1].VariableCodedValues[0].CodedValue; got != "2" {
		t.Errorf("code_value key not read: %q", got)
	}
	if r.Societies[0].Society.Location.Coordinates.Lon() != -98 {
		t.Error("coordinates must stay longitude first")
	}
	if r.DistinctValueCount("1") != 2 {
		t.Errorf("DistinctValueCount = %d", r.DistinctValueCount("1"))
	}
	if len(p.Hash) != 64 {
		t.Errorf("hash = %q", p.Hash)
	}

	again, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if again.Hash != p.Hash {
		t.Error("hash is not stable for identical content")
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantMsg string
	}{
		{"Empty", "  ", "empty payload"},
		{"Array", `[1,2]`, "expected a JSON object"},
		{"Malformed", `{"societies": [`, "decoding"},
		{"DuplicateSociety", `{"societies":[
			{"society":{"id":1,"name":"a","location":{"coordinates":[0,0]}}},
			{"society":{"id":1,"name":"b","location":{"coordinates":[0,0]}}}]}`, "duplicate society id"},
		{"BadCoordinates", `{"societies":[{"society":{"id":1,"name":"a","location":{"coordinates":[0,95]}}}]}`, "latitude"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, "p.json", tt.content))
			if err == nil || !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error = %v, want mention of %q", err, tt.wantMsg)
			}
		})
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing file error = %v", err)
	}
	_, err := Load(writeFile(t, "p.json", "[]"))
	if !errors.Is(err, ErrNotPayload) {
		t.Errorf("expected ErrNotPayload, got %v", err)
	}
}

func TestDecode_NumericCodedValues(t *testing.T) {
	payload := `{
	  "societies": [
	    {"society": {"id": 1, "name": "Society A", "iso_code": "A",
	                 "location": {"type": "Point", "coordinates": [-98.0, 38.0]}},
	     "variable_coded_values": [{"variable": 1, "coded_value": 1}, {"variable": 2, "code_value": 2}]}
	  ],
	  "code_ids": {"1": [{"code": "1"}, {"code": "2"}]}
	}`
	r, err := Decode([]byte(payload))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	vcvs := r.Societies[0].VariableCodedValues
	if len(vcvs) != 2 {
		t.Fatalf("expected 2 coded values, got %d", len(vcvs))
	}
	for i, want := range []string{"1", "2"} {
		if vcvs[i].CodedValue != want {
			t.Errorf("coded value %d = %q, want %q", i, vcvs[i].CodedValue, want)
		}
		if _, ok := vcvs[i].Numeric(); !ok {
			t.Errorf("coded value %d is not numeric", i)
		}
	}
}

func TestSniff(t *testing.T) {
	tests := []struct {
		content string
		want    bool
	}{
		{samplePayload, true},
		{`{"trees": []}`, true},
		{`{"name": "package"}`, false},
		{`not json`, false},
	}
	for _, tt := range tests {
		got, err := Sniff(writeFile(t, "x.json", tt.content))
		if err != nil {
			t.Fatal(err)
		}
		if got != tt.want {
			t.Errorf("Sniff(%.20q) = %v, want %v", tt.content, got, tt.want)
		}
	}
}

func TestLoadRegions(t *testing.T) {
	full, err := LoadRegions(writeFile(t, "r.json", `[{"code":"7","name":"Northern America"}]`))
	if err != nil || len(full) != 1 || full[0].Name != "Northern America" {
		t.Errorf("full regions = %v, %v", full, err)
	}
	codes, err := LoadRegions(writeFile(t, "r.json", `["1","2"]`))
	if err != nil || len(codes) != 2 || codes[1].Code != "2" {
		t.Errorf("code list = %v, %v", codes, err)
	}
	if _, err := LoadRegions(writeFile(t, "r.json", `{"x":1}`)); err == nil {
		t.Error("expected error for an object")
	}
}
