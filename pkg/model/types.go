package model

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// Society is a single ethnographic society as served by the results API.
type Society struct {
	ID       int      `json:"id"`
	ExtID    string   `json:"ext_id,omitempty"`
	Name     string   `json:"name"`
	ISOCode  string   `json:"iso_code,omitempty"`
	Source   string   `json:"source,omitempty"`
	Location Location `json:"location"`
}

// Location is a GeoJSON point. Coordinates are stored longitude first.
type Location struct {
	Type        string `json:"type,omitempty"`
	Coordinates LonLat `json:"coordinates"`
}

// Key returns the identifier used to match the society against tree leaves:
// the ISO code when present, otherwise the numeric id.
func (s Society) Key() string {
	if code := strings.TrimSpace(s.ISOCode); code != "" {
		return code
	}
	return strconv.Itoa(s.ID)
}

// MarkerID returns the stable identifier used for map markers and colormaps.
func (s Society) MarkerID() string {
	return strconv.Itoa(s.ID)
}

// Validate checks if the society data is logically valid
func (s *Society) Validate() error {
	if s.ID <= 0 {
		return fmt.Errorf("society id must be positive, got %d", s.ID)
	}
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("society %d: name cannot be empty", s.ID)
	}
	if err := s.Location.Coordinates.Validate(); err != nil {
		return fmt.Errorf("society %d: %w", s.ID, err)
	}
	return nil
}

// VariableCodedValue associates a society with one coded value of a variable.
type VariableCodedValue struct {
	ID              int    `json:"id,omitempty"`
	Society         int    `json:"society,omitempty"`
	Code            int    `json:"code,omitempty"`
	Variable        int    `json:"variable"`
	VariableName    string `json:"variable_name,omitempty"`
	CodedValue      string `json:"code_value"`
	CodeDescription string `json:"code_description,omitempty"`
}

// UnmarshalJSON accepts the coded value under either "code_value" (the
// serializer's field) or "coded_value" (what older clients send), as a
// string or a bare number.
func (v *VariableCodedValue) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID              int             `json:"id"`
		Society         int             `json:"society"`
		Code            int             `json:"code"`
		Variable        int             `json:"variable"`
		VariableName    string          `json:"variable_name"`
		CodeValue       json.RawMessage `json:"code_value"`
		CodedValue      json.RawMessage `json:"coded_value"`
		CodeDescription string          `json:"code_description"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*v = VariableCodedValue{
		ID:              raw.ID,
		Society:         raw.Society,
		Code:            raw.Code,
		Variable:        raw.Variable,
		VariableName:    raw.VariableName,
		CodeDescription: raw.CodeDescription,
	}
	code, err := codedValueText(raw.CodeValue)
	if err != nil {
		return fmt.Errorf("code_value: %w", err)
	}
	if code == "" {
		if code, err = codedValueText(raw.CodedValue); err != nil {
			return fmt.Errorf("coded_value: %w", err)
		}
	}
	v.CodedValue = code
	return nil
}

// codedValueText normalizes a JSON string or number to its string form.
// Absent and null values yield "".
func codedValueText(raw json.RawMessage) (string, error) {
	text := strings.TrimSpace(string(raw))
	switch {
	case text == "" || text == "null":
		return "", nil
	case text[0] == '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	if _, err := strconv.ParseFloat(text, 64); err != nil {
		return "", fmt.Errorf("want a string or number, got %s", text)
	}
	return text, nil
}

// VariableKey is the key of the variable in Results.CodeIDs.
func (v VariableCodedValue) VariableKey() string {
	return strconv.Itoa(v.Variable)
}

// Numeric returns the coded value as a number. Non-numeric codes report false.
func (v VariableCodedValue) Numeric() (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(v.CodedValue), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// SocietyResult is one row of a search result: a society plus its coded values.
type SocietyResult struct {
	Society             Society              `json:"society"`
	VariableCodedValues []VariableCodedValue `json:"variable_coded_values"`
}

// CodeDescription is one distinct code of a variable.
type CodeDescription struct {
	ID          int    `json:"id,omitempty"`
	Code        string `json:"code"`
	Description string `json:"description,omitempty"`
	Variable    int    `json:"variable,omitempty"`
}

// VariableDescription names a survey variable.
type VariableDescription struct {
	ID     int    `json:"id"`
	Number string `json:"number,omitempty"`
	Name   string `json:"name"`
}

// LanguageTree is a named phylogeny serialized in newick format.
type LanguageTree struct {
	ID           int    `json:"id,omitempty"`
	Name         string `json:"name"`
	NewickString string `json:"newick_string"`
}

// Region is a selectable map region (geographic boundary code and display name).
type Region struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// RegionCodes returns the codes of the given regions in order.
func RegionCodes(regions []Region) []string {
	codes := make([]string, 0, len(regions))
	for _, r := range regions {
		codes = append(codes, r.Code)
	}
	return codes
}

// Results is the payload both visualizations are driven by.
type Results struct {
	Societies []SocietyResult              `json:"societies"`
	CodeIDs   map[string][]CodeDescription `json:"code_ids,omitempty"`
	Variables []VariableDescription        `json:"variables,omitempty"`
	Trees     []LanguageTree               `json:"trees,omitempty"`
	Regions   []Region                     `json:"regions,omitempty"`
}

// DistinctValueCount returns the number of distinct codes known for a variable.
func (r *Results) DistinctValueCount(variable string) int {
	if r == nil {
		return 0
	}
	return len(r.CodeIDs[variable])
}

// SocietiesByKey indexes societies by Society.Key. Several societies may share
// one key (e.g. the same language); their order is preserved.
func (r *Results) SocietiesByKey() map[string][]SocietyResult {
	index := make(map[string][]SocietyResult)
	if r == nil {
		return index
	}
	for _, s := range r.Societies {
		k := s.Society.Key()
		index[k] = append(index[k], s)
	}
	return index
}

// FindTree returns the tree with the given name.
func (r *Results) FindTree(name string) (LanguageTree, bool) {
	if r == nil {
		return LanguageTree{}, false
	}
	for _, t := range r.Trees {
		if t.Name == name {
			return t, true
		}
	}
	return LanguageTree{}, false
}

// Validate checks the payload for logically invalid entries.
func (r *Results) Validate() error {
	seen := make(map[int]bool, len(r.Societies))
	for i := range r.Societies {
		s := &r.Societies[i].Society
		if err := s.Validate(); err != nil {
			return fmt.Errorf("societies[%d]: %w", i, err)
		}
		if seen[s.ID] {
			return fmt.Errorf("societies[%d]: duplicate society id %d", i, s.ID)
		}
		seen[s.ID] = true
	}
	names := make(map[string]bool, len(r.Trees))
	for i, t := range r.Trees {
		if strings.TrimSpace(t.Name) == "" {
			return fmt.Errorf("trees[%d]: name cannot be empty", i)
		}
		if names[t.Name] {
			return fmt.Errorf("trees[%d]: duplicate tree name %q", i, t.Name)
		}
		names[t.Name] = true
	}
	return nil
}

// Clone creates a deep copy of the results
func (r Results) Clone() Results {
	clone := r

	if r.Societies != nil {
		clone.Societies = make([]SocietyResult, len(r.Societies))
		for i, s := range r.Societies {
			clone.Societies[i] = s
			if s.VariableCodedValues != nil {
				clone.Societies[i].VariableCodedValues = make([]VariableCodedValue, len(s.VariableCodedValues))
				copy(clone.Societies[i].VariableCodedValues, s.VariableCodedValues)
			}
		}
	}

	if r.CodeIDs != nil {
		clone.CodeIDs = make(map[string][]CodeDescription, len(r.CodeIDs))
		for k, v := range r.CodeIDs {
			clone.CodeIDs[k] = append([]CodeDescription(nil), v...)
		}
	}

	if r.Variables != nil {
		clone.Variables = append([]VariableDescription(nil), r.Variables...)
	}
	if r.Trees != nil {
		clone.Trees = append([]LanguageTree(nil), r.Trees...)
	}
	if r.Regions != nil {
		clone.Regions = append([]Region(nil), r.Regions...)
	}

	return clone
}
