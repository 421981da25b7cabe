package export

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Dicklesworthstone/dplace_viewer/pkg/model"
	"github.com/Dicklesworthstone/dplace_viewer/pkg/phylo"
)

// ReportOptions configures GenerateReport.
type ReportOptions struct {
	Title    string
	Selected []model.Region
	Now      func() time.Time // Defaults to time.Now
}

// GenerateReport creates a markdown summary of a results payload: its
// variables, trees, societies and the selected regions.
func GenerateReport(results *model.Results, opts ReportOptions) (string, error) {
	if results == nil {
		return "", fmt.Errorf("no results to report")
	}
	title := opts.Title
	if strings.TrimSpace(title) == "" {
		title = "D-PLACE Results"
	}
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("# %s\n\n", title))
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", now().Format(time.RFC1123)))

	sb.WriteString("## Summary\n\n")
	coded := 0
	for _, s := range results.Societies {
		coded += len(s.VariableCodedValues)
	}
	sb.WriteString(fmt.Sprintf("- **Societies**: %d\n", len(results.Societies)))
	sb.WriteString(fmt.Sprintf("- **Coded values**: %d\n", coded))
	sb.WriteString(fmt.Sprintf("- **Variables**: %d\n", len(variableKeys(results))))
	sb.WriteString(fmt.Sprintf("- **Trees**: %d\n", len(results.Trees)))
	sb.WriteString(fmt.Sprintf("- **Selected regions**: %d\n\n", len(opts.Selected)))

	if keys := variableKeys(results); len(keys) > 0 {
		sb.WriteString("## Variables\n\n")
		sb.WriteString("| Variable | Name | Distinct codes |\n")
		sb.WriteString("|---|---|---|\n")
		names := variableNames(results)
		for _, k := range keys {
			sb.WriteString(fmt.Sprintf("| %s | %s | %d |\n", k, cell(names[k]), results.DistinctValueCount(k)))
		}
		sb.WriteString("\n")
	}

	if len(results.Trees) > 0 {
		sb.WriteString("## Trees\n\n")
		sb.WriteString("| Tree | Leaves | Matched leaves | Markers |\n")
		sb.WriteString("|---|---|---|---|\n")
		for _, t := range results.Trees {
			d, err := phylo.Build(t, results, phylo.Options{})
			if err != nil {
				sb.WriteString(fmt.Sprintf("| %s | unparseable | | |\n", cell(t.Name)))
				continue
			}
			matched := 0
			for _, leaf := range d.Leaves {
				if len(leaf.Societies) > 0 {
					matched++
				}
			}
			sb.WriteString(fmt.Sprintf("| %s | %d | %d | %d |\n", cell(t.Name), len(d.Leaves), matched, d.MarkerCount()))
		}
		sb.WriteString("\n")
	}

	if len(results.Societies) > 0 {
		societies := append([]model.SocietyResult(nil), results.Societies...)
		sort.SliceStable(societies, func(i, j int) bool {
			return societies[i].Society.Name < societies[j].Society.Name
		})

		sb.WriteString("## Societies\n\n")
		sb.WriteString("| ID | Name | ISO | Lat | Lng | Coded values |\n")
		sb.WriteString("|---|---|---|---|---|---|\n")
		for _, s := range societies {
			ll := model.ToLatLng(s.Society.Location.Coordinates)
			var values []string
			for _, v := range s.VariableCodedValues {
				values = append(values, fmt.Sprintf("%s=%s", v.VariableKey(), v.CodedValue))
			}
			sb.WriteString(fmt.Sprintf("| %d | %s | %s | %.2f | %.2f | %s |\n",
				s.Society.ID, cell(s.Society.Name), cell(s.Society.ISOCode), ll.Lat, ll.Lng, cell(strings.Join(values, ", "))))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("## Selected Regions\n\n")
	if len(opts.Selected) == 0 {
		sb.WriteString("_None selected._\n")
	} else {
		for _, r := range opts.Selected {
			sb.WriteString(fmt.Sprintf("- **%s** %s\n", r.Code, r.Name))
		}
	}

	return sb.String(), nil
}

// SaveReportToFile writes the generated markdown to a file.
func SaveReportToFile(results *model.Results, opts ReportOptions, filename string) error {
	content, err := GenerateReport(results, opts)
	if err != nil {
		return err
	}
	return os.WriteFile(filename, []byte(content), 0644)
}

// variableKeys returns every variable with codes or values, numerically
// sorted where possible.
func variableKeys(results *model.Results) []string {
	seen := make(map[string]bool)
	for k := range results.CodeIDs {
		seen[k] = true
	}
	for _, s := range results.Societies {
		for _, v := range s.VariableCodedValues {
			seen[v.VariableKey()] = true
		}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, errA := strconv.Atoi(keys[i])
		b, errB := strconv.Atoi(keys[j])
		if errA == nil && errB == nil {
			return a < b
		}
		return keys[i] < keys[j]
	})
	return keys
}

func variableNames(results *model.Results) map[string]string {
	names := make(map[string]string)
	for _, v := range results.Variables {
		names[strconv.Itoa(v.ID)] = v.Name
	}
	for _, s := range results.Societies {
		for _, v := range s.VariableCodedValues {
			if names[v.VariableKey()] == "" && v.VariableName != "" {
				names[v.VariableKey()] = v.VariableName
			}
		}
	}
	return names
}

// cell escapes pipes so values cannot break table rows.
func cell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
