// Package report renders the inspection report HTML handed to the PDF renderer.
package report

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"sort"
	"time"
)

//go:embed templates/report.html
var templateFS embed.FS

var reportTemplate = template.Must(template.New("report.html").Funcs(template.FuncMap{
	"date": func(t time.Time) string { return t.Format("2 Jan 2006") },
	"datetime": func(t *time.Time) string {
		if t == nil {
			return ""
		}
		return t.Format("2 Jan 2006 15:04")
	},
	"coord": func(v *float64) string {
		if v == nil {
			return ""
		}
		return fmt.Sprintf("%.5f", *v)
	},
}).ParseFS(templateFS, "templates/report.html"))

// Data is everything printed on the report.
type Data struct {
	RequestID       string
	ContactName     string
	PropertyAddress string
	PropertyType    string
	PropertySizeSqm *float64
	InspectorNames  []string
	GeneratedAt     time.Time
	Rooms           []Room
}

type Room struct {
	Name           string
	Type           string
	ConditionNotes string
	Measurements   []Measurement
	Photos         []Photo
}

type Measurement struct {
	Label string
	Value string
}

type Photo struct {
	URL     string
	TakenAt *time.Time
	Lat     *float64
	Lon     *float64
}

// Measurements flattens a measurements document into sorted label/value rows.
func Measurements(doc map[string]any) []Measurement {
	out := make([]Measurement, 0, len(doc))
	for k, v := range doc {
		out = append(out, Measurement{Label: k, Value: fmt.Sprint(v)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out
}

// Render executes the report template.
func Render(data Data) ([]byte, error) {
	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render report: %w", err)
	}
	return buf.Bytes(), nil
}
