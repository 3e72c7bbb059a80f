package summary

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// metricNamePattern restricts metric names to stable machine keys.
var metricNamePattern = regexp.MustCompile(`^[a-z0-9_]+$`)

// Metric is a single headline number produced by a notebook.
type Metric struct {
	// Name is the machine key, e.g. "conversion_rate". Unique within a summary.
	Name string `json:"name"`

	// Label is the display text. Derived from Name when empty.
	Label string `json:"label"`

	// Value is the metric value. It must be finite.
	Value float64 `json:"value"`

	// Unit is appended when formatting, e.g. "%", "s", "users".
	Unit string `json:"unit,omitempty"`

	// Precision is the number of decimals used by Formatted.
	Precision int `json:"precision"`

	// Description explains what the metric measures.
	Description string `json:"description,omitempty"`
}

// Validate checks the metric name, value and precision.
func (m Metric) Validate() error {
	if !metricNamePattern.MatchString(m.Name) {
		return fmt.Errorf("%w: %q", ErrInvalidMetricName, m.Name)
	}
	if math.IsNaN(m.Value) || math.IsInf(m.Value, 0) {
		return fmt.Errorf("%w: %s=%v", ErrNonFiniteMetric, m.Name, m.Value)
	}
	if m.Precision < 0 {
		return fmt.Errorf("%w: %s precision %d", ErrInvalidPrecision, m.Name, m.Precision)
	}
	return nil
}

// DisplayLabel returns Label, or a title-cased form of Name when Label is empty.
func (m Metric) DisplayLabel() string {
	if m.Label != "" {
		return m.Label
	}
	return LabelFromName(m.Name)
}

// Formatted renders the value with its precision and unit.
//
//	{Value: 12.346, Precision: 2, Unit: "s"} -> "12.35s"
//	{Value: 4.5, Precision: 1, Unit: "%"}    -> "4.5%"
//	{Value: 120, Unit: "users"}              -> "120 users"
//	{Value: 12.346, Precision: 2, Unit: "ms"} -> "12.35 ms"
func (m Metric) Formatted() string {
	value := strconv.FormatFloat(m.Value, 'f', m.Precision, 64)
	switch m.Unit {
	case "":
		return value
	case "%", "s":
		return value + m.Unit
	default:
		return value + " " + m.Unit
	}
}

// LabelFromName converts a metric name such as "avg_completion_time" into
// "Avg Completion Time".
func LabelFromName(name string) string {
	words := strings.Fields(strings.ReplaceAll(name, "_", " "))
	// cases.Caser keeps state and is not safe for concurrent use.
	return cases.Title(language.English).String(strings.Join(words, " "))
}
