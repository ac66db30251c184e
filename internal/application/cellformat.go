package application

import (
	"math"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/ericfisherdev/policypanel/internal/domain/model"
)

// emptyCell is shown for absent values.
const emptyCell = "-"

var numberPrinter = message.NewPrinter(language.English)

// FormatCell renders a cell value for display in column.
func FormatCell(v model.Value, column model.Column) string {
	if model.IsNull(v) {
		return emptyCell
	}

	if list, ok := v.(model.List); ok && column.Format.IsArray {
		return formText(list)
	}

	if column.Format.Type == "checkbox" {
		if truthy(v) {
			return "✓"
		}
		return "✗"
	}

	if n, ok := v.(model.Number); ok && column.Format.Type == "number" {
		return formatNumber(float64(n))
	}

	return model.ValueText(v)
}

// formatNumber groups thousands and keeps at most three fraction digits.
func formatNumber(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return numberPrinter.Sprintf("%d", int64(f))
	}
	s := numberPrinter.Sprintf("%.3f", f)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}

func truthy(v model.Value) bool {
	switch val := v.(type) {
	case model.Bool:
		return bool(val)
	case model.Number:
		return val != 0 && !math.IsNaN(float64(val))
	case model.Text:
		return val != ""
	case nil, model.Null:
		return false
	default:
		return true
	}
}
