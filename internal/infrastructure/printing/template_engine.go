package printing

import (
	"bytes"
	"html/template"
	"maps"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// TemplateEngine renders HTML templates with business data.
// It uses Go's html/template package with custom functions for formatting.
type TemplateEngine struct {
	funcMap template.FuncMap
}

// TemplateEngineOption configures the template engine
type TemplateEngineOption func(*TemplateEngine)

// WithFuncs adds or overrides template functions
func WithFuncs(funcs template.FuncMap) TemplateEngineOption {
	return func(e *TemplateEngine) {
		maps.Copy(e.funcMap, funcs)
	}
}

// NewTemplateEngine creates a new template engine with default configuration
func NewTemplateEngine(opts ...TemplateEngineOption) *TemplateEngine {
	e := &TemplateEngine{}

	e.funcMap = template.FuncMap{
		// Money and numbers
		"formatMoney":    formatMoney,
		"formatDecimal":  formatDecimal,
		"formatQuantity": formatQuantity,

		// Dates
		"formatDate":     formatDate,
		"formatDateTime": formatDateTime,

		// Strings
		"truncate": truncate,
		"title":    titleCase,
		"upper":    strings.ToUpper,
		"trim":     strings.TrimSpace,
		"nl2br":    nl2br,

		// Arithmetic
		"add": add,
		"mul": mul,

		// Misc
		"default":  defaultFunc,
		"safeHTML": safeHTML,
		"dict":     dict,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// RenderString renders a template string with the provided data
func (e *TemplateEngine) RenderString(name, content string, data any) (string, error) {
	if strings.TrimSpace(content) == "" {
		return "", NewRenderError(ErrCodeInvalidTemplate, "template content is empty", nil)
	}

	tmpl, err := template.New(name).Funcs(e.funcMap).Option("missingkey=error").Parse(content)
	if err != nil {
		return "", NewRenderError(ErrCodeInvalidTemplate, "failed to parse template", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", NewRenderError(ErrCodeRenderFailed, "failed to execute template", err)
	}

	return buf.String(), nil
}

// FuncMap returns a copy of the template function map
func (e *TemplateEngine) FuncMap() template.FuncMap {
	funcMap := make(template.FuncMap, len(e.funcMap))
	maps.Copy(funcMap, e.funcMap)
	return funcMap
}

// formatMoney formats a value with two decimals and thousand separators.
// Example: 1234.5 -> "1,234.50"
func formatMoney(v any) string {
	d := toDecimal(v)
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}

	intPart, decPart, _ := strings.Cut(d.StringFixed(2), ".")

	var result strings.Builder
	for i, c := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			result.WriteRune(',')
		}
		result.WriteRune(c)
	}

	return sign + result.String() + "." + decPart
}

func formatDecimal(v any, precision int) string {
	return toDecimal(v).StringFixed(int32(precision))
}

// formatQuantity prints a quantity without trailing zeros.
// Example: 12.5000 -> "12.5"
func formatQuantity(v any) string {
	return toDecimal(v).String()
}

// formatDate formats a time as 02 Jan 2006; zero or nil times print empty
func formatDate(v any) string {
	t := toTime(v)
	if t.IsZero() {
		return ""
	}
	return t.Format("02 Jan 2006")
}

func formatDateTime(v any) string {
	t := toTime(v)
	if t.IsZero() {
		return ""
	}
	return t.Format("02 Jan 2006 15:04")
}

// truncate shortens s to max runes, ending with suffix (default "...")
func truncate(s string, max int, suffix ...string) string {
	suf := "..."
	if len(suffix) > 0 {
		suf = suffix[0]
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	sufRunes := []rune(suf)
	if max <= len(sufRunes) {
		return string(sufRunes[:max])
	}
	return string(runes[:max-len(sufRunes)]) + suf
}

func titleCase(s string) string {
	return cases.Title(language.English).String(s)
}

// nl2br escapes s and turns line breaks into <br>
func nl2br(s string) template.HTML {
	escaped := template.HTMLEscapeString(strings.ReplaceAll(s, "\r\n", "\n"))
	return template.HTML(strings.ReplaceAll(escaped, "\n", "<br>"))
}

func add(a, b any) decimal.Decimal {
	return toDecimal(a).Add(toDecimal(b))
}

func mul(a, b any) decimal.Decimal {
	return toDecimal(a).Mul(toDecimal(b))
}

// defaultFunc returns def when val is empty
func defaultFunc(def, val any) any {
	switch v := val.(type) {
	case nil:
		return def
	case string:
		if strings.TrimSpace(v) == "" {
			return def
		}
	}
	return val
}

// safeHTML marks s as trusted HTML. Only use with content the service generated.
func safeHTML(s string) template.HTML {
	return template.HTML(s)
}

// dict builds a map from alternating key/value arguments for sub-templates
func dict(pairs ...any) map[string]any {
	m := make(map[string]any, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		if key, ok := pairs[i].(string); ok {
			m[key] = pairs[i+1]
		}
	}
	return m
}

func toDecimal(v any) decimal.Decimal {
	switch val := v.(type) {
	case decimal.Decimal:
		return val
	case *decimal.Decimal:
		if val == nil {
			return decimal.Zero
		}
		return *val
	case decimal.NullDecimal:
		if !val.Valid {
			return decimal.Zero
		}
		return val.Decimal
	case int:
		return decimal.NewFromInt(int64(val))
	case int64:
		return decimal.NewFromInt(val)
	case float64:
		return decimal.NewFromFloat(val)
	case string:
		d, err := decimal.NewFromString(val)
		if err != nil {
			return decimal.Zero
		}
		return d
	default:
		return decimal.Zero
	}
}

func toTime(v any) time.Time {
	switch val := v.(type) {
	case time.Time:
		return val
	case *time.Time:
		if val == nil {
			return time.Time{}
		}
		return *val
	case string:
		for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
			if t, err := time.Parse(layout, val); err == nil {
				return t
			}
		}
		return time.Time{}
	default:
		return time.Time{}
	}
}
