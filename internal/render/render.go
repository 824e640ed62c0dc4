package render

import (
	"strings"
	"time"

	"github.com/geocoder89/shopadmin/internal/record"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Kind selects the formatter used for a value.
type Kind int

const (
	Text Kind = iota
	Badge
	Rating
	Boolean
	Date
	DateTime
	Email
	Phone
	URL
	LongText
	Currency
	Number
	Array
	List
	Image
	Avatar
)

var kindNames = map[Kind]string{
	Text:     "text",
	Badge:    "badge",
	Rating:   "rating",
	Boolean:  "boolean",
	Date:     "date",
	DateTime: "datetime",
	Email:    "email",
	Phone:    "phone",
	URL:      "url",
	LongText: "longtext",
	Currency: "currency",
	Number:   "number",
	Array:    "array",
	List:     "list",
	Image:    "image",
	Avatar:   "avatar",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "text"
}

const Placeholder = "-"

// Cell is the display-ready form of a value. Templates switch on Kind.
type Cell struct {
	Kind   Kind
	Text   string
	Detail string
	Href   string
	Color  string
	Rating float64
	Stars  int
	Items  []string
	Empty  bool
}

func (c Cell) KindName() string { return c.Kind.String() }

// Options tune individual formatters.
type Options struct {
	Color    func(any) string
	Format   func(any) string
	Currency string
	Initial  string
}

var printer = message.NewPrinter(language.English)

func Empty() Cell {
	return Cell{Kind: Text, Text: Placeholder, Empty: true}
}

// Format renders v according to kind. Missing values render as the placeholder dash.
func Format(kind Kind, v any, opts Options) Cell {
	if kind != Boolean && record.IsEmpty(v) {
		return Empty()
	}
	if kind == Boolean && v == nil {
		return Empty()
	}

	switch kind {
	case Badge:
		color := "blue"
		if opts.Color != nil {
			color = opts.Color(v)
		}
		return Cell{Kind: Badge, Text: record.String(v), Color: color}

	case Rating:
		f, _ := record.Float(v)
		return Cell{Kind: Rating, Text: printer.Sprintf("%.1f", f), Rating: f, Stars: stars(f)}

	case Boolean:
		b := truthy(v)
		if b {
			return Cell{Kind: Boolean, Text: "Yes", Color: "green"}
		}
		return Cell{Kind: Boolean, Text: "No", Color: "red"}

	case Date:
		t, ok := parseTime(v)
		if !ok {
			return Cell{Kind: Text, Text: record.String(v)}
		}
		return Cell{Kind: Date, Text: t.Format("2006-01-02")}

	case DateTime:
		t, ok := parseTime(v)
		if !ok {
			return Cell{Kind: Text, Text: record.String(v)}
		}
		return Cell{Kind: DateTime, Text: t.Format("2006-01-02"), Detail: t.Format("15:04:05")}

	case Email:
		s := record.String(v)
		return Cell{Kind: Email, Text: s, Href: "mailto:" + s}

	case Phone:
		s := record.String(v)
		return Cell{Kind: Phone, Text: s, Href: "tel:" + s}

	case URL:
		s := record.String(v)
		return Cell{Kind: URL, Text: s, Href: s}

	case LongText:
		return Cell{Kind: LongText, Text: record.String(v)}

	case Currency:
		f, ok := record.Float(v)
		if !ok {
			return Cell{Kind: Text, Text: record.String(v)}
		}
		return Cell{Kind: Currency, Text: FormatMoney(f, opts.Currency)}

	case Number:
		if opts.Format != nil {
			return Cell{Kind: Number, Text: opts.Format(v)}
		}
		if f, ok := record.Float(v); ok {
			return Cell{Kind: Number, Text: printer.Sprint(f)}
		}
		return Cell{Kind: Number, Text: record.String(v)}

	case Array, List:
		items, ok := v.([]any)
		if !ok {
			return Empty()
		}
		out := make([]string, 0, len(items))
		for _, item := range items {
			out = append(out, record.String(item))
		}
		return Cell{Kind: kind, Items: out}

	case Image:
		return Cell{Kind: Image, Href: record.String(v), Text: opts.Initial}

	case Avatar:
		return Cell{Kind: Avatar, Href: record.String(v), Text: initial(opts.Initial)}

	default:
		if opts.Format != nil {
			return Cell{Kind: Text, Text: opts.Format(v)}
		}
		return Cell{Kind: Text, Text: record.String(v)}
	}
}

// FormatMoney prints an amount with two decimals and thousands separators.
func FormatMoney(amount float64, symbol string) string {
	if symbol == "" {
		symbol = "$"
	}
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	return sign + symbol + printer.Sprintf("%.2f", amount)
}

// StatusColor is the badge palette shared by the entity screens.
func StatusColor(v any) string {
	switch record.String(v) {
	case "ACTIVE":
		return "green"
	case "INACTIVE":
		return "gray"
	case "PENDING":
		return "blue"
	default:
		return "gray"
	}
}

func stars(f float64) int {
	n := int(f + 0.5)
	if n < 0 {
		return 0
	}
	if n > 5 {
		return 5
	}
	return n
}

func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		s := strings.ToLower(strings.TrimSpace(t))
		return s == "true" || s == "1" || s == "yes" || s == "on"
	default:
		f, ok := record.Float(v)
		return ok && f != 0
	}
}

func parseTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"} {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed, true
			}
		}
	case float64:
		return time.UnixMilli(int64(t)).UTC(), true
	}
	return time.Time{}, false
}

func initial(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "?"
	}
	return strings.ToUpper(string([]rune(s)[:1]))
}
