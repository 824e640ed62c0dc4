package catalog

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/geocoder89/shopadmin/internal/form"
	"github.com/geocoder89/shopadmin/internal/lookup"
	"github.com/geocoder89/shopadmin/internal/record"
	"github.com/geocoder89/shopadmin/internal/render"
	"github.com/geocoder89/shopadmin/internal/table"
	"github.com/geocoder89/shopadmin/internal/view"
)

const (
	ReviewProduct = "Product"
	ReviewBrand   = "Brand"
)

var reviewRatings = []string{
	"product_store_rating",
	"seller_rating",
	"product_quality_rating",
	"product_price_rating",
	"issue_handling_rating",
}

var reviewConsents = []string{"privacy_policy", "term_and_condition"}

func reviewTypeColor(v any) string {
	if record.String(v) == ReviewProduct {
		return "blue"
	}
	return "green"
}

func statusIs(status string) func(record.Record) bool {
	return func(r record.Record) bool { return record.String(r["status"]) == status }
}

func setStatus(status string) Command {
	return func(ctx context.Context, g *Gateway, r record.Record) (string, error) {
		if err := g.SetReviewStatus(ctx, r.ID(), status); err != nil {
			return "", err
		}
		return fmt.Sprintf("Review %s successfully", strings.ToLower(status)), nil
	}
}

// reviewTarget names what a review is attached to.
func reviewTarget(r record.Record) string {
	switch t := record.String(r["reviewType"]); {
	case t == ReviewProduct && !record.IsEmpty(r["productId"]):
		return ReviewProduct
	case t == ReviewBrand && !record.IsEmpty(r["brandId"]):
		return ReviewBrand
	default:
		return "Unknown"
	}
}

func Review(g *Gateway) *Entity {
	fields := reviewFields(g)
	return &Entity{
		Resource: "review",
		Slug:     "reviews",
		Singular: "Review",
		Title:    "Reviews Management",

		Columns: []table.Column{
			{
				Key:       "review",
				Header:    "Review",
				Accessor:  record.Field("reviewTitle"),
				SortField: "reviewTitle",
				Render: func(r record.Record) render.Cell {
					title := record.String(r["reviewTitle"])
					if title == "" {
						title = "No Title"
					}
					body := record.String(r["reviewBody"])
					if body == "" {
						body = "No review content"
					}
					return render.Cell{
						Kind:   render.Text,
						Text:   title,
						Detail: body,
						Color:  reviewTypeColor(r["reviewType"]),
						Items:  []string{record.String(r["reviewType"])},
					}
				},
			},
			{
				Key:       "reviewer",
				Header:    "Reviewer",
				Accessor:  record.Field("name"),
				SortField: "name",
				Render: func(r record.Record) render.Cell {
					detail := record.String(r["email"])
					if phone := record.String(r["phoneNumber"]); phone != "" {
						detail += " / " + phone
					}
					return render.Cell{Kind: render.Text, Text: name(r), Detail: detail}
				},
			},
			{
				Key:       "ratings",
				Header:    "Ratings",
				Accessor:  record.Field("product_store_rating"),
				SortField: "product_store_rating",
				Render: func(r record.Record) render.Cell {
					c := render.Format(render.Rating, number(r, "product_store_rating"), render.Options{})
					c.Detail = fmt.Sprintf("Seller %s / Quality %s / Price %s",
						record.String(number(r, "seller_rating")),
						record.String(number(r, "product_quality_rating")),
						record.String(number(r, "product_price_rating")))
					if !record.IsEmpty(r["issue_handling_rating"]) {
						c.Detail += " / Issue Handling " + record.String(number(r, "issue_handling_rating"))
					}
					return c
				},
			},
			{
				Key:      "target",
				Header:   "Target",
				Accessor: record.Field("reviewType"),
				NoSort:   true,
				Render: func(r record.Record) render.Cell {
					c := render.Cell{Kind: render.Text, Text: reviewTarget(r)}
					if order := record.String(r["orderId"]); order != "" {
						c.Detail = "Order: " + order
					}
					return c
				},
			},
			{Key: "status", Header: "Status", Accessor: record.Field("status"), Render: statusBadge(render.StatusColor)},
			{Key: "date", Header: "Date", Accessor: record.Field("createdAt"), Kind: render.DateTime},
		},

		Filters: []table.Filter{
			{Key: "reviewTitle", Label: "Review Title", Placeholder: "Search by review title..."},
			{Key: "name", Label: "Reviewer Name", Placeholder: "Search by reviewer name..."},
			{Key: "email", Label: "Email", Placeholder: "Search by email..."},
			{Key: "reviewType", Label: "Review Type", Kind: table.FilterSelect, Options: []lookup.Option{
				{Value: "", Label: "All Types"},
				{Value: ReviewProduct, Label: "Product Review"},
				{Value: ReviewBrand, Label: "Brand Review"},
			}},
			{Key: "status", Label: "Status", Kind: table.FilterSelect, Options: withAll(allStatuses, activeInactive)},
			{Key: "minRating", Label: "Min Rating", Kind: table.FilterSelect, Options: []lookup.Option{
				{Value: "", Label: "Any Rating"},
				{Value: "1", Label: "1+ Stars"},
				{Value: "2", Label: "2+ Stars"},
				{Value: "3", Label: "3+ Stars"},
				{Value: "4", Label: "4+ Stars"},
				{Value: "5", Label: "5 Stars"},
			}},
		},

		Actions: table.Actions{
			View:   true,
			Edit:   true,
			Delete: true,
			Custom: []table.CustomAction{
				{Name: "activate", Label: "Activate Review", Color: "green", Icon: "star", Visible: statusIs("INACTIVE")},
				{Name: "deactivate", Label: "Deactivate Review", Color: "orange", Icon: "x", Visible: statusIs("ACTIVE")},
			},
		},
		Commands: map[string]Command{
			"activate":   setStatus("ACTIVE"),
			"deactivate": setStatus("INACTIVE"),
		},
		Defaults:      table.Defaults{Limit: 25},
		Export:        exportReviews,
		ExportMessage: func(n int) string { return fmt.Sprintf("Exported %d reviews", n) },

		Fields:    fields,
		EditTitle: "Edit Review",
		Initial:   reviewInitial,
		Payload:   reviewPayload,

		ViewFields: []view.Field{
			{Name: "reviewTitle", Label: "Review Title", Section: "Review", Span: 12},
			{Name: "reviewBody", Label: "Review Body", Kind: render.LongText, Section: "Review", Span: 12},
			{Name: "reviewType", Label: "Review Type", Kind: render.Badge, Section: "Review",
				Options: render.Options{Color: reviewTypeColor}},
			{Name: "target", Label: "Reviewed", Section: "Review",
				Accessor: record.Compute(func(r record.Record) any {
					if record.String(r["reviewType"]) == ReviewBrand {
						return r.Lookup("brandId.name")
					}
					return r.Lookup("productId.name")
				})},
			{Name: "product_store_rating", Label: "Store Rating", Kind: render.Rating, Section: "Ratings"},
			{Name: "seller_rating", Label: "Seller Rating", Kind: render.Rating, Section: "Ratings"},
			{Name: "product_quality_rating", Label: "Quality Rating", Kind: render.Rating, Section: "Ratings"},
			{Name: "product_price_rating", Label: "Price Rating", Kind: render.Rating, Section: "Ratings"},
			{Name: "issue_handling_rating", Label: "Issue Handling Rating", Kind: render.Rating, Section: "Ratings"},
			{Name: "name", Label: "Reviewer Name", Section: "Reviewer"},
			{Name: "email", Label: "Reviewer Email", Kind: render.Email, Section: "Reviewer"},
			{Name: "phoneNumber", Label: "Phone Number", Kind: render.Phone, Section: "Reviewer"},
			{Name: "orderId", Label: "Order ID", Section: "Reviewer"},
			{Name: "privacy_policy", Label: "Accepted Privacy Policy", Kind: render.Boolean, Section: "Consent"},
			{Name: "term_and_condition", Label: "Accepted Terms & Conditions", Kind: render.Boolean, Section: "Consent"},
			{Name: "status", Label: "Status", Kind: render.Badge, Section: "Status", Span: 12,
				Options: render.Options{Color: render.StatusColor}},
		},
		ViewTitle: func(r record.Record) string { return "Review Details: " + record.String(r["reviewTitle"]) },

		Label: name,
		Confirm: func(r record.Record) string {
			return fmt.Sprintf("Are you sure you want to delete the review by %s? This action cannot be undone.", name(r))
		},
		Messages: Messages{
			Updated: "Review updated successfully",
			Deleted: "Review deleted successfully",
		},
	}
}

func rating(name, label string, required bool) form.Field {
	return form.Field{
		Name: name, Label: label, Kind: form.Number, Required: required, Span: 6,
		Min: form.Float(0), Max: form.Float(5), Step: 0.5, DecimalScale: form.Int(1),
	}
}

func reviewFields(g *Gateway) []form.Field {
	showFor := func(t string) func(form.Values) bool {
		return func(v form.Values) bool { return v.String("reviewType") == t }
	}
	return []form.Field{
		{Name: "reviewTitle", Label: "Review Title", Placeholder: "Enter review title", Required: true, Span: 12},
		{
			Name: "reviewBody", Label: "Review Body", Kind: form.TextArea, Placeholder: "Write your review here...",
			Required: true, MinRows: 4, Span: 12,
		},
		{
			Name: "reviewType", Label: "Review Type", Kind: form.Select, Placeholder: "Select review type",
			Required: true, Span: 12,
			Options: []lookup.Option{{Value: ReviewProduct, Label: ReviewProduct}, {Value: ReviewBrand, Label: ReviewBrand}},
		},
		{
			Name: "productId", Label: "Product", Kind: form.Select, Placeholder: "Search and select product...",
			Span: 12, Searchable: true, Clearable: true,
			Loader: g.OptionsFunc("product"), ShowWhen: showFor(ReviewProduct),
		},
		{
			Name: "brandId", Label: "Brand", Kind: form.Select, Placeholder: "Search and select brand...",
			Span: 12, Searchable: true, Clearable: true,
			Loader: g.OptionsFunc("brand"), ShowWhen: showFor(ReviewBrand),
		},
		rating("product_store_rating", "Store Rating (0-5)", true),
		rating("seller_rating", "Seller Rating (0-5)", true),
		rating("product_quality_rating", "Quality Rating (0-5)", true),
		rating("product_price_rating", "Price Rating (0-5)", true),
		rating("issue_handling_rating", "Issue Handling Rating (0-5)", false),
		{Name: "name", Label: "Reviewer Name", Placeholder: "Enter name", Required: true, Span: 6},
		{
			Name: "email", Label: "Reviewer Email", Kind: form.Email, Placeholder: "example@email.com",
			Required: true, Span: 6,
			Validate: form.Chain(form.Required("Reviewer Email"), form.EmailFormat("Invalid email format")),
		},
		{Name: "phoneNumber", Label: "Phone Number", Placeholder: "+1234567890", Span: 6},
		{Name: "orderId", Label: "Order ID", Placeholder: "Optional", Span: 12},
		{Name: "privacy_policy", Label: "Accepted Privacy Policy", Kind: form.Checkbox, Required: true, Span: 6},
		{Name: "term_and_condition", Label: "Accepted Terms & Conditions", Kind: form.Checkbox, Required: true, Span: 6},
		{
			Name: "status", Label: "Status", Kind: form.Select, Placeholder: "Select status",
			Required: true, Span: 6, Options: activeInactive,
		},
	}
}

// reviewInitial coerces the consent flags to booleans. Populated product and brand
// references are kept so the selects can show their names.
func reviewInitial(r record.Record) map[string]any {
	out := make(map[string]any, len(r))
	for k, v := range r {
		out[k] = v
	}
	for _, k := range reviewConsents {
		out[k] = form.Values(out).Bool(k)
	}
	return out
}

var reviewPayloadFields = []string{
	"reviewTitle", "reviewBody", "reviewType", "name", "email", "phoneNumber", "orderId", "status",
}

// reviewPayload builds the JSON body. The review targets exactly one of product or
// brand, ratings are numbers and consents are booleans.
func reviewPayload(v form.Values) (any, error) {
	body := map[string]any{}
	for _, k := range reviewPayloadFields {
		body[k] = v.String(k)
	}

	switch v.String("reviewType") {
	case ReviewProduct:
		id := scalar(v["productId"])
		if id == "" {
			return nil, &ValidationError{Field: "productId", Message: "Please select a product for product review"}
		}
		body["productId"] = id
	case ReviewBrand:
		id := scalar(v["brandId"])
		if id == "" {
			return nil, &ValidationError{Field: "brandId", Message: "Please select a brand for brand review"}
		}
		body["brandId"] = id
	}

	for _, k := range reviewRatings {
		if f, ok := v.Float(k); ok {
			body[k] = f
		}
	}
	for _, k := range reviewConsents {
		body[k] = v.Bool(k)
	}
	return body, nil
}

// exportReviews writes the review CSV. Ratings are bare numbers defaulting to 0, except
// the optional issue handling rating which stays blank.
func exportReviews(w io.Writer, rows []record.Record) error {
	lines := []string{strings.Join([]string{
		"Review Title", "Review Body", "Reviewer Name", "Email", "Review Type", "Status",
		"Overall Rating", "Seller Rating", "Quality Rating", "Price Rating", "Issue Handling Rating",
		"Order ID", "Date",
	}, ",")}

	q := func(r record.Record, k string) string { return table.QuoteCSV(record.String(r[k])) }

	for _, r := range rows {
		issue := ""
		if f := number(r, "issue_handling_rating"); f != 0 {
			issue = record.String(f)
		}
		date := render.Format(render.Date, r["createdAt"], render.Options{})
		dateText := date.Text
		if date.Empty {
			dateText = ""
		}
		lines = append(lines, strings.Join([]string{
			q(r, "reviewTitle"),
			q(r, "reviewBody"),
			q(r, "name"),
			q(r, "email"),
			q(r, "reviewType"),
			q(r, "status"),
			record.String(number(r, "product_store_rating")),
			record.String(number(r, "seller_rating")),
			record.String(number(r, "product_quality_rating")),
			record.String(number(r, "product_price_rating")),
			issue,
			q(r, "orderId"),
			table.QuoteCSV(dateText),
		}, ","))
	}
	_, err := io.WriteString(w, strings.Join(lines, "\n"))
	return err
}
