package catalog

import (
	"regexp"

	"github.com/geocoder89/shopadmin/internal/form"
	"github.com/geocoder89/shopadmin/internal/lookup"
	"github.com/geocoder89/shopadmin/internal/record"
	"github.com/geocoder89/shopadmin/internal/render"
	"github.com/geocoder89/shopadmin/internal/table"
	"github.com/geocoder89/shopadmin/internal/view"
)

var httpURL = regexp.MustCompile(`^https?://.+`)

func Brand(_ *Gateway) *Entity {
	fields := brandFields()
	return &Entity{
		Resource:   "brand",
		Slug:       "brands",
		Singular:   "Brand",
		Title:      "Brands Management",
		AddEnabled: true,

		Columns: []table.Column{
			{
				Key:       "brand",
				Header:    "Brand",
				Accessor:  record.Field("name"),
				SortField: "name",
				Render: func(r record.Record) render.Cell {
					title := name(r)
					if title == "" {
						title = "Unnamed Brand"
					}
					detail := "No description"
					if d := record.String(r["description"]); d != "" {
						detail = snippet(d, 30)
					}
					return render.Cell{Kind: render.Avatar, Href: record.String(r["logoUrl"]), Text: title, Detail: detail}
				},
			},
			{
				Key:       "rating",
				Header:    "Rating",
				Accessor:  record.Field("averageRating"),
				SortField: "averageRating",
				Render: func(r record.Record) render.Cell {
					return render.Format(render.Rating, number(r, "averageRating"), render.Options{})
				},
			},
			{
				Key:       "reviews",
				Header:    "Reviews",
				Accessor:  record.Field("totalReviews"),
				SortField: "totalReviews",
				Render: func(r record.Record) render.Cell {
					return render.Format(render.Number, number(r, "totalReviews"), render.Options{})
				},
			},
			{Key: "email", Header: "Email", Accessor: record.Field("email"), Render: textOr("email", render.Placeholder)},
			{Key: "phone", Header: "Phone", Accessor: record.Field("phoneNumber"), Render: textOr("phoneNumber", render.Placeholder)},
			{Key: "postcode", Header: "Postcode", Accessor: record.Field("postcode"), Render: textOr("postcode", render.Placeholder)},
			{Key: "status", Header: "Status", Accessor: record.Field("status"), Render: statusBadge(render.StatusColor)},
		},

		Filters: []table.Filter{
			{Key: "name", Label: "Brand Name", Placeholder: "Search by brand name..."},
			{Key: "email", Label: "Email", Placeholder: "Search by email..."},
			{Key: "phoneNumber", Label: "Phone", Placeholder: "Search by phone..."},
			{Key: "postcode", Label: "Postcode", Placeholder: "Search by postcode..."},
			{Key: "status", Label: "Status", Kind: table.FilterSelect, Options: withAll(allStatuses, activeInactive)},
		},

		Actions: table.Actions{View: true, Edit: true, Delete: true},

		Fields:    fields,
		AddTitle:  "Add New Brand",
		EditTitle: "Edit Brand",
		Payload: func(v form.Values) (any, error) {
			return multipartPayload(fields, v), nil
		},

		ViewFields: []view.Field{
			{Name: "logoUrl", Label: "Brand Logo", Kind: render.Avatar, Section: "Brand Identity", Span: 12,
				Render: func(r record.Record) render.Cell {
					return render.Cell{Kind: render.Avatar, Href: record.String(r["logoUrl"]), Text: name(r)}
				}},
			{Name: "name", Label: "Brand Name", Section: "Brand Identity", Span: 12},
			{Name: "description", Label: "Description", Kind: render.LongText, Section: "Brand Identity", Span: 12},
			{Name: "email", Label: "Email Address", Kind: render.Email, Section: "Contact Information"},
			{Name: "phoneNumber", Label: "Phone Number", Kind: render.Phone, Section: "Contact Information"},
			{Name: "postcode", Label: "Postcode", Section: "Contact Information"},
			{Name: "websiteUrl", Label: "Website", Kind: render.URL, Section: "Contact Information"},
			{Name: "averageRating", Label: "Average Rating", Kind: render.Rating, Section: "Statistics"},
			{Name: "totalReviews", Label: "Total Reviews", Section: "Statistics",
				Render: func(r record.Record) render.Cell {
					return render.Format(render.Number, number(r, "totalReviews"), render.Options{})
				}},
			{Name: "status", Label: "Status", Kind: render.Badge, Section: "Status", Span: 12,
				Options: render.Options{Color: render.StatusColor}},
		},
		ViewTitle: func(r record.Record) string { return "Brand Details: " + name(r) },

		Label: name,
		Messages: Messages{
			Created: "Brand created successfully",
			Updated: "Brand updated successfully",
			Deleted: "Brand deleted successfully",
		},
	}
}

func brandFields() []form.Field {
	return []form.Field{
		{Name: "name", Label: "Brand Name", Placeholder: "Enter brand name", Required: true, Span: 6},
		{
			Name: "email", Label: "Email Address", Kind: form.Email, Placeholder: "brand@example.com",
			Required: true, Span: 6,
			Validate: form.Chain(form.Required("Email Address"), form.EmailFormat("Invalid email format")),
		},
		{Name: "phoneNumber", Label: "Phone Number", Placeholder: "+1234567890", Required: true, Span: 6},
		{Name: "postcode", Label: "Postcode", Placeholder: "Enter postcode", Required: true, Span: 6},
		{
			Name: "description", Label: "Description", Kind: form.TextArea, Placeholder: "Enter brand description",
			Required: true, MinRows: 4, Span: 12,
		},
		{
			Name: "websiteUrl", Label: "Website URL", Kind: form.URL, Placeholder: "https://example.com",
			Required: true, Span: 12,
			Validate: form.Chain(
				form.Required("Website URL"),
				form.Pattern(httpURL, "Invalid URL format (must start with http:// or https://)"),
			),
		},
		{Name: "logoUrl", Label: "Brand Logo", Kind: form.File, Placeholder: "Upload brand logo", Accept: "image/*", Span: 12},
		{
			Name: "status", Label: "Status", Kind: form.Select, Placeholder: "Select brand status",
			Required: true, Default: "ACTIVE", Span: 6,
			Options: append(append([]lookup.Option{}, activeInactive...), lookup.Option{Value: "PENDING", Label: "Pending"}),
		},
	}
}
