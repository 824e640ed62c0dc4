package catalog

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/geocoder89/shopadmin/internal/form"
	"github.com/geocoder89/shopadmin/internal/lookup"
	"github.com/geocoder89/shopadmin/internal/record"
	"github.com/geocoder89/shopadmin/internal/render"
	"github.com/geocoder89/shopadmin/internal/table"
	"github.com/geocoder89/shopadmin/internal/view"
)

var productHandle = regexp.MustCompile(`^[a-z0-9-]+$`)

var productCategories = []lookup.Option{
	{Value: "electronics", Label: "Electronics"},
	{Value: "clothing", Label: "Clothing"},
	{Value: "home", Label: "Home & Garden"},
	{Value: "sports", Label: "Sports"},
	{Value: "books", Label: "Books"},
	{Value: "beauty", Label: "Beauty"},
}

func productStatusColor(v any) string {
	switch record.String(v) {
	case "ACTIVE":
		return "green"
	case "DRAFT":
		return "yellow"
	case "ARCHIVED":
		return "gray"
	default:
		return "blue"
	}
}

func stockColor(n float64) string {
	switch {
	case n > 20:
		return "green"
	case n > 5:
		return "yellow"
	default:
		return "red"
	}
}

// productImage is the first gallery image, else the single image field.
func productImage(r record.Record) string {
	if imgs, ok := r["images"].([]any); ok && len(imgs) > 0 {
		return record.String(imgs[0])
	}
	return record.String(r["image"])
}

// productStock reads stock, falling back to the stockQuantity form field.
func productStock(r record.Record) float64 {
	if _, ok := r["stock"]; ok {
		return number(r, "stock")
	}
	return number(r, "stockQuantity")
}

func Product(g *Gateway) *Entity {
	fields := productFields(g)
	return &Entity{
		Resource:   "product",
		Slug:       "products",
		Singular:   "Product",
		Title:      "Products Management",
		AddEnabled: true,

		Columns: []table.Column{
			{
				Key:       "product",
				Header:    "Product",
				Accessor:  record.Field("name"),
				SortField: "name",
				Render: func(r record.Record) render.Cell {
					sku := record.String(r["sku"])
					if sku == "" {
						sku = "N/A"
					}
					return render.Cell{Kind: render.Avatar, Href: productImage(r), Text: name(r), Detail: "SKU: " + sku}
				},
			},
			{Key: "category", Header: "Category", Accessor: record.Field("category"), Render: textOr("category", render.Placeholder)},
			{
				Key:      "price",
				Header:   "Price",
				Accessor: record.Field("price"),
				Render: func(r record.Record) render.Cell {
					return render.Cell{Kind: render.Currency, Text: render.FormatMoney(number(r, "price"), "$")}
				},
			},
			{
				Key:       "stock",
				Header:    "Stock",
				Accessor:  record.Compute(func(r record.Record) any { return productStock(r) }),
				SortField: "stock",
				Render: func(r record.Record) render.Cell {
					n := productStock(r)
					return render.Cell{Kind: render.Badge, Text: fmt.Sprintf("%s in stock", record.String(n)), Color: stockColor(n)}
				},
			},
			{
				Key:      "rating",
				Header:   "Rating",
				Accessor: record.Field("rating"),
				Render: func(r record.Record) render.Cell {
					if number(r, "rating") == 0 {
						return render.Cell{Kind: render.Text, Text: "No ratings"}
					}
					return render.Cell{Kind: render.Text, Text: record.String(r["rating"]) + "/5"}
				},
			},
			{Key: "status", Header: "Status", Accessor: record.Field("status"), Render: statusBadge(productStatusColor)},
		},

		Filters: []table.Filter{
			{Key: "name", Label: "Product Name", Placeholder: "Search by product name..."},
			{Key: "sku", Label: "SKU", Placeholder: "Search by SKU..."},
			{Key: "category", Label: "Category", Kind: table.FilterSelect,
				Options: withAll(lookup.Option{Value: "", Label: "All Categories"}, productCategories)},
			{Key: "status", Label: "Status", Kind: table.FilterSelect, Options: withAll(allStatuses, []lookup.Option{
				{Value: "ACTIVE", Label: "Active"},
				{Value: "DRAFT", Label: "Draft"},
				{Value: "ARCHIVED", Label: "Archived"},
			})},
			{Key: "brandId", Label: "Brand", Kind: table.FilterSelect, Loader: g.OptionsFunc("brand")},
			{Key: "minPrice", Label: "Min Price", Placeholder: "Minimum price..."},
			{Key: "maxPrice", Label: "Max Price", Placeholder: "Maximum price..."},
		},

		Actions:       table.Actions{View: true, Edit: true, Delete: true},
		Defaults:      table.Defaults{Limit: 25},
		Export:        exportProducts,
		ExportMessage: func(n int) string { return fmt.Sprintf("Exported %d products with custom format", n) },

		Fields:    fields,
		AddTitle:  "Add New Product",
		EditTitle: "Edit Product",
		Payload: func(v form.Values) (any, error) {
			return multipartPayload(fields, v), nil
		},

		ViewFields: []view.Field{
			{Name: "image", Label: "Product Image", Kind: render.Image, Section: "Product Identity", Span: 12,
				Accessor: record.Compute(func(r record.Record) any { return productImage(r) })},
			{Name: "name", Label: "Product Name", Section: "Product Identity"},
			{Name: "handle", Label: "Handle", Section: "Product Identity"},
			{Name: "sku", Label: "SKU", Section: "Product Identity"},
			{Name: "brand", Label: "Brand", Section: "Product Identity", Accessor: record.Field("brandId.name")},
			{Name: "category", Label: "Category", Section: "Product Identity"},
			{Name: "price", Label: "Price", Kind: render.Currency, Section: "Inventory"},
			{Name: "stock", Label: "Stock", Kind: render.Number, Section: "Inventory",
				Accessor: record.Compute(func(r record.Record) any { return productStock(r) })},
			{Name: "rating", Label: "Rating", Kind: render.Rating, Section: "Inventory"},
			{Name: "status", Label: "Status", Kind: render.Badge, Section: "Status", Span: 12,
				Options: render.Options{Color: productStatusColor}},
		},
		ViewTitle: func(r record.Record) string { return "Product Details: " + name(r) },

		Label: name,
		Messages: Messages{
			Created: "Product created successfully",
			Updated: "Product updated successfully",
			Deleted: "Product deleted successfully",
		},
	}
}

func productFields(g *Gateway) []form.Field {
	return []form.Field{
		{Name: "name", Label: "Product Name", Placeholder: "Enter product name", Required: true, Span: 6},
		{
			Name: "handle", Label: "Product Handle", Placeholder: "product-handle", Required: true, Span: 6,
			Description: `Unique URL-friendly identifier (e.g., "nike-air-max-90")`,
			Validate: form.Chain(
				form.Required("Product Handle"),
				form.Pattern(productHandle, "Handle can only contain lowercase letters, numbers, and hyphens"),
			),
		},
		{
			Name: "brandId", Label: "Brand", Kind: form.Select, Placeholder: "Search and select brand...",
			Required: true, Span: 6, Searchable: true,
			Loader: g.OptionsFunc("brand"), LoadOnMount: true,
		},
		{
			Name: "price", Label: "Price", Kind: form.Number, Placeholder: "0.00", Required: true, Span: 6,
			Min: form.Float(0), Step: 0.01, DecimalScale: form.Int(2),
			Validate: form.Chain(form.Required("Price"), form.NonNegative("Price cannot be negative")),
		},
		{
			Name: "stockQuantity", Label: "Stock Quantity", Kind: form.Number, Placeholder: "0", Required: true, Span: 6,
			Min: form.Float(0), DecimalScale: form.Int(0),
			Validate: form.Chain(form.Required("Stock Quantity"), form.NonNegative("Stock quantity cannot be negative")),
		},
		{Name: "image", Label: "Product Image", Kind: form.File, Placeholder: "Upload product image", Accept: "image/*", Span: 12},
		{
			Name: "status", Label: "Status", Kind: form.Select, Placeholder: "Select product status",
			Required: true, Default: "ACTIVE", Span: 6, Options: activeInactive,
		},
	}
}

// exportProducts writes Name, SKU, Category, Price, Stock, Rating, Status. Text is
// quoted, numbers are not and default to 0.
func exportProducts(w io.Writer, rows []record.Record) error {
	lines := []string{"Name,SKU,Category,Price,Stock,Rating,Status"}
	for _, r := range rows {
		lines = append(lines, strings.Join([]string{
			table.QuoteCSV(record.String(r["name"])),
			table.QuoteCSV(record.String(r["sku"])),
			table.QuoteCSV(record.String(r["category"])),
			record.String(number(r, "price")),
			record.String(productStock(r)),
			record.String(number(r, "rating")),
			table.QuoteCSV(record.String(r["status"])),
		}, ","))
	}
	_, err := io.WriteString(w, strings.Join(lines, "\n"))
	return err
}
