// Package schema declares the closed set of listing categories, their
// tables, and the columns each table accepts. SQL for listing rows is built
// from these compile-time-known column sets: values are always parameterized
// and column names never come from request input, which keeps partial-update
// semantics without splicing untrusted strings into queries.
//
// Each column declares whether it is scalar or structured. Structured
// columns hold nested documents (amenities, car details, tag lists) and are
// serialized to JSON uniformly by the builders.
package schema

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/swapwithus/listing-service/internal/common"
)

// Category identifies a listing category and its namespace in the object
// store and the images table.
type Category string

const (
	CategoryHome     Category = "home"
	CategoryBook     Category = "book"
	CategoryCaravan  Category = "caravan"
	CategoryClothing Category = "clothing"
)

// ParseCategory maps a request string to a known Category.
func ParseCategory(s string) (Category, error) {
	switch Category(strings.ToLower(s)) {
	case CategoryHome:
		return CategoryHome, nil
	case CategoryBook:
		return CategoryBook, nil
	case CategoryCaravan:
		return CategoryCaravan, nil
	case CategoryClothing:
		return CategoryClothing, nil
	}
	return "", fmt.Errorf("%w: unknown category %q", common.ErrValidation, s)
}

// Table returns the relational table holding listings of this category.
func (c Category) Table() string {
	switch c {
	case CategoryHome:
		return "homes"
	case CategoryBook:
		return "books"
	case CategoryCaravan:
		return "caravans"
	case CategoryClothing:
		return "clothes"
	}
	return ""
}

// Fields carries validated listing field values keyed by column name.
type Fields map[string]any

// Column is one declared column of a listing table.
type Column struct {
	Name string
	// Structured columns are serialized to JSON before persistence.
	Structured bool
}

// tableColumns is the closed (table, column) whitelist. Identity and
// lifecycle columns (listing_id, owner_id, status, timestamps) are handled
// by the builders, not listed here.
var tableColumns = map[Category][]Column{
	CategoryHome: {
		{Name: "title"},
		{Name: "description"},
		{Name: "accommodation_type"},
		{Name: "property_type"},
		{Name: "max_guests"},
		{Name: "bedrooms"},
		{Name: "size_m2"},
		{Name: "surroundings_type"},
		{Name: "country"},
		{Name: "city"},
		{Name: "street_address"},
		{Name: "postal_code"},
		{Name: "latitude"},
		{Name: "longitude"},
		{Name: "privacy_radius"},
		{Name: "house_rules", Structured: true},
		{Name: "amenities", Structured: true},
		{Name: "main_residence"},
		{Name: "open_to_car_swap"},
		{Name: "require_car_swap_match"},
		{Name: "car_details", Structured: true},
	},
	CategoryBook: {
		{Name: "title"},
		{Name: "author"},
		{Name: "description"},
		{Name: "city"},
		{Name: "country"},
		{Name: "exchange_method"},
		{Name: "exchange_mode"},
		{Name: "language"},
		{Name: "format"},
		{Name: "condition"},
		{Name: "publication_year"},
		{Name: "genre_tags", Structured: true},
	},
	CategoryCaravan: {
		{Name: "title"},
		{Name: "description"},
		{Name: "vehicle_type"},
		{Name: "country"},
		{Name: "city"},
		{Name: "max_guests"},
		{Name: "exchange_method"},
		{Name: "tow_requirement"},
		{Name: "drive_license_req"},
		{Name: "year"},
		{Name: "make"},
		{Name: "model"},
		{Name: "condition"},
		{Name: "registration_country"},
		{Name: "amenities", Structured: true},
	},
	CategoryClothing: {
		{Name: "title"},
		{Name: "description"},
		{Name: "clothing_category"},
		{Name: "size"},
		{Name: "condition"},
		{Name: "brand"},
		{Name: "color"},
		{Name: "material"},
		{Name: "city"},
		{Name: "country"},
		{Name: "swap_preferences", Structured: true},
	},
}

// columnsByName caches per-category lookup maps.
var columnsByName = func() map[Category]map[string]Column {
	m := make(map[Category]map[string]Column, len(tableColumns))
	for cat, cols := range tableColumns {
		byName := make(map[string]Column, len(cols))
		for _, c := range cols {
			byName[c.Name] = c
		}
		m[cat] = byName
	}
	return m
}()

// Columns returns the declared column set of a category, in declaration
// order.
func Columns(c Category) []Column {
	return tableColumns[c]
}

// ValidateFields rejects field names outside the category's declared column
// set. Coordinators call this before any side effect so a bad payload never
// triggers uploads that immediately need compensating.
func ValidateFields(cat Category, fields Fields) error {
	byName := columnsByName[cat]
	if byName == nil {
		return fmt.Errorf("%w: unknown category %q", common.ErrValidation, cat)
	}
	for name := range fields {
		if _, ok := byName[name]; !ok {
			return fmt.Errorf("%w: unknown field %q for category %q", common.ErrValidation, name, cat)
		}
	}
	return nil
}

// encodeValue serializes structured column values to JSON and passes scalars
// through untouched.
func encodeValue(col Column, v any) (any, error) {
	if !col.Structured || v == nil {
		return v, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: field %q is not serializable", common.ErrValidation, col.Name)
	}
	return string(b), nil
}

// BuildInsert builds a parameterized INSERT for a new listing row. Unknown
// field names are validation errors; listing_id and owner_id are stamped by
// the coordinator, never taken from the field map.
func BuildInsert(cat Category, listingID, ownerID string, fields Fields) (string, []any, error) {
	byName := columnsByName[cat]
	if byName == nil {
		return "", nil, fmt.Errorf("%w: unknown category %q", common.ErrValidation, cat)
	}
	for name := range fields {
		if _, ok := byName[name]; !ok {
			return "", nil, fmt.Errorf("%w: unknown field %q for category %q", common.ErrValidation, name, cat)
		}
	}

	cols := []string{"listing_id", "owner_id"}
	args := []any{listingID, ownerID}
	for _, col := range tableColumns[cat] {
		v, ok := fields[col.Name]
		if !ok {
			continue
		}
		enc, err := encodeValue(col, v)
		if err != nil {
			return "", nil, err
		}
		cols = append(cols, col.Name)
		args = append(args, enc)
	}

	placeholders := make([]string, len(cols))
	for i := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		cat.Table(), strings.Join(cols, ", "), strings.Join(placeholders, ", "))
	return query, args, nil
}

// BuildUpdate builds a parameterized partial UPDATE for a listing row.
// Only declared columns present in fields are set; updated_at is always
// bumped. The listing_id is the final parameter.
func BuildUpdate(cat Category, listingID string, fields Fields) (string, []any, error) {
	byName := columnsByName[cat]
	if byName == nil {
		return "", nil, fmt.Errorf("%w: unknown category %q", common.ErrValidation, cat)
	}
	for name := range fields {
		if _, ok := byName[name]; !ok {
			return "", nil, fmt.Errorf("%w: unknown field %q for category %q", common.ErrValidation, name, cat)
		}
	}

	var set []string
	var args []any
	for _, col := range tableColumns[cat] {
		v, ok := fields[col.Name]
		if !ok {
			continue
		}
		enc, err := encodeValue(col, v)
		if err != nil {
			return "", nil, err
		}
		args = append(args, enc)
		set = append(set, fmt.Sprintf("%s = $%d", col.Name, len(args)))
	}
	set = append(set, "updated_at = NOW()")
	args = append(args, listingID)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE listing_id = $%d",
		cat.Table(), strings.Join(set, ", "), len(args))
	return query, args, nil
}
