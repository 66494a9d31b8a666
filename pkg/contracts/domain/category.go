package domain

import (
	"fmt"
	"strings"
)

// Category identifies one of the fixed condition counters carried by every
// attendance record. The numeric value is the index into AttendanceRecord.Counts.
type Category int

const (
	CategoryAsthma Category = iota
	CategoryCOPD
	CategoryPrenatal
	CategoryChildCare
	CategoryPostpartum
	CategoryCardiovascularScreening
	CategoryRehabilitation
	CategoryMentalHealth
	CategorySexualReproductiveHealth
	CategorySmoking
	CategoryAlcoholUse
	CategoryOtherDrugUse

	// NumCategories is the size of the category vocabulary.
	NumCategories = 12
)

// Source column headers. Category headers double as canonical names.
const (
	ColumnEstablishment = "Estabelecimento"
	ColumnRegion        = "Região de Saúde"
	ColumnYear          = "Ano de Competência"
	ColumnMonth         = "Mês de Competência"
)

var categoryNames = [NumCategories]string{
	"Asma",
	"DPOC",
	"Pré-natal",
	"Puericultura",
	"Puerpério (até 42 dias)",
	"Rast. risco cardiovascular",
	"Reabilitação",
	"Saúde mental",
	"Saúde sexual e reprodutiva",
	"Tabagismo",
	"Usuário de álcool",
	"Usuário de outras drogas",
}

// AllCategories returns the full vocabulary in canonical order.
func AllCategories() []Category {
	out := make([]Category, NumCategories)
	for i := range out {
		out[i] = Category(i)
	}
	return out
}

// CategoryNames returns the canonical names in order.
func CategoryNames() []string {
	out := make([]string, NumCategories)
	copy(out, categoryNames[:])
	return out
}

// Valid reports whether c is inside the vocabulary.
func (c Category) Valid() bool {
	return c >= 0 && int(c) < NumCategories
}

func (c Category) String() string {
	if !c.Valid() {
		return fmt.Sprintf("Category(%d)", int(c))
	}
	return categoryNames[c]
}

// MarshalText encodes the category by its canonical name.
func (c Category) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("invalid category %d", int(c))
	}
	return []byte(categoryNames[c]), nil
}

// UnmarshalText decodes a canonical category name.
func (c *Category) UnmarshalText(text []byte) error {
	parsed, err := ParseCategory(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ParseCategory resolves a canonical category name. Surrounding whitespace is
// ignored; matching is otherwise exact.
func ParseCategory(name string) (Category, error) {
	trimmed := strings.TrimSpace(name)
	for i, n := range categoryNames {
		if n == trimmed {
			return Category(i), nil
		}
	}
	return -1, &ValidationError{
		Field:   "category",
		Message: fmt.Sprintf("unknown category %q", name),
		Value:   name,
	}
}

// ParseCategories resolves a list of names. An empty list selects every
// category. Duplicates are collapsed, keeping first-seen order.
func ParseCategories(names []string) ([]Category, error) {
	if len(names) == 0 {
		return AllCategories(), nil
	}
	seen := make(map[Category]bool, len(names))
	out := make([]Category, 0, len(names))
	for _, n := range names {
		c, err := ParseCategory(n)
		if err != nil {
			return nil, err
		}
		if seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out, nil
}
