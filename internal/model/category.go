package model

import (
	"fmt"
	"strings"
)

// Category is the closed set of top-level transaction categories.
type Category int

const (
	CategoryUnspecified Category = iota
	CategoryIncome
	CategoryExpense
	CategoryTransfer
)

var categoryNames = map[Category]string{
	CategoryUnspecified: "unspecified",
	CategoryIncome:      "income",
	CategoryExpense:     "expense",
	CategoryTransfer:    "transfer",
}

func (c Category) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return fmt.Sprintf("category(%d)", int(c))
}

// ParseCategory maps an upstream category code onto the closed enumeration.
// Parsing happens once at the data boundary; analysis code only sees Category values.
func ParseCategory(code string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(code)) {
	case "income":
		return CategoryIncome, nil
	case "expense", "expenses":
		return CategoryExpense, nil
	case "transfer", "transfers":
		return CategoryTransfer, nil
	default:
		return CategoryUnspecified, fmt.Errorf("unknown category code %q", code)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (c Category) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Category) UnmarshalText(text []byte) error {
	if len(text) == 0 || string(text) == "unspecified" {
		*c = CategoryUnspecified
		return nil
	}
	parsed, err := ParseCategory(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// IsCashflow reports whether the category contributes to income/expense totals.
func (c Category) IsCashflow() bool {
	return c == CategoryIncome || c == CategoryExpense
}
