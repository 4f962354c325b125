package model

// Category classifies accounts in the chart of accounts.
type Category string

const (
	CategoryAsset     Category = "asset"
	CategoryLiability Category = "liability"
	CategoryEquity    Category = "equity"
	CategoryRevenue   Category = "revenue"
	CategoryExpense   Category = "expense"
)

// Valid reports whether c is one of the five known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryAsset, CategoryLiability, CategoryEquity, CategoryRevenue, CategoryExpense:
		return true
	}
	return false
}

// DebitNormal reports whether accounts of this category grow on the debit side.
func (c Category) DebitNormal() bool {
	return c == CategoryAsset || c == CategoryExpense
}

// Account is a node in a company's chart of accounts.
type Account struct {
	ID        string
	CompanyID string
	Code      string // unique per company, e.g. "1101"
	Name      string
	Category  Category
	IsActive  bool
}
