package accounts

import "github.com/cleared-dev/taxledger/internal/model"

// DefaultChart returns the default chart of accounts for a business type.
// "trading" adds merchandise inventory; "services" drops cost of goods sold.
func DefaultChart(businessType string) []model.Account {
	chart := generalChart()
	switch businessType {
	case "trading":
		inv := model.Account{Code: "1301", Name: "Merchandise Inventory", Category: model.CategoryAsset, IsActive: true}
		chart = append(chart[:3], append([]model.Account{inv}, chart[3:]...)...)
	case "services":
		out := chart[:0]
		for _, a := range chart {
			if a.Code != "5101" {
				out = append(out, a)
			}
		}
		chart = out
	}
	return chart
}

func generalChart() []model.Account {
	return []model.Account{
		{Code: "1101", Name: "Accounts Receivable", Category: model.CategoryAsset, IsActive: true},
		{Code: "1111", Name: "Cash in Bank", Category: model.CategoryAsset, IsActive: true},
		{Code: "1150", Name: "Input VAT", Category: model.CategoryAsset, IsActive: true},
		{Code: "2101", Name: "Accounts Payable", Category: model.CategoryLiability, IsActive: true},
		{Code: "2201", Name: "Output VAT Payable", Category: model.CategoryLiability, IsActive: true},
		{Code: "3101", Name: "Share Capital", Category: model.CategoryEquity, IsActive: true},
		{Code: "3351", Name: "Retained Earnings", Category: model.CategoryEquity, IsActive: true},
		{Code: "4101", Name: "Sales Revenue", Category: model.CategoryRevenue, IsActive: true},
		{Code: "4102", Name: "Service Revenue", Category: model.CategoryRevenue, IsActive: true},
		{Code: "5101", Name: "Cost of Goods Sold", Category: model.CategoryExpense, IsActive: true},
		{Code: "6101", Name: "Rent Expense", Category: model.CategoryExpense, IsActive: true},
		{Code: "6102", Name: "Office Supplies", Category: model.CategoryExpense, IsActive: true},
		{Code: "6103", Name: "Travel Expense", Category: model.CategoryExpense, IsActive: true},
		{Code: "6104", Name: "Utilities", Category: model.CategoryExpense, IsActive: true},
		{Code: "6105", Name: "Professional Fees", Category: model.CategoryExpense, IsActive: true},
		{Code: "6106", Name: "Advertising", Category: model.CategoryExpense, IsActive: true},
		{Code: "6107", Name: "Freight", Category: model.CategoryExpense, IsActive: true},
		{Code: "6108", Name: "Software Subscriptions", Category: model.CategoryExpense, IsActive: true},
		{Code: "6199", Name: "Miscellaneous Expense", Category: model.CategoryExpense, IsActive: true},
	}
}
