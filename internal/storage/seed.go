package storage

import "smartfinance/internal/core"

// DefaultCategories is the global category list inserted on first start.
// Seeding is best effort: a failure is logged by the caller and the
// service keeps running.
func DefaultCategories() []core.Category {
	return []core.Category{
		// Expense categories
		{Name: "Food & Dining", Type: core.Expense, Icon: "🍔", Color: "#EF4444"},
		{Name: "Transportation", Type: core.Expense, Icon: "🚗", Color: "#F59E0B"},
		{Name: "Shopping", Type: core.Expense, Icon: "🛍️", Color: "#EC4899"},
		{Name: "Entertainment", Type: core.Expense, Icon: "🎬", Color: "#8B5CF6"},
		{Name: "Bills & Utilities", Type: core.Expense, Icon: "💡", Color: "#6366F1"},
		{Name: "Healthcare", Type: core.Expense, Icon: "🏥", Color: "#14B8A6"},
		{Name: "Education", Type: core.Expense, Icon: "📚", Color: "#0EA5E9"},
		{Name: "Travel", Type: core.Expense, Icon: "✈️", Color: "#F97316"},
		{Name: "Groceries", Type: core.Expense, Icon: "🛒", Color: "#22C55E"},
		{Name: "Other Expense", Type: core.Expense, Icon: "📦", Color: "#6B7280"},

		// Income categories
		{Name: "Salary", Type: core.Income, Icon: "💼", Color: "#10B981"},
		{Name: "Freelance", Type: core.Income, Icon: "💻", Color: "#06B6D4"},
		{Name: "Investments", Type: core.Income, Icon: "📈", Color: "#8B5CF6"},
		{Name: "Gifts", Type: core.Income, Icon: "🎁", Color: "#F43F5E"},
		{Name: "Other Income", Type: core.Income, Icon: "💰", Color: "#84CC16"},
	}
}
