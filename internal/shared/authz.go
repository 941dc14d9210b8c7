package shared

// Storefront and admin console permissions declared for RBAC.
const (
	// Quote permissions
	PermQuoteView    = "quotes.quote.view"
	PermQuoteEdit    = "quotes.quote.edit"
	PermQuoteConvert = "quotes.quote.convert"

	// Inventory permissions
	PermInventoryView = "inventory.product.view"
	PermInventoryEdit = "inventory.product.edit"

	// Sales reporting
	PermSalesView = "sales.report.view"

	// Operations
	PermJobsView = "ops.jobs.view"
)

// Roles recognised by the console.
const (
	RoleAdmin    = "admin"
	RoleStaff    = "staff"
	RoleCustomer = "customer"
)

// QuoteScopes lists all permissions related to the quotes module.
func QuoteScopes() []string {
	return []string{PermQuoteView, PermQuoteEdit, PermQuoteConvert}
}

// InventoryScopes lists all permissions related to the inventory module.
func InventoryScopes() []string {
	return []string{PermInventoryView, PermInventoryEdit}
}
