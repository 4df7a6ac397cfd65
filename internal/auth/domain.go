package auth

import "time"

// User is an application account.
type User struct {
	ID           int64
	Email        string
	FullName     string
	PasswordHash string
	Role         string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Roles known to the application.
const (
	RoleAdmin      = "admin"
	RoleManager    = "manager"
	RoleAssistant  = "assistant"
	RoleAccountant = "accountant"
)

// Permission strings checked by route middleware.
const (
	PermProspectView  = "crm.prospect.view"
	PermProspectEdit  = "crm.prospect.edit"
	PermClientView    = "crm.client.view"
	PermClientEdit    = "crm.client.edit"
	PermQuoteView     = "quote.view"
	PermQuoteEdit     = "quote.edit"
	PermInvoiceView   = "invoice.view"
	PermInvoiceEdit   = "invoice.edit"
	PermBillView      = "billing.bill.view"
	PermBillEdit      = "billing.bill.edit"
	PermExpenseView   = "expense.view"
	PermExpenseEdit   = "expense.edit"
	PermAnalyticsView = "analytics.view"
	// PermMarginView gates every margin figure in the API. The pricing
	// calculator itself never sees this flag: the check happens at the
	// call site, before margins are computed at all.
	PermMarginView = "finance.margin.view"
	PermUserAdmin  = "user.admin"
)

var rolePermissions = map[string][]string{
	RoleAdmin: {
		PermProspectView, PermProspectEdit, PermClientView, PermClientEdit,
		PermQuoteView, PermQuoteEdit, PermInvoiceView, PermInvoiceEdit,
		PermBillView, PermBillEdit, PermExpenseView, PermExpenseEdit,
		PermAnalyticsView, PermMarginView, PermUserAdmin,
	},
	RoleManager: {
		PermProspectView, PermProspectEdit, PermClientView, PermClientEdit,
		PermQuoteView, PermQuoteEdit, PermInvoiceView, PermInvoiceEdit,
		PermBillView, PermBillEdit, PermExpenseView, PermExpenseEdit,
		PermAnalyticsView, PermMarginView,
	},
	RoleAssistant: {
		PermProspectView, PermProspectEdit, PermClientView,
		PermQuoteView, PermQuoteEdit, PermInvoiceView,
		PermExpenseView, PermExpenseEdit,
	},
	RoleAccountant: {
		PermClientView, PermInvoiceView, PermInvoiceEdit,
		PermBillView, PermBillEdit, PermExpenseView, PermExpenseEdit,
		PermAnalyticsView,
	},
}

// PermissionsForRole returns the permission set granted to a role.
func PermissionsForRole(role string) []string {
	perms := rolePermissions[role]
	out := make([]string, len(perms))
	copy(out, perms)
	return out
}
