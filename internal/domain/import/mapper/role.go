// Package mapper decides which statement column carries the date, amount,
// currency and title of each transaction.
package mapper

import "fmt"

// Role is the semantic meaning a column may carry.
type Role int

const (
	RoleDate Role = iota
	RoleAmount
	RoleCurrency
	RoleTitle
)

// Roles lists every role in scoring order.
var Roles = []Role{RoleDate, RoleAmount, RoleCurrency, RoleTitle}

func (r Role) String() string {
	switch r {
	case RoleDate:
		return "DATE"
	case RoleAmount:
		return "AMOUNT"
	case RoleCurrency:
		return "CURRENCY"
	case RoleTitle:
		return "TITLE"
	}
	return fmt.Sprintf("Role(%d)", int(r))
}

// MarshalText encodes the role by name.
func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// RoleMapping is the column choice for one role. Primary is empty when the
// role is unmapped.
type RoleMapping struct {
	Primary   string   `json:"primary,omitempty"`
	Score     int      `json:"score"`
	Fallbacks []string `json:"fallbacks,omitempty"`
}

// Mapped reports whether a primary column was chosen.
func (m RoleMapping) Mapped() bool {
	return m.Primary != ""
}

// SplitAmount names separate debit and credit columns when the statement
// reports money out and money in as two unsigned columns.
type SplitAmount struct {
	Debit  string `json:"debit"`
	Credit string `json:"credit"`
}

// FieldMapping is the outcome of mapping one table.
type FieldMapping struct {
	Date       RoleMapping  `json:"date"`
	Amount     RoleMapping  `json:"amount"`
	Currency   RoleMapping  `json:"currency"`
	Title      RoleMapping  `json:"title"`
	Split      *SplitAmount `json:"split,omitempty"`
	Confidence int          `json:"confidence"`
}

// For returns the mapping of a role.
func (m FieldMapping) For(r Role) RoleMapping {
	switch r {
	case RoleDate:
		return m.Date
	case RoleAmount:
		return m.Amount
	case RoleCurrency:
		return m.Currency
	case RoleTitle:
		return m.Title
	}
	return RoleMapping{}
}

// Missing returns the required roles left unmapped, in role order.
func (m FieldMapping) Missing() []Role {
	var missing []Role
	if !m.Date.Mapped() {
		missing = append(missing, RoleDate)
	}
	if !m.Amount.Mapped() {
		missing = append(missing, RoleAmount)
	}
	return missing
}

func (m *FieldMapping) set(r Role, rm RoleMapping) {
	switch r {
	case RoleDate:
		m.Date = rm
	case RoleAmount:
		m.Amount = rm
	case RoleCurrency:
		m.Currency = rm
	case RoleTitle:
		m.Title = rm
	}
}
