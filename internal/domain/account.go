/**
 * @description
 * This file defines the account model owned by the ledger store. Accounts are
 * the only entities whose balance is ever mutated, and that mutation happens
 * exclusively through the store's atomic conditional-transfer primitive.
 *
 * @notes
 * - Balances and amounts are fixed-point decimals (shopspring/decimal) to
 *   avoid floating-point inaccuracies with financial data.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountStatus enumerates the lifecycle states of an account. Only ACTIVE
// accounts can be debited; CLOSED accounts can no longer be credited.
type AccountStatus string

const (
	AccountActive AccountStatus = "ACTIVE"
	AccountFrozen AccountStatus = "FROZEN"
	AccountClosed AccountStatus = "CLOSED"
)

// Account represents a customer account row in the ledger.
// Invariant: Balance is never negative.
type Account struct {
	ID        uuid.UUID       `json:"id"`
	UserID    uuid.UUID       `json:"user_id"`
	Currency  string          `json:"currency"`
	Balance   decimal.Decimal `json:"balance"`
	Status    AccountStatus   `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Role values carried in the JWT issued by the auth-service.
const (
	RoleCustomer    = "CUSTOMER"
	RoleAdmin       = "ADMIN"
	RoleRiskOfficer = "RISK_OFFICER"
)

// Caller identifies the authenticated principal making a request.
type Caller struct {
	UserID uuid.UUID
	Role   string
}

// IsPrivileged reports whether the caller may act on accounts and
// transactions they do not own.
func (c Caller) IsPrivileged() bool {
	return c.Role == RoleAdmin || c.Role == RoleRiskOfficer
}
