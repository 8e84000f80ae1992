package model

import "github.com/shopspring/decimal"

// CategoryKind is the semantic label of a category taxonomy node.
type CategoryKind string

// Category kinds understood by the flow classifier.
const (
	CategoryKindIncome   CategoryKind = "income"
	CategoryKindExpense  CategoryKind = "expense"
	CategoryKindTransfer CategoryKind = "transfer"
	CategoryKindInterest CategoryKind = "interest"
	CategoryKindFees     CategoryKind = "fees"
)

// Category is a node in the category taxonomy. Top-level nodes have no ParentID.
type Category struct {
	ID       string       `json:"id" yaml:"id"`
	Name     string       `json:"name" yaml:"name"`
	ParentID string       `json:"parent_id,omitempty" yaml:"parent_id,omitempty"`
	Kind     CategoryKind `json:"kind,omitempty" yaml:"kind,omitempty"`
}

// SubCategory refines a category.
type SubCategory struct {
	ID         string `json:"id" yaml:"id"`
	CategoryID string `json:"category_id" yaml:"category_id"`
	Name       string `json:"name" yaml:"name"`
}

// Account is a ledger account held at a provider.
type Account struct {
	ID            string   `json:"id" yaml:"id"`
	Name          string   `json:"name" yaml:"name"`
	Provider      string   `json:"provider,omitempty" yaml:"provider,omitempty"`
	Currency      string   `json:"currency,omitempty" yaml:"currency,omitempty"`
	CollectionIDs []string `json:"collection_ids,omitempty" yaml:"collection_ids,omitempty"`
}

// Collection groups accounts, for example "Savings pots".
type Collection struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// Payee is a counterparty of a transaction.
type Payee struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// Tag is a free-form label attached to transactions.
type Tag struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// ExchangeRate converts one unit of Currency into the base currency.
type ExchangeRate struct {
	Currency   string          `json:"currency" yaml:"currency"`
	RateToBase decimal.Decimal `json:"rate_to_base" yaml:"rate_to_base"`
}

// Settings holds ledger-wide configuration consumed by the engines.
type Settings struct {
	BaseCurrency  string         `json:"base_currency" yaml:"base_currency"`
	ExchangeRates []ExchangeRate `json:"exchange_rates,omitempty" yaml:"exchange_rates,omitempty"`
}
