package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ScopeType discriminates the base scope of an allocation rule.
type ScopeType string

// Base scopes.
const (
	ScopeAllIncome     ScopeType = "all_income"
	ScopeCategories    ScopeType = "categories"
	ScopeSubCategories ScopeType = "sub_categories"
	ScopePayees        ScopeType = "payees"
	ScopeAccounts      ScopeType = "accounts"
	ScopeProviders     ScopeType = "providers"
)

// BaseScope is the coarse eligibility filter of an allocation rule. IDs holds
// entity ids, or provider names for ScopeProviders; it is ignored for
// ScopeAllIncome.
type BaseScope struct {
	Type ScopeType `json:"type" yaml:"type"`
	IDs  []string  `json:"ids,omitempty" yaml:"ids,omitempty"`
}

// TargetType is where a purpose's share is earmarked.
type TargetType string

// Purpose targets.
const (
	TargetAccount    TargetType = "account"
	TargetCollection TargetType = "collection"
	TargetLabel      TargetType = "label"
)

// Purpose is a named virtual bucket receiving Percentage of an inflow.
type Purpose struct {
	ID          string          `json:"id" yaml:"id"`
	Name        string          `json:"name" yaml:"name"`
	TargetType  TargetType      `json:"target_type" yaml:"target_type"`
	TargetID    string          `json:"target_id,omitempty" yaml:"target_id,omitempty"`
	TargetLabel string          `json:"target_label,omitempty" yaml:"target_label,omitempty"`
	Percentage  decimal.Decimal `json:"percentage" yaml:"percentage"`
}

// AllocationRule splits matching inflows across its purposes.
type AllocationRule struct {
	CreatedAt      time.Time       `json:"created_at" yaml:"-"`
	UpdatedAt      time.Time       `json:"updated_at" yaml:"-"`
	ID             string          `json:"id" yaml:"id"`
	Name           string          `json:"name" yaml:"name"`
	Scope          BaseScope       `json:"scope" yaml:"scope"`
	Filters        []Condition     `json:"filters,omitempty" yaml:"filters,omitempty"`
	Purposes       []Purpose       `json:"purposes" yaml:"purposes"`
	Tolerance      decimal.Decimal `json:"tolerance" yaml:"tolerance"`
	Priority       int             `json:"priority" yaml:"priority"`
	Enabled        bool            `json:"enabled" yaml:"enabled"`
	Archived       bool            `json:"archived,omitempty" yaml:"archived,omitempty"`
	AllowOverwrite bool            `json:"allow_overwrite,omitempty" yaml:"allow_overwrite,omitempty"`
}

// TotalPercentage sums the purpose percentages.
func (r AllocationRule) TotalPercentage() decimal.Decimal {
	total := decimal.Zero
	for _, p := range r.Purposes {
		total = total.Add(p.Percentage)
	}
	return total
}

// AllocationMode records how an allocation was produced.
type AllocationMode string

// Allocation modes.
const (
	AllocationAuto        AllocationMode = "auto"
	AllocationManual      AllocationMode = "manual"
	AllocationRetroactive AllocationMode = "retroactive"
)

// TransactionAllocation is one purpose's share of one transaction.
type TransactionAllocation struct {
	AppliedAt      time.Time       `json:"applied_at"`
	ID             string          `json:"id"`
	TransactionID  string          `json:"transaction_id"`
	RuleID         string          `json:"rule_id"`
	PurposeID      string          `json:"purpose_id"`
	NativeCurrency string          `json:"native_currency"`
	BaseCurrency   string          `json:"base_currency"`
	Mode           AllocationMode  `json:"mode"`
	Percentage     decimal.Decimal `json:"percentage"`
	NativeAmount   decimal.Decimal `json:"native_amount"`
	BaseAmount     decimal.Decimal `json:"base_amount"`
}
