package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// MatchMode combines a rule's conditions.
type MatchMode string

// Match modes.
const (
	MatchAll MatchMode = "all"
	MatchAny MatchMode = "any"
)

// ConditionType discriminates the Condition variants.
type ConditionType string

// Condition variants shared by classification rules and allocation filters.
const (
	ConditionDescription   ConditionType = "description"
	ConditionPayee         ConditionType = "payee"
	ConditionAmount        ConditionType = "amount"
	ConditionDateRange     ConditionType = "date_range"
	ConditionAccount       ConditionType = "account"
	ConditionProvider      ConditionType = "provider"
	ConditionCategoryEmpty ConditionType = "category_empty"
	ConditionCategory      ConditionType = "category"
	ConditionFlow          ConditionType = "flow"
	ConditionTag           ConditionType = "tag"
)

// Operator is the comparison used by text and amount conditions.
type Operator string

// Text operators.
const (
	OpContains   Operator = "contains"
	OpStartsWith Operator = "starts_with"
	OpEquals     Operator = "equals"
)

// Amount operators.
const (
	OpEq      Operator = "eq"
	OpGt      Operator = "gt"
	OpGte     Operator = "gte"
	OpLt      Operator = "lt"
	OpLte     Operator = "lte"
	OpBetween Operator = "between"
)

// CategoryLevel selects the slot checked by a category_empty condition.
type CategoryLevel string

// Category levels.
const (
	LevelCategory    CategoryLevel = "category"
	LevelSubCategory CategoryLevel = "sub_category"
)

// Condition is a tagged variant: Type selects which payload fields are read.
//
//	description, payee: Operator (text), Value
//	amount:             Operator (amount), Amount, Amount2 (upper bound for between)
//	date_range:         From, To (inclusive, either may be nil)
//	account:            IDs (account ids)
//	provider:           Values (provider names)
//	category_empty:     Level
//	category:           CategoryID, SubCategoryID (optional)
//	flow:               Flows
//	tag:                TagID
type Condition struct {
	Amount        *decimal.Decimal `json:"amount,omitempty" yaml:"amount,omitempty"`
	Amount2       *decimal.Decimal `json:"amount2,omitempty" yaml:"amount2,omitempty"`
	From          *time.Time       `json:"from,omitempty" yaml:"from,omitempty"`
	To            *time.Time       `json:"to,omitempty" yaml:"to,omitempty"`
	Type          ConditionType    `json:"type" yaml:"type"`
	Operator      Operator         `json:"operator,omitempty" yaml:"operator,omitempty"`
	Value         string           `json:"value,omitempty" yaml:"value,omitempty"`
	Level         CategoryLevel    `json:"level,omitempty" yaml:"level,omitempty"`
	CategoryID    string           `json:"category_id,omitempty" yaml:"category_id,omitempty"`
	SubCategoryID string           `json:"sub_category_id,omitempty" yaml:"sub_category_id,omitempty"`
	TagID         string           `json:"tag_id,omitempty" yaml:"tag_id,omitempty"`
	IDs           []string         `json:"ids,omitempty" yaml:"ids,omitempty"`
	Values        []string         `json:"values,omitempty" yaml:"values,omitempty"`
	Flows         []FlowType       `json:"flows,omitempty" yaml:"flows,omitempty"`
}

// ActionType discriminates the Action variants.
type ActionType string

// Classification actions.
const (
	ActionSetCategory  ActionType = "set_category"
	ActionAddTags      ActionType = "add_tags"
	ActionSetPayee     ActionType = "set_payee"
	ActionMarkTransfer ActionType = "mark_transfer"
	ActionPrependMemo  ActionType = "prepend_memo"
	ActionClearNeedsFX ActionType = "clear_needs_fx"
)

// FieldKey names the transaction field an action writes. Only one rule may
// write a given field of a given transaction per run.
type FieldKey string

// Field keys.
const (
	FieldCategory FieldKey = "category"
	FieldTags     FieldKey = "tags"
	FieldPayee    FieldKey = "payee"
	FieldFlow     FieldKey = "flow"
	FieldMemo     FieldKey = "memo"
	FieldNeedsFX  FieldKey = "needsFx"
)

// Action is a tagged variant: Type selects which payload fields are read.
//
//	set_category:   CategoryID, SubCategoryID (optional)
//	add_tags:       TagIDs
//	set_payee:      PayeeName
//	prepend_memo:   Text
//	mark_transfer, clear_needs_fx: no payload
type Action struct {
	Type          ActionType `json:"type" yaml:"type"`
	CategoryID    string     `json:"category_id,omitempty" yaml:"category_id,omitempty"`
	SubCategoryID string     `json:"sub_category_id,omitempty" yaml:"sub_category_id,omitempty"`
	PayeeName     string     `json:"payee_name,omitempty" yaml:"payee_name,omitempty"`
	Text          string     `json:"text,omitempty" yaml:"text,omitempty"`
	TagIDs        []string   `json:"tag_ids,omitempty" yaml:"tag_ids,omitempty"`
}

// Field returns the lock key for the action, or "" for unknown action types.
func (a Action) Field() FieldKey {
	switch a.Type {
	case ActionSetCategory:
		return FieldCategory
	case ActionAddTags:
		return FieldTags
	case ActionSetPayee:
		return FieldPayee
	case ActionMarkTransfer:
		return FieldFlow
	case ActionPrependMemo:
		return FieldMemo
	case ActionClearNeedsFX:
		return FieldNeedsFX
	}
	return ""
}

// ClassificationRule applies Actions to transactions matching Conditions.
// Lower Priority runs first.
type ClassificationRule struct {
	CreatedAt  time.Time   `json:"created_at" yaml:"-"`
	UpdatedAt  time.Time   `json:"updated_at" yaml:"-"`
	ID         string      `json:"id" yaml:"id"`
	Name       string      `json:"name" yaml:"name"`
	Match      MatchMode   `json:"match" yaml:"match"`
	Conditions []Condition `json:"conditions,omitempty" yaml:"conditions,omitempty"`
	Actions    []Action    `json:"actions,omitempty" yaml:"actions,omitempty"`
	Priority   int         `json:"priority" yaml:"priority"`
	Enabled    bool        `json:"enabled" yaml:"enabled"`
	Archived   bool        `json:"archived,omitempty" yaml:"archived,omitempty"`
}

// IsActive reports whether the rule takes part in evaluation.
func (r ClassificationRule) IsActive() bool {
	return r.Enabled && !r.Archived
}
