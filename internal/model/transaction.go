// Package model defines the ledger records, rule shapes and run reports
// shared by the classification and allocation engines.
package model

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// Transaction represents a single ledger entry in its native currency.
type Transaction struct {
	Date          time.Time         `json:"date" yaml:"date"`
	FlowOverride  *FlowType         `json:"flow_override,omitempty" yaml:"flow_override,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	ID            string            `json:"id" yaml:"id"`
	AccountID     string            `json:"account_id" yaml:"account_id"`
	Currency      string            `json:"currency" yaml:"currency"`
	CategoryID    string            `json:"category_id,omitempty" yaml:"category_id,omitempty"`
	SubCategoryID string            `json:"sub_category_id,omitempty" yaml:"sub_category_id,omitempty"`
	PayeeID       string            `json:"payee_id,omitempty" yaml:"payee_id,omitempty"`
	Description   string            `json:"description" yaml:"description"`
	Memo          string            `json:"memo,omitempty" yaml:"memo,omitempty"`
	TagIDs        []string          `json:"tag_ids,omitempty" yaml:"tag_ids,omitempty"`
	Amount        decimal.Decimal   `json:"amount" yaml:"amount"`
	NeedsFX       bool              `json:"needs_fx,omitempty" yaml:"needs_fx,omitempty"`
}

// Clone returns a deep copy so callers can mutate tags, metadata and the
// flow override without touching the original.
func (t Transaction) Clone() Transaction {
	c := t
	c.TagIDs = slices.Clone(t.TagIDs)
	if t.Metadata != nil {
		c.Metadata = make(map[string]string, len(t.Metadata))
		for k, v := range t.Metadata {
			c.Metadata[k] = v
		}
	}
	if t.FlowOverride != nil {
		f := *t.FlowOverride
		c.FlowOverride = &f
	}
	return c
}

// HasTag reports whether the transaction carries the given tag.
func (t Transaction) HasTag(tagID string) bool {
	return slices.Contains(t.TagIDs, tagID)
}
