// Package flow derives the semantic direction of a transaction.
package flow

import (
	"slices"
	"strings"
	"unicode"

	"github.com/Veraticus/tithe/internal/model"
)

// maxDepth bounds the parent walk so a cyclic taxonomy cannot loop forever.
const maxDepth = 16

// labelKeywords maps whole words of a taxonomy label to flow types. Order
// matters: "interest income" must resolve to interest before income is tried.
var labelKeywords = []struct {
	flow     model.FlowType
	keywords []string
}{
	{model.FlowInterest, []string{"interest"}},
	{model.FlowFees, []string{"fee", "fees", "charge", "charges"}},
	{model.FlowTransfer, []string{"transfer", "transfers"}},
	{model.FlowIn, []string{"income", "salary", "salaries", "wages", "revenue", "earnings"}},
	{model.FlowOut, []string{"expense", "expenses", "spending", "bill", "bills"}},
}

// Classify returns the flow type of txn. An explicit override wins, then the
// label of the category's root taxonomy node, then the sign of the amount.
func Classify(txn model.Transaction, categories map[string]model.Category) model.FlowType {
	if txn.FlowOverride != nil && txn.FlowOverride.IsValid() {
		return *txn.FlowOverride
	}

	if txn.CategoryID != "" {
		if root, ok := rootNode(txn.CategoryID, categories); ok {
			if f, ok := flowForLabel(label(root)); ok {
				return f
			}
		}
	}

	if txn.Amount.IsNegative() {
		return model.FlowOut
	}
	return model.FlowIn
}

// rootNode walks ParentID links up to the top-level taxonomy node.
func rootNode(id string, categories map[string]model.Category) (model.Category, bool) {
	node, ok := categories[id]
	if !ok {
		return model.Category{}, false
	}
	for i := 0; i < maxDepth && node.ParentID != ""; i++ {
		parent, ok := categories[node.ParentID]
		if !ok {
			break
		}
		node = parent
	}
	return node, true
}

func label(c model.Category) string {
	if c.Kind != "" {
		return string(c.Kind)
	}
	return c.Name
}

// flowForLabel maps a semantic label (a category kind or node name) to a flow.
// Names match on whole words only, so "Hobbies & Interests" is not interest.
func flowForLabel(l string) (model.FlowType, bool) {
	l = strings.ToLower(strings.TrimSpace(l))
	if l == "" {
		return "", false
	}
	switch model.CategoryKind(l) {
	case model.CategoryKindInterest:
		return model.FlowInterest, true
	case model.CategoryKindFees:
		return model.FlowFees, true
	case model.CategoryKindTransfer:
		return model.FlowTransfer, true
	case model.CategoryKindIncome:
		return model.FlowIn, true
	case model.CategoryKindExpense:
		return model.FlowOut, true
	}
	words := strings.FieldsFunc(l, func(r rune) bool { return !unicode.IsLetter(r) })
	for _, entry := range labelKeywords {
		for _, w := range words {
			if slices.Contains(entry.keywords, w) {
				return entry.flow, true
			}
		}
	}
	return "", false
}
