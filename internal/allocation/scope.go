package allocation

import (
	"slices"
	"strings"

	"github.com/Veraticus/tithe/internal/model"
	"github.com/Veraticus/tithe/internal/predicate"
)

// inScope tests a rule's base scope. Unknown scope types match nothing.
func inScope(scope model.BaseScope, txn model.Transaction, lookup predicate.Lookup) bool {
	switch scope.Type {
	case model.ScopeAllIncome:
		return true
	case model.ScopeCategories:
		return txn.CategoryID != "" && slices.Contains(scope.IDs, txn.CategoryID)
	case model.ScopeSubCategories:
		return txn.SubCategoryID != "" && slices.Contains(scope.IDs, txn.SubCategoryID)
	case model.ScopePayees:
		return txn.PayeeID != "" && slices.Contains(scope.IDs, txn.PayeeID)
	case model.ScopeAccounts:
		return txn.AccountID != "" && slices.Contains(scope.IDs, txn.AccountID)
	case model.ScopeProviders:
		provider := strings.TrimSpace(lookup.Provider(txn))
		if provider == "" {
			return false
		}
		return slices.ContainsFunc(scope.IDs, func(p string) bool {
			return strings.EqualFold(strings.TrimSpace(p), provider)
		})
	}
	return false
}
