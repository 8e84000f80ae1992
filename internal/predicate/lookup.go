// Package predicate evaluates rule conditions against transactions. It is
// shared by the classification rule engine and the allocation engine's
// filter stage.
package predicate

import "github.com/Veraticus/tithe/internal/model"

// Lookup holds the reference data conditions resolve ids against. It is
// built once per run so evaluation is pure map access.
type Lookup struct {
	Accounts      map[string]model.Account
	Payees        map[string]model.Payee
	Categories    map[string]model.Category
	SubCategories map[string]model.SubCategory
}

// NewLookup indexes reference data by id.
func NewLookup(accounts []model.Account, payees []model.Payee, categories []model.Category, subCategories []model.SubCategory) Lookup {
	l := Lookup{
		Accounts:      make(map[string]model.Account, len(accounts)),
		Payees:        make(map[string]model.Payee, len(payees)),
		Categories:    make(map[string]model.Category, len(categories)),
		SubCategories: make(map[string]model.SubCategory, len(subCategories)),
	}
	for _, a := range accounts {
		l.Accounts[a.ID] = a
	}
	for _, p := range payees {
		l.Payees[p.ID] = p
	}
	for _, c := range categories {
		l.Categories[c.ID] = c
	}
	for _, s := range subCategories {
		l.SubCategories[s.ID] = s
	}
	return l
}

// Provider returns the provider of the transaction's account.
func (l Lookup) Provider(txn model.Transaction) string {
	return l.Accounts[txn.AccountID].Provider
}

// PayeeName returns the name of the transaction's payee.
func (l Lookup) PayeeName(txn model.Transaction) string {
	return l.Payees[txn.PayeeID].Name
}

// SubCategoryBelongs reports whether subCategoryID is a child of categoryID.
func (l Lookup) SubCategoryBelongs(subCategoryID, categoryID string) bool {
	sub, ok := l.SubCategories[subCategoryID]
	return ok && sub.CategoryID == categoryID
}
