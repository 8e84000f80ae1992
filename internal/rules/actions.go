package rules

import (
	"strings"

	"github.com/Veraticus/tithe/internal/model"
	"github.com/Veraticus/tithe/internal/predicate"
)

// outcome reports whether an action took effect and whether the value moved.
// Re-applying an action to its own result is applied but not changed.
type outcome struct {
	applied bool
	changed bool
}

// run holds the state scoped to one evaluation call.
type run struct {
	lookup    predicate.Lookup
	locks     map[string]map[model.FieldKey]struct{}
	payees    map[string]model.Payee
	newPayees []model.Payee
}

func newRun(lookup predicate.Lookup) *run {
	return &run{
		lookup: lookup,
		locks:  make(map[string]map[model.FieldKey]struct{}),
		payees: payeeIndex(lookup.Payees),
	}
}

func (r *run) locked(txnID string, field model.FieldKey) bool {
	_, ok := r.locks[txnID][field]
	return ok
}

func (r *run) lock(txnID string, field model.FieldKey) {
	fields, ok := r.locks[txnID]
	if !ok {
		fields = make(map[model.FieldKey]struct{})
		r.locks[txnID] = fields
	}
	fields[field] = struct{}{}
}

func (r *run) apply(a model.Action, txn *model.Transaction) outcome {
	switch a.Type {
	case model.ActionSetCategory:
		return r.setCategory(a, txn)
	case model.ActionAddTags:
		return addTags(a.TagIDs, txn)
	case model.ActionSetPayee:
		return r.setPayee(a.PayeeName, txn)
	case model.ActionMarkTransfer:
		return markTransfer(txn)
	case model.ActionPrependMemo:
		return prependMemo(a.Text, txn)
	case model.ActionClearNeedsFX:
		changed := txn.NeedsFX
		txn.NeedsFX = false
		return outcome{applied: true, changed: changed}
	}
	return outcome{}
}

// setCategory assigns the category and, when it belongs to it, the
// sub-category. A sub-category from another category is dropped while the
// category part still applies.
func (r *run) setCategory(a model.Action, txn *model.Transaction) outcome {
	if _, ok := r.lookup.Categories[a.CategoryID]; !ok {
		return outcome{}
	}

	sub := a.SubCategoryID
	if sub != "" && !r.lookup.SubCategoryBelongs(sub, a.CategoryID) {
		sub = ""
	}
	if sub == "" && txn.CategoryID == a.CategoryID {
		sub = txn.SubCategoryID
	}

	changed := txn.CategoryID != a.CategoryID || txn.SubCategoryID != sub
	txn.CategoryID = a.CategoryID
	txn.SubCategoryID = sub
	return outcome{applied: true, changed: changed}
}

func addTags(tagIDs []string, txn *model.Transaction) outcome {
	applied := false
	changed := false
	for _, id := range tagIDs {
		if strings.TrimSpace(id) == "" {
			continue
		}
		applied = true
		if !txn.HasTag(id) {
			txn.TagIDs = append(txn.TagIDs, id)
			changed = true
		}
	}
	return outcome{applied: applied, changed: changed}
}

// setPayee resolves name against existing payees, minting one when absent.
func (r *run) setPayee(name string, txn *model.Transaction) outcome {
	name = strings.TrimSpace(name)
	if name == "" {
		return outcome{}
	}

	key := strings.ToLower(name)
	payee, ok := r.payees[key]
	if !ok {
		payee = model.Payee{ID: model.PayeeID(name), Name: name}
		r.payees[key] = payee
		r.newPayees = append(r.newPayees, payee)
	}

	changed := txn.PayeeID != payee.ID
	txn.PayeeID = payee.ID
	return outcome{applied: true, changed: changed}
}

func markTransfer(txn *model.Transaction) outcome {
	if txn.FlowOverride != nil && *txn.FlowOverride == model.FlowTransfer {
		return outcome{applied: true}
	}
	f := model.FlowTransfer
	txn.FlowOverride = &f
	return outcome{applied: true, changed: true}
}

func prependMemo(text string, txn *model.Transaction) outcome {
	text = strings.TrimSpace(text)
	if text == "" {
		return outcome{}
	}
	if strings.HasPrefix(txn.Memo, text) {
		return outcome{applied: true}
	}
	if strings.TrimSpace(txn.Memo) == "" {
		txn.Memo = text
	} else {
		txn.Memo = text + " " + txn.Memo
	}
	return outcome{applied: true, changed: true}
}
