package ledger

import (
	"fmt"
	"slices"
	"strings"

	"github.com/Veraticus/tithe/internal/allocation"
	"github.com/Veraticus/tithe/internal/model"
)

// referenceIndex answers existence questions about snapshot entities.
type referenceIndex struct {
	accounts      map[string]bool
	collections   map[string]bool
	categories    map[string]bool
	subCategories map[string]string
	payees        map[string]bool
	tags          map[string]bool
}

func newReferenceIndex(s *Snapshot) referenceIndex {
	idx := referenceIndex{
		accounts:      make(map[string]bool, len(s.Accounts)),
		collections:   make(map[string]bool, len(s.Collections)),
		categories:    make(map[string]bool, len(s.Categories)),
		subCategories: make(map[string]string, len(s.SubCategories)),
		payees:        make(map[string]bool, len(s.Payees)),
		tags:          make(map[string]bool, len(s.Tags)),
	}
	for _, a := range s.Accounts {
		idx.accounts[a.ID] = true
	}
	for _, c := range s.Collections {
		idx.collections[c.ID] = true
	}
	for _, c := range s.Categories {
		idx.categories[c.ID] = true
	}
	for _, sc := range s.SubCategories {
		idx.subCategories[sc.ID] = sc.CategoryID
	}
	for _, p := range s.Payees {
		idx.payees[p.ID] = true
	}
	for _, t := range s.Tags {
		idx.tags[t.ID] = true
	}
	return idx
}

func invalid(title, format string, args ...any) model.ValidationError {
	return model.ValidationError{Title: title, Description: fmt.Sprintf(format, args...)}
}

// validateRule checks a classification rule before it is saved. Drafts
// without conditions or actions are allowed; such a rule only counts matches.
func validateRule(s *Snapshot, rule model.ClassificationRule) []model.ValidationError {
	idx := newReferenceIndex(s)
	var errs []model.ValidationError

	if rule.Match != model.MatchAll && rule.Match != model.MatchAny {
		errs = append(errs, invalid("Unknown match mode", "match mode %q is not all or any", rule.Match))
	}
	for _, c := range rule.Conditions {
		errs = append(errs, idx.validateCondition(c)...)
	}
	for _, a := range rule.Actions {
		errs = append(errs, idx.validateAction(a)...)
	}
	return errs
}

func (idx referenceIndex) validateCondition(c model.Condition) []model.ValidationError {
	var errs []model.ValidationError
	switch c.Type {
	case model.ConditionDescription, model.ConditionPayee:
		switch c.Operator {
		case model.OpContains, model.OpStartsWith, model.OpEquals:
		default:
			errs = append(errs, invalid("Unknown operator", "operator %q does not apply to text", c.Operator))
		}
	case model.ConditionAmount:
		switch {
		case c.Amount == nil:
			errs = append(errs, invalid("Missing amount", "amount conditions need a value"))
		case c.Operator == model.OpBetween && c.Amount2 == nil:
			errs = append(errs, invalid("Missing amount", "between conditions need an upper bound"))
		case !slices.Contains([]model.Operator{model.OpEq, model.OpGt, model.OpGte, model.OpLt, model.OpLte, model.OpBetween}, c.Operator):
			errs = append(errs, invalid("Unknown operator", "operator %q does not apply to amounts", c.Operator))
		}
	case model.ConditionDateRange:
		if c.From != nil && c.To != nil && c.To.Before(*c.From) {
			errs = append(errs, invalid("Invalid date range", "the range ends before it starts"))
		}
	case model.ConditionAccount:
		for _, id := range c.IDs {
			if !idx.accounts[id] {
				errs = append(errs, invalid("Unknown account", "account %q does not exist", id))
			}
		}
	case model.ConditionProvider:
	case model.ConditionCategoryEmpty:
		if c.Level != "" && c.Level != model.LevelCategory && c.Level != model.LevelSubCategory {
			errs = append(errs, invalid("Unknown level", "level %q is not category or sub_category", c.Level))
		}
	case model.ConditionCategory:
		errs = append(errs, idx.validateCategory(c.CategoryID, c.SubCategoryID)...)
	case model.ConditionFlow:
		for _, f := range c.Flows {
			if !f.IsValid() {
				errs = append(errs, invalid("Unknown flow", "flow %q is not recognised", f))
			}
		}
	case model.ConditionTag:
		if !idx.tags[c.TagID] {
			errs = append(errs, invalid("Unknown tag", "tag %q does not exist", c.TagID))
		}
	default:
		errs = append(errs, invalid("Unknown condition", "condition type %q is not recognised", c.Type))
	}
	return errs
}

func (idx referenceIndex) validateCategory(categoryID, subCategoryID string) []model.ValidationError {
	if !idx.categories[categoryID] {
		return []model.ValidationError{invalid("Unknown category", "category %q does not exist", categoryID)}
	}
	if subCategoryID == "" {
		return nil
	}
	parent, ok := idx.subCategories[subCategoryID]
	if !ok {
		return []model.ValidationError{invalid("Unknown sub-category", "sub-category %q does not exist", subCategoryID)}
	}
	if parent != categoryID {
		return []model.ValidationError{invalid("Sub-category mismatch", "sub-category %q is not under %q", subCategoryID, categoryID)}
	}
	return nil
}

func (idx referenceIndex) validateAction(a model.Action) []model.ValidationError {
	switch a.Type {
	case model.ActionSetCategory:
		return idx.validateCategory(a.CategoryID, a.SubCategoryID)
	case model.ActionAddTags:
		var errs []model.ValidationError
		if len(a.TagIDs) == 0 {
			errs = append(errs, invalid("No tags", "add tags needs at least one tag"))
		}
		for _, id := range a.TagIDs {
			if !idx.tags[id] {
				errs = append(errs, invalid("Unknown tag", "tag %q does not exist", id))
			}
		}
		return errs
	case model.ActionSetPayee:
		if strings.TrimSpace(a.PayeeName) == "" {
			return []model.ValidationError{invalid("Payee required", "set payee needs a payee name")}
		}
	case model.ActionPrependMemo:
		if strings.TrimSpace(a.Text) == "" {
			return []model.ValidationError{invalid("Memo text required", "prepend memo needs some text")}
		}
	case model.ActionMarkTransfer, model.ActionClearNeedsFX:
	default:
		return []model.ValidationError{invalid("Unknown action", "action type %q is not recognised", a.Type)}
	}
	return nil
}

// validateAllocationRule runs the structural checks and then resolves every
// reference against the snapshot.
func validateAllocationRule(s *Snapshot, rule model.AllocationRule) []model.ValidationError {
	errs := allocation.Validate(rule)
	idx := newReferenceIndex(s)

	for _, id := range rule.Scope.IDs {
		var known bool
		switch rule.Scope.Type {
		case model.ScopeCategories:
			known = idx.categories[id]
		case model.ScopeSubCategories:
			_, known = idx.subCategories[id]
		case model.ScopePayees:
			known = idx.payees[id]
		case model.ScopeAccounts:
			known = idx.accounts[id]
		default:
			known = true
		}
		if !known {
			errs = append(errs, invalid("Unknown scope target", "%s entry %q does not exist", rule.Scope.Type, id))
		}
	}
	for _, c := range rule.Filters {
		errs = append(errs, idx.validateCondition(c)...)
	}
	for _, p := range rule.Purposes {
		switch {
		case p.TargetType == model.TargetAccount && p.TargetID != "" && !idx.accounts[p.TargetID]:
			errs = append(errs, invalid("Unknown target", "purpose %q points at missing account %q", p.Name, p.TargetID))
		case p.TargetType == model.TargetCollection && p.TargetID != "" && !idx.collections[p.TargetID]:
			errs = append(errs, invalid("Unknown target", "purpose %q points at missing collection %q", p.Name, p.TargetID))
		}
	}
	return errs
}
