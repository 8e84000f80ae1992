package allocation

import (
	"fmt"
	"strings"

	"github.com/Veraticus/tithe/internal/model"
	"github.com/shopspring/decimal"
)

// Validate checks an allocation rule's own shape before it is saved. The
// purpose percentages must sum to 100 within the rule's tolerance; this is
// not re-checked when rules run. Reference integrity against the ledger is
// the caller's job.
func Validate(rule model.AllocationRule) []model.ValidationError {
	var errs []model.ValidationError
	add := func(title, format string, args ...any) {
		errs = append(errs, model.ValidationError{Title: title, Description: fmt.Sprintf(format, args...)})
	}

	if strings.TrimSpace(rule.Name) == "" {
		add("Name required", "give the allocation rule a name")
	}
	if rule.Tolerance.IsNegative() {
		add("Invalid tolerance", "tolerance %s cannot be negative", rule.Tolerance.String())
	}

	switch rule.Scope.Type {
	case model.ScopeAllIncome:
	case model.ScopeCategories, model.ScopeSubCategories, model.ScopePayees, model.ScopeAccounts, model.ScopeProviders:
		if len(rule.Scope.IDs) == 0 {
			add("Empty scope", "scope %q needs at least one entry", rule.Scope.Type)
		}
	default:
		add("Unknown scope", "scope type %q is not supported", rule.Scope.Type)
	}

	if len(rule.Purposes) == 0 {
		add("No purposes", "add at least one purpose to split income into")
		return errs
	}

	seen := make(map[string]bool, len(rule.Purposes))
	for i, p := range rule.Purposes {
		label := p.Name
		if strings.TrimSpace(label) == "" {
			label = fmt.Sprintf("#%d", i+1)
			add("Purpose name required", "purpose %s has no name", label)
		}
		if p.ID == "" || seen[p.ID] {
			add("Duplicate purpose", "purpose %s needs a unique id", label)
		}
		seen[p.ID] = true
		if p.Percentage.IsNegative() || p.Percentage.GreaterThan(hundred) {
			add("Invalid percentage", "purpose %s percentage %s must be between 0 and 100", label, p.Percentage.String())
		}
		switch p.TargetType {
		case model.TargetAccount, model.TargetCollection:
			if p.TargetID == "" {
				add("Missing target", "purpose %s must point at a %s", label, p.TargetType)
			}
		case model.TargetLabel:
			if strings.TrimSpace(p.TargetLabel) == "" {
				add("Missing target", "purpose %s needs a label", label)
			}
		default:
			add("Unknown target", "purpose %s has target type %q", label, p.TargetType)
		}
	}

	total := rule.TotalPercentage()
	if !WithinTolerance(total, rule.Tolerance) {
		add("Percentages don't add up",
			"purposes sum to %s%%, which is outside 100%% ± %s", total.String(), rule.Tolerance.String())
	}
	return errs
}

// WithinTolerance reports whether total is 100 ± tolerance.
func WithinTolerance(total, tolerance decimal.Decimal) bool {
	return total.Sub(hundred).Abs().LessThanOrEqual(tolerance.Abs())
}
