package predicate

import (
	"slices"
	"strings"
	"time"

	"github.com/Veraticus/tithe/internal/flow"
	"github.com/Veraticus/tithe/internal/model"
)

// MatchAll combines conditions with mode. An empty condition list matches.
func MatchAll(conditions []model.Condition, mode model.MatchMode, txn model.Transaction, lookup Lookup) bool {
	if len(conditions) == 0 {
		return true
	}

	if mode == model.MatchAny {
		for _, c := range conditions {
			if Matches(c, txn, lookup) {
				return true
			}
		}
		return false
	}

	for _, c := range conditions {
		if !Matches(c, txn, lookup) {
			return false
		}
	}
	return true
}

// Matches evaluates one condition. Unknown condition types never match.
func Matches(c model.Condition, txn model.Transaction, lookup Lookup) bool {
	switch c.Type {
	case model.ConditionDescription:
		return matchText(c.Operator, c.Value, txn.Description)
	case model.ConditionPayee:
		return matchText(c.Operator, c.Value, lookup.PayeeName(txn))
	case model.ConditionAmount:
		return matchAmount(c, txn)
	case model.ConditionDateRange:
		return matchDateRange(c.From, c.To, txn.Date)
	case model.ConditionAccount:
		return slices.Contains(c.IDs, txn.AccountID)
	case model.ConditionProvider:
		return containsFold(c.Values, lookup.Provider(txn))
	case model.ConditionCategoryEmpty:
		if c.Level == model.LevelSubCategory {
			return txn.SubCategoryID == ""
		}
		return txn.CategoryID == ""
	case model.ConditionCategory:
		if c.CategoryID == "" || txn.CategoryID != c.CategoryID {
			return false
		}
		return c.SubCategoryID == "" || txn.SubCategoryID == c.SubCategoryID
	case model.ConditionFlow:
		return slices.Contains(c.Flows, flow.Classify(txn, lookup.Categories))
	case model.ConditionTag:
		return c.TagID != "" && txn.HasTag(c.TagID)
	}
	return false
}

// matchText compares case-insensitively after trimming both sides. A blank
// operand never matches so an unfinished rule cannot match everything.
func matchText(op model.Operator, operand, candidate string) bool {
	needle := strings.ToLower(strings.TrimSpace(operand))
	if needle == "" {
		return false
	}
	hay := strings.ToLower(strings.TrimSpace(candidate))

	switch op {
	case model.OpContains:
		return strings.Contains(hay, needle)
	case model.OpStartsWith:
		return strings.HasPrefix(hay, needle)
	case model.OpEquals:
		return hay == needle
	}
	return false
}

// matchAmount compares the absolute native amount so rules read naturally
// for both inflows and outflows.
func matchAmount(c model.Condition, txn model.Transaction) bool {
	if c.Amount == nil {
		return false
	}
	amount := txn.Amount.Abs()
	value := *c.Amount

	switch c.Operator {
	case model.OpEq:
		return amount.Equal(value)
	case model.OpGt:
		return amount.GreaterThan(value)
	case model.OpGte:
		return amount.GreaterThanOrEqual(value)
	case model.OpLt:
		return amount.LessThan(value)
	case model.OpLte:
		return amount.LessThanOrEqual(value)
	case model.OpBetween:
		if c.Amount2 == nil {
			return false
		}
		lo, hi := value, *c.Amount2
		if lo.GreaterThan(hi) {
			lo, hi = hi, lo
		}
		return amount.GreaterThanOrEqual(lo) && amount.LessThanOrEqual(hi)
	}
	return false
}

// matchDateRange compares calendar days, inclusive on both ends.
func matchDateRange(from, to *time.Time, date time.Time) bool {
	if from == nil && to == nil {
		return true
	}
	if date.IsZero() {
		return false
	}
	day := truncateDay(date)
	if from != nil && day.Before(truncateDay(*from)) {
		return false
	}
	if to != nil && day.After(truncateDay(*to)) {
		return false
	}
	return true
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func containsFold(values []string, s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	for _, v := range values {
		if strings.EqualFold(strings.TrimSpace(v), s) {
			return true
		}
	}
	return false
}
