package ledger

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/Veraticus/tithe/internal/common"
	"github.com/Veraticus/tithe/internal/model"
)

// UntitledRuleName is given to classification rules saved without a name.
const UntitledRuleName = "Untitled rule"

// SaveRule validates and upserts a classification rule. Validation problems
// are returned without writing anything. A rule without an id is assigned
// one and the saved rule is returned.
func (s *Store) SaveRule(ctx context.Context, rule model.ClassificationRule) (model.ClassificationRule, []model.ValidationError, error) {
	if rule.Match == "" {
		rule.Match = model.MatchAll
	}
	if rule.Name = strings.TrimSpace(rule.Name); rule.Name == "" {
		rule.Name = UntitledRuleName
	}

	var problems []model.ValidationError
	err := s.Update(ctx, func(next *Snapshot) error {
		if problems = validateRule(next, rule); len(problems) > 0 {
			return errValidation
		}
		now := s.now()
		if rule.ID == "" {
			rule.ID = uuid.NewString()
		}
		i := slices.IndexFunc(next.Rules, func(r model.ClassificationRule) bool { return r.ID == rule.ID })
		if i < 0 {
			rule.CreatedAt = now
			rule.UpdatedAt = now
			next.Rules = append(next.Rules, rule)
			return nil
		}
		rule.CreatedAt = next.Rules[i].CreatedAt
		rule.UpdatedAt = now
		next.Rules[i] = rule
		return nil
	})
	if errors.Is(err, errValidation) {
		return rule, problems, nil
	}
	if err != nil {
		return rule, nil, err
	}
	common.LogDebug("Saved classification rule", common.Fields{"rule_id": rule.ID, "name": rule.Name})
	return rule, nil, nil
}

// ArchiveRule hides a classification rule from future runs.
func (s *Store) ArchiveRule(ctx context.Context, id string) error {
	return s.Update(ctx, func(next *Snapshot) error {
		i := slices.IndexFunc(next.Rules, func(r model.ClassificationRule) bool { return r.ID == id })
		if i < 0 {
			return fmt.Errorf("rule %q: %w", id, common.ErrNotFound)
		}
		next.Rules[i].Archived = true
		next.Rules[i].UpdatedAt = s.now()
		return nil
	})
}

// SaveAllocationRule validates and upserts an allocation rule. Purposes
// without ids are assigned one.
func (s *Store) SaveAllocationRule(ctx context.Context, rule model.AllocationRule) (model.AllocationRule, []model.ValidationError, error) {
	rule.Purposes = slices.Clone(rule.Purposes)
	for i := range rule.Purposes {
		if rule.Purposes[i].ID == "" {
			rule.Purposes[i].ID = uuid.NewString()
		}
	}

	var problems []model.ValidationError
	err := s.Update(ctx, func(next *Snapshot) error {
		if problems = validateAllocationRule(next, rule); len(problems) > 0 {
			return errValidation
		}
		now := s.now()
		if rule.ID == "" {
			rule.ID = uuid.NewString()
		}
		i := slices.IndexFunc(next.AllocationRules, func(r model.AllocationRule) bool { return r.ID == rule.ID })
		if i < 0 {
			rule.CreatedAt = now
			rule.UpdatedAt = now
			next.AllocationRules = append(next.AllocationRules, rule)
			return nil
		}
		rule.CreatedAt = next.AllocationRules[i].CreatedAt
		rule.UpdatedAt = now
		next.AllocationRules[i] = rule
		return nil
	})
	if errors.Is(err, errValidation) {
		return rule, problems, nil
	}
	if err != nil {
		return rule, nil, err
	}
	common.LogDebug("Saved allocation rule", common.Fields{"rule_id": rule.ID, "name": rule.Name})
	return rule, nil, nil
}

// ArchiveAllocationRule hides an allocation rule from future runs. Existing
// allocation records are kept.
func (s *Store) ArchiveAllocationRule(ctx context.Context, id string) error {
	return s.Update(ctx, func(next *Snapshot) error {
		i := slices.IndexFunc(next.AllocationRules, func(r model.AllocationRule) bool { return r.ID == id })
		if i < 0 {
			return fmt.Errorf("allocation rule %q: %w", id, common.ErrNotFound)
		}
		next.AllocationRules[i].Archived = true
		next.AllocationRules[i].UpdatedAt = s.now()
		return nil
	})
}
