package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/tithe/internal/common"
	"github.com/Veraticus/tithe/internal/model"
)

func titles(errs []model.ValidationError) []string {
	out := make([]string, 0, len(errs))
	for _, e := range errs {
		out = append(out, e.Title)
	}
	return out
}

func TestSaveRule_Validation(t *testing.T) {
	amount := d("10")

	tests := []struct {
		name string
		rule model.ClassificationRule
		want []string
	}{
		{
			name: "valid",
			rule: model.ClassificationRule{
				Name:       "Coffee",
				Conditions: []model.Condition{{Type: model.ConditionAmount, Operator: model.OpGt, Amount: &amount}},
				Actions:    []model.Action{{Type: model.ActionSetCategory, CategoryID: "cat-dining", SubCategoryID: "sub-coffee"}},
			},
		},
		{
			name: "draft without conditions or actions",
			rule: model.ClassificationRule{Name: "Draft"},
		},
		{
			name: "unknown references",
			rule: model.ClassificationRule{
				Name: "Refs",
				Conditions: []model.Condition{
					{Type: model.ConditionAccount, IDs: []string{"acc-gone"}},
					{Type: model.ConditionTag, TagID: "tag-gone"},
				},
				Actions: []model.Action{
					{Type: model.ActionSetCategory, CategoryID: "cat-gone"},
					{Type: model.ActionAddTags, TagIDs: []string{"tag-gone"}},
				},
			},
			want: []string{"Unknown account", "Unknown tag", "Unknown category", "Unknown tag"},
		},
		{
			name: "sub-category under another category",
			rule: model.ClassificationRule{
				Name:    "Mismatch",
				Actions: []model.Action{{Type: model.ActionSetCategory, CategoryID: "cat-income", SubCategoryID: "sub-coffee"}},
			},
			want: []string{"Sub-category mismatch"},
		},
		{
			name: "between without upper bound",
			rule: model.ClassificationRule{
				Name:       "Range",
				Conditions: []model.Condition{{Type: model.ConditionAmount, Operator: model.OpBetween, Amount: &amount}},
				Actions:    []model.Action{{Type: model.ActionMarkTransfer}},
			},
			want: []string{"Missing amount"},
		},
		{
			name: "unknown types",
			rule: model.ClassificationRule{
				Name:       "Odd",
				Match:      "some",
				Conditions: []model.Condition{{Type: "weather"}},
				Actions:    []model.Action{{Type: "explode"}, {Type: model.ActionSetPayee}},
			},
			want: []string{"Unknown match mode", "Unknown condition", "Unknown action", "Payee required"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, p := newTestStore(t)
			saved, problems, err := s.SaveRule(context.Background(), tt.rule)
			require.NoError(t, err)
			assert.Equal(t, tt.want, nilIfEmpty(titles(problems)))
			if tt.want != nil {
				assert.Zero(t, p.saves)
				assert.Len(t, s.Snapshot().Rules, 1)
				return
			}
			assert.NotEmpty(t, saved.ID)
			assert.Equal(t, model.MatchAll, saved.Match)
			assert.Equal(t, fixedNow, saved.CreatedAt)
			got, ok := s.Snapshot().Rule(saved.ID)
			require.True(t, ok)
			assert.Equal(t, saved.Name, got.Name)
		})
	}
}

func TestSaveRule_BlankDraftGetsDefaultName(t *testing.T) {
	s, p := newTestStore(t)

	saved, problems, err := s.SaveRule(context.Background(), model.ClassificationRule{Name: "  ", Enabled: true})
	require.NoError(t, err)
	require.Empty(t, problems)
	assert.Equal(t, UntitledRuleName, saved.Name)
	assert.Equal(t, 1, p.saves)

	got, ok := s.Snapshot().Rule(saved.ID)
	require.True(t, ok)
	assert.Equal(t, UntitledRuleName, got.Name)
	assert.Empty(t, got.Actions)

	preview := s.PreviewRuleRun(nil)
	assert.Equal(t, 1, preview.ChangedCount)
	require.Len(t, preview.Summaries, 2)
	assert.Equal(t, UntitledRuleName, preview.Summaries[1].RuleName)
	assert.Equal(t, 3, preview.Summaries[1].Matched)
	assert.Empty(t, preview.Summaries[1].Fields)
}

func nilIfEmpty(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	return s
}

func TestSaveRule_UpdateKeepsCreatedAt(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	rule, _ := s.Snapshot().Rule("rule-coffee")
	rule.Priority = 5
	saved, problems, err := s.SaveRule(ctx, rule)
	require.NoError(t, err)
	require.Empty(t, problems)
	assert.True(t, saved.CreatedAt.IsZero())
	assert.Equal(t, fixedNow, saved.UpdatedAt)

	rules := s.Snapshot().Rules
	require.Len(t, rules, 1)
	assert.Equal(t, 5, rules[0].Priority)
}

func TestArchiveRule(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.ArchiveRule(ctx, "rule-coffee"))
	rule, ok := s.Snapshot().Rule("rule-coffee")
	require.True(t, ok)
	assert.True(t, rule.Archived)
	assert.Zero(t, s.PreviewRuleRun(nil).ChangedCount)

	err := s.ArchiveRule(ctx, "missing")
	require.ErrorIs(t, err, common.ErrNotFound)
	require.ErrorIs(t, s.ArchiveAllocationRule(ctx, "missing"), common.ErrNotFound)
}

func TestSaveAllocationRule_Validation(t *testing.T) {
	base := func() model.AllocationRule {
		return model.AllocationRule{
			Name:      "Tithe",
			Enabled:   true,
			Scope:     model.BaseScope{Type: model.ScopeCategories, IDs: []string{"cat-income"}},
			Tolerance: d("0.5"),
			Purposes: []model.Purpose{
				{Name: "Giving", Percentage: d("10"), TargetType: model.TargetCollection, TargetID: "col-personal"},
				{Name: "Rest", Percentage: d("90"), TargetType: model.TargetLabel, TargetLabel: "rest"},
			},
		}
	}

	tests := []struct {
		name   string
		mutate func(*model.AllocationRule)
		want   []string
	}{
		{name: "valid", mutate: func(*model.AllocationRule) {}},
		{
			name:   "within tolerance",
			mutate: func(r *model.AllocationRule) { r.Purposes[1].Percentage = d("89.6") },
		},
		{
			name:   "outside tolerance",
			mutate: func(r *model.AllocationRule) { r.Purposes[1].Percentage = d("80") },
			want:   []string{"Percentages don't add up"},
		},
		{
			name:   "unknown scope entry",
			mutate: func(r *model.AllocationRule) { r.Scope.IDs = []string{"cat-gone"} },
			want:   []string{"Unknown scope target"},
		},
		{
			name:   "missing target account",
			mutate: func(r *model.AllocationRule) { r.Purposes[0].TargetType, r.Purposes[0].TargetID = model.TargetAccount, "acc-gone" },
			want:   []string{"Unknown target"},
		},
		{
			name: "bad filter",
			mutate: func(r *model.AllocationRule) {
				r.Filters = []model.Condition{{Type: model.ConditionTag, TagID: "tag-gone"}}
			},
			want: []string{"Unknown tag"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestStore(t)
			rule := base()
			tt.mutate(&rule)

			saved, problems, err := s.SaveAllocationRule(context.Background(), rule)
			require.NoError(t, err)
			assert.Equal(t, tt.want, nilIfEmpty(titles(problems)))
			if tt.want != nil {
				assert.Len(t, s.Snapshot().AllocationRules, 1)
				return
			}
			assert.NotEmpty(t, saved.ID)
			for _, p := range saved.Purposes {
				assert.NotEmpty(t, p.ID)
			}
			assert.Len(t, s.Snapshot().AllocationRules, 2)
		})
	}
}
