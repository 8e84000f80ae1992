package allocation

import (
	"testing"
	"time"

	"github.com/Veraticus/tithe/internal/model"
	"github.com/Veraticus/tithe/internal/predicate"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 4, 1, 9, 30, 0, 0, time.UTC)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func gbpSettings() model.Settings {
	return model.Settings{
		BaseCurrency: "GBP",
		ExchangeRates: []model.ExchangeRate{
			{Currency: "USD", RateToBase: d("0.8")},
			{Currency: "EUR", RateToBase: d("0.85")},
		},
	}
}

func testLookup() predicate.Lookup {
	return predicate.NewLookup(
		[]model.Account{
			{ID: "acc-main", Name: "Main", Provider: "Monzo"},
			{ID: "acc-usd", Name: "Dollar", Provider: "Wise"},
		},
		[]model.Payee{{ID: "payee-acme", Name: "ACME Ltd"}},
		[]model.Category{
			{ID: "cat-income", Name: "Income", Kind: model.CategoryKindIncome},
			{ID: "cat-interest", Name: "Interest", Kind: model.CategoryKindInterest},
			{ID: "cat-rent", Name: "Rent", Kind: model.CategoryKindExpense},
		},
		[]model.SubCategory{{ID: "sub-salary", CategoryID: "cat-income", Name: "Salary"}},
	)
}

func incomeTxn(id, amount, currency string) model.Transaction {
	return model.Transaction{
		ID:          id,
		AccountID:   "acc-main",
		Date:        time.Date(2024, 3, 28, 0, 0, 0, 0, time.UTC),
		Amount:      d(amount),
		Currency:    currency,
		CategoryID:  "cat-income",
		PayeeID:     "payee-acme",
		Description: "ACME PAYROLL",
	}
}

func splitRule(id string, priority int, purposes ...model.Purpose) model.AllocationRule {
	return model.AllocationRule{
		ID:        id,
		Name:      "Rule " + id,
		Priority:  priority,
		Enabled:   true,
		Scope:     model.BaseScope{Type: model.ScopeAllIncome},
		Purposes:  purposes,
		Tolerance: d("0.5"),
	}
}

func purpose(id, pct string) model.Purpose {
	return model.Purpose{ID: id, Name: id, Percentage: d(pct), TargetType: model.TargetLabel, TargetLabel: id}
}

func opts() Options {
	return Options{Now: fixedNow, Mode: model.AllocationAuto, RespectExisting: true}
}

func TestRun_HalfAndHalfGBP(t *testing.T) {
	rule := splitRule("r1", 1, purpose("savings", "50"), purpose("spending", "50"))
	res := Run([]model.AllocationRule{rule}, []model.Transaction{incomeTxn("t1", "2000", "GBP")}, nil,
		testLookup(), gbpSettings(), opts())

	require.Len(t, res.Created, 2)
	for _, a := range res.Created {
		assert.Equal(t, "1000.00", a.NativeAmount.StringFixed(2))
		assert.Equal(t, "1000.00", a.BaseAmount.StringFixed(2))
		assert.Equal(t, "GBP", a.BaseCurrency)
		assert.Equal(t, "r1", a.RuleID)
		assert.Equal(t, fixedNow, a.AppliedAt)
		assert.Equal(t, model.AllocationAuto, a.Mode)
	}
	assert.Equal(t, "2000.00", res.Preview.TotalBaseAmount.StringFixed(2))
	assert.Equal(t, 1, res.Preview.TransactionsAffected)
	assert.Equal(t, 2, res.Preview.AllocationCount)
	assert.Equal(t, []string{"t1"}, res.AffectedTransactions)
}

func TestRun_PercentageConservation(t *testing.T) {
	tests := []struct {
		name     string
		amount   string
		purposes []model.Purpose
		want     []string
	}{
		{
			name:     "sixty forty",
			amount:   "1000.00",
			purposes: []model.Purpose{purpose("a", "60"), purpose("b", "40")},
			want:     []string{"600.00", "400.00"},
		},
		{
			name:     "thirds absorb remainder in last purpose",
			amount:   "100.00",
			purposes: []model.Purpose{purpose("a", "33.33"), purpose("b", "33.33"), purpose("c", "33.34")},
			want:     []string{"33.33", "33.33", "33.34"},
		},
		{
			name:     "rounding remainder",
			amount:   "0.10",
			purposes: []model.Purpose{purpose("a", "33.3"), purpose("b", "33.3"), purpose("c", "33.4")},
			want:     []string{"0.03", "0.03", "0.04"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := splitRule("r1", 1, tt.purposes...)
			res := Run([]model.AllocationRule{rule}, []model.Transaction{incomeTxn("t1", tt.amount, "GBP")}, nil,
				testLookup(), gbpSettings(), opts())

			require.Len(t, res.Created, len(tt.want))
			sum := decimal.Zero
			for i, a := range res.Created {
				assert.Equal(t, tt.want[i], a.NativeAmount.StringFixed(2))
				sum = sum.Add(a.NativeAmount)
			}
			assert.True(t, sum.Equal(d(tt.amount)), "splits sum to %s, want %s", sum, tt.amount)
		})
	}
}

func TestRun_CurrencyConversion(t *testing.T) {
	rule := splitRule("r1", 1, purpose("all", "100"))
	txns := []model.Transaction{
		incomeTxn("usd", "100", "usd"),
		incomeTxn("jpy", "500", "JPY"),
	}

	res := Run([]model.AllocationRule{rule}, txns, nil, testLookup(), gbpSettings(), opts())

	require.Len(t, res.Created, 2)
	assert.Equal(t, "USD", res.Created[0].NativeCurrency)
	assert.Equal(t, "80.00", res.Created[0].BaseAmount.StringFixed(2))
	assert.Equal(t, "500.00", res.Created[1].BaseAmount.StringFixed(2), "missing rate converts at 1")
	assert.Equal(t, []string{"JPY"}, res.Preview.FallbackCurrencies)
	assert.Equal(t, "580.00", res.Preview.TotalBaseAmount.StringFixed(2))
	assert.Equal(t, "100.00", res.Preview.NativeTotals["USD"].StringFixed(2))
	assert.Equal(t, "500.00", res.Preview.NativeTotals["JPY"].StringFixed(2))
}

func TestRun_FlowGating(t *testing.T) {
	rule := splitRule("r1", 1, purpose("all", "100"))

	rent := incomeTxn("rent", "900", "GBP")
	rent.CategoryID = "cat-rent"
	refund := incomeTxn("refund", "-20", "GBP")
	refund.CategoryID = ""
	interest := incomeTxn("interest", "3.21", "GBP")
	interest.CategoryID = "cat-interest"

	res := Run([]model.AllocationRule{rule}, []model.Transaction{rent, refund, interest}, nil,
		testLookup(), gbpSettings(), opts())

	assert.Equal(t, []string{"interest"}, res.AffectedTransactions)
	require.Len(t, res.Created, 1)
	assert.Equal(t, "interest", res.Created[0].TransactionID)
}

func TestRun_RemovesAllocationsWhenFlowChanges(t *testing.T) {
	rule := splitRule("r1", 1, purpose("all", "100"))
	first := Run([]model.AllocationRule{rule}, []model.Transaction{incomeTxn("t1", "50", "GBP")}, nil,
		testLookup(), gbpSettings(), opts())
	require.Len(t, first.Created, 1)

	moved := incomeTxn("t1", "50", "GBP")
	transfer := model.FlowTransfer
	moved.FlowOverride = &transfer

	second := Run([]model.AllocationRule{rule}, []model.Transaction{moved}, first.Created,
		testLookup(), gbpSettings(), opts())
	assert.Empty(t, second.Created)
	assert.Equal(t, []string{first.Created[0].ID}, second.RemovedIDs)
}

func TestRun_StopAtFirstMatch(t *testing.T) {
	first := splitRule("first", 1, purpose("a", "100"))
	second := splitRule("second", 2, purpose("b", "100"))

	res := Run([]model.AllocationRule{second, first}, []model.Transaction{incomeTxn("t1", "100", "GBP")}, nil,
		testLookup(), gbpSettings(), opts())

	require.Len(t, res.Created, 1)
	assert.Equal(t, "first", res.Created[0].RuleID)
	require.Len(t, res.Preview.Breakdown, 1)
	assert.Equal(t, "first", res.Preview.Breakdown[0].RuleID)
}

func TestRun_RespectExisting(t *testing.T) {
	owner := splitRule("owner", 1, purpose("a", "100"))
	seed := Run([]model.AllocationRule{owner}, []model.Transaction{incomeTxn("t1", "100", "GBP")}, nil,
		testLookup(), gbpSettings(), opts())
	require.Len(t, seed.Created, 1)

	challenger := splitRule("challenger", 0, purpose("b", "100"))

	t.Run("skipped when existing allocations belong to another rule", func(t *testing.T) {
		res := Run([]model.AllocationRule{challenger}, []model.Transaction{incomeTxn("t1", "100", "GBP")}, seed.Created,
			testLookup(), gbpSettings(), opts())
		assert.Empty(t, res.Created)
		assert.Empty(t, res.RemovedIDs)
		assert.Equal(t, 0, res.Preview.TransactionsAffected)
	})

	t.Run("allow overwrite replaces every prior allocation", func(t *testing.T) {
		overwrite := challenger
		overwrite.AllowOverwrite = true
		res := Run([]model.AllocationRule{overwrite}, []model.Transaction{incomeTxn("t1", "100", "GBP")}, seed.Created,
			testLookup(), gbpSettings(), opts())
		require.Len(t, res.Created, 1)
		assert.Equal(t, "challenger", res.Created[0].RuleID)
		assert.Equal(t, []string{seed.Created[0].ID}, res.RemovedIDs)
	})

	t.Run("without respect the first match wins and stale records go", func(t *testing.T) {
		o := opts()
		o.RespectExisting = false
		res := Run([]model.AllocationRule{owner, challenger}, []model.Transaction{incomeTxn("t1", "100", "GBP")}, seed.Created,
			testLookup(), gbpSettings(), o)
		require.Len(t, res.Created, 1)
		assert.Equal(t, "challenger", res.Created[0].RuleID)
		assert.Equal(t, []string{seed.Created[0].ID}, res.RemovedIDs)
	})

	t.Run("stale owner does not block lower priority rule", func(t *testing.T) {
		narrowed := owner
		narrowed.Scope = model.BaseScope{Type: model.ScopePayees, IDs: []string{"payee-other"}}
		fallback := splitRule("fallback", 5, purpose("c", "100"))

		res := Run([]model.AllocationRule{narrowed, fallback}, []model.Transaction{incomeTxn("t1", "100", "GBP")}, seed.Created,
			testLookup(), gbpSettings(), opts())
		require.Len(t, res.Created, 1)
		assert.Equal(t, "fallback", res.Created[0].RuleID)
		assert.Equal(t, []string{seed.Created[0].ID}, res.RemovedIDs)
	})

	t.Run("manual allocations survive as stale", func(t *testing.T) {
		manual := seed.Created[0]
		manual.Mode = model.AllocationManual
		narrowed := owner
		narrowed.Scope = model.BaseScope{Type: model.ScopePayees, IDs: []string{"payee-other"}}

		res := Run([]model.AllocationRule{narrowed}, []model.Transaction{incomeTxn("t1", "100", "GBP")},
			[]model.TransactionAllocation{manual}, testLookup(), gbpSettings(), opts())
		assert.Empty(t, res.RemovedIDs)
	})
}

func TestRun_SkipsRulesWithoutUsablePurposes(t *testing.T) {
	empty := splitRule("empty", 1)
	zero := splitRule("zero", 2, purpose("a", "0"), purpose("b", "0"))
	real := splitRule("real", 3, purpose("a", "100"))

	res := Run([]model.AllocationRule{empty, zero, real}, []model.Transaction{incomeTxn("t1", "10", "GBP")}, nil,
		testLookup(), gbpSettings(), opts())

	require.Len(t, res.Created, 1)
	assert.Equal(t, "real", res.Created[0].RuleID)
}

func TestRun_ScopesAndFilters(t *testing.T) {
	tests := []struct {
		name    string
		scope   model.BaseScope
		filters []model.Condition
		want    bool
	}{
		{name: "all income", scope: model.BaseScope{Type: model.ScopeAllIncome}, want: true},
		{name: "category", scope: model.BaseScope{Type: model.ScopeCategories, IDs: []string{"cat-income"}}, want: true},
		{name: "other category", scope: model.BaseScope{Type: model.ScopeCategories, IDs: []string{"cat-rent"}}, want: false},
		{name: "sub-category", scope: model.BaseScope{Type: model.ScopeSubCategories, IDs: []string{"sub-salary"}}, want: true},
		{name: "payee", scope: model.BaseScope{Type: model.ScopePayees, IDs: []string{"payee-acme"}}, want: true},
		{name: "account", scope: model.BaseScope{Type: model.ScopeAccounts, IDs: []string{"acc-usd"}}, want: false},
		{name: "provider", scope: model.BaseScope{Type: model.ScopeProviders, IDs: []string{" monzo "}}, want: true},
		{name: "unknown scope", scope: model.BaseScope{Type: "lottery"}, want: false},
		{
			name:  "filter passes",
			scope: model.BaseScope{Type: model.ScopeAllIncome},
			filters: []model.Condition{
				{Type: model.ConditionDescription, Operator: model.OpContains, Value: "payroll"},
				{Type: model.ConditionAmount, Operator: model.OpGte, Amount: ptr(d("1000"))},
			},
			want: true,
		},
		{
			name:  "every filter must pass",
			scope: model.BaseScope{Type: model.ScopeAllIncome},
			filters: []model.Condition{
				{Type: model.ConditionDescription, Operator: model.OpContains, Value: "payroll"},
				{Type: model.ConditionDescription, Operator: model.OpContains, Value: "bonus"},
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			txn := incomeTxn("t1", "1500", "GBP")
			txn.SubCategoryID = "sub-salary"
			rule := splitRule("r1", 1, purpose("a", "100"))
			rule.Scope = tt.scope
			rule.Filters = tt.filters

			res := Run([]model.AllocationRule{rule}, []model.Transaction{txn}, nil, testLookup(), gbpSettings(), opts())
			assert.Equal(t, tt.want, len(res.Created) == 1)
		})
	}
}

func TestRun_DryRunMatchesCommit(t *testing.T) {
	rules := []model.AllocationRule{
		splitRule("r1", 1, purpose("save", "60"), purpose("spend", "40")),
	}
	txns := []model.Transaction{incomeTxn("t1", "1000", "GBP"), incomeTxn("t2", "250", "USD")}
	stale := model.TransactionAllocation{ID: "old", TransactionID: "t1", RuleID: "r1", PurposeID: "gone"}

	dry := opts()
	dry.DryRun = true
	preview := Run(rules, txns, []model.TransactionAllocation{stale}, testLookup(), gbpSettings(), dry)
	commit := Run(rules, txns, []model.TransactionAllocation{stale}, testLookup(), gbpSettings(), opts())

	assert.Empty(t, preview.Created)
	assert.Empty(t, preview.RemovedIDs)
	assert.Equal(t, commit.Preview, preview.Preview)
	assert.Equal(t, []string{"old"}, commit.RemovedIDs)
	require.Len(t, commit.Preview.Breakdown, 2)
	assert.Equal(t, "save", commit.Preview.Breakdown[0].PurposeID)
	assert.Equal(t, "720.00", commit.Preview.Breakdown[0].BaseAmount.StringFixed(2))
}

func TestRun_IdempotentAfterReconcile(t *testing.T) {
	rules := []model.AllocationRule{
		splitRule("r1", 1, purpose("save", "60"), purpose("spend", "40")),
		splitRule("r2", 2, purpose("other", "100")),
	}
	txns := []model.Transaction{incomeTxn("t1", "1000", "GBP"), incomeTxn("t2", "30", "EUR")}

	first := Run(rules, txns, nil, testLookup(), gbpSettings(), opts())
	stored := Reconcile(nil, first.RemovedIDs, first.Created)

	second := Run(rules, txns, stored, testLookup(), gbpSettings(), opts())
	assert.Equal(t, first.Created, second.Created)
	assert.Empty(t, second.RemovedIDs)
	assert.Equal(t, first.Preview, second.Preview)
	assert.Equal(t, stored, Reconcile(stored, second.RemovedIDs, second.Created))
}

func TestRun_ReplacedRecordsAreNotRemovals(t *testing.T) {
	rule := splitRule("r1", 1, purpose("save", "60"), purpose("spend", "40"))
	txn := incomeTxn("t1", "100", "GBP")
	first := Run([]model.AllocationRule{rule}, []model.Transaction{txn}, nil, testLookup(), gbpSettings(), opts())
	require.Len(t, first.Created, 2)

	rule.Purposes = rule.Purposes[:1]
	rule.Purposes[0].Percentage = d("100")
	second := Run([]model.AllocationRule{rule}, []model.Transaction{txn}, first.Created, testLookup(), gbpSettings(), opts())

	require.Len(t, second.Created, 1)
	assert.Equal(t, first.Created[0].ID, second.Created[0].ID)
	assert.Equal(t, []string{first.Created[1].ID}, second.RemovedIDs)

	stored := Reconcile(first.Created, second.RemovedIDs, second.Created)
	require.Len(t, stored, 1)
	assert.Equal(t, "100", stored[0].Percentage.String())
}

func TestReconcile(t *testing.T) {
	existing := []model.TransactionAllocation{{ID: "a"}, {ID: "b"}, {ID: "c"}}
	created := []model.TransactionAllocation{{ID: "c", RuleID: "new"}, {ID: "d"}}

	got := Reconcile(existing, []string{"b"}, created)

	ids := make([]string, len(got))
	for i, a := range got {
		ids[i] = a.ID
	}
	assert.Equal(t, []string{"a", "c", "d"}, ids)
	assert.Equal(t, "new", got[1].RuleID)
	assert.Len(t, existing, 3)
}

func TestOrdered(t *testing.T) {
	rules := []model.AllocationRule{
		{ID: "b", Name: "B", Priority: 2, Enabled: true},
		{ID: "a", Name: "A", Priority: 2, Enabled: true},
		{ID: "c", Name: "C", Priority: 1, Enabled: false},
		{ID: "x", Name: "X", Priority: 0, Enabled: true, Archived: true},
	}

	ids := func(rs []model.AllocationRule) []string {
		out := []string{}
		for _, r := range rs {
			out = append(out, r.ID)
		}
		return out
	}
	assert.Equal(t, []string{"a", "b"}, ids(Ordered(rules, false)))
	assert.Equal(t, []string{"c", "a", "b"}, ids(Ordered(rules, true)))
}

func ptr[T any](v T) *T { return &v }
