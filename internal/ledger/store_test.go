package ledger

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/tithe/internal/common"
	"github.com/Veraticus/tithe/internal/model"
)

var fixedNow = time.Date(2024, 4, 1, 9, 30, 0, 0, time.UTC)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func day(y int, m time.Month, dd int) time.Time { return time.Date(y, m, dd, 0, 0, 0, 0, time.UTC) }

// memPersister keeps the last saved snapshot and can be told to fail.
type memPersister struct {
	saved *Snapshot
	err   error
	saves int
}

func (m *memPersister) Load(_ context.Context) (*Snapshot, error) {
	if m.saved == nil {
		return nil, common.ErrNotFound
	}
	return m.saved.Clone(), nil
}

func (m *memPersister) Save(_ context.Context, snap *Snapshot) error {
	if m.err != nil {
		return m.err
	}
	m.saves++
	m.saved = snap.Clone()
	return nil
}

func fixture() *Snapshot {
	return &Snapshot{
		Settings: model.Settings{
			BaseCurrency:  "GBP",
			ExchangeRates: []model.ExchangeRate{{Currency: "USD", RateToBase: d("0.8")}},
		},
		Accounts: []model.Account{
			{ID: "acc-main", Name: "Main", Provider: "Monzo", Currency: "GBP", CollectionIDs: []string{"col-personal"}},
			{ID: "acc-joint", Name: "Joint", Provider: "Starling", Currency: "GBP"},
		},
		Collections: []model.Collection{{ID: "col-personal", Name: "Personal"}},
		Categories: []model.Category{
			{ID: "cat-income", Name: "Income", Kind: model.CategoryKindIncome},
			{ID: "cat-dining", Name: "Dining", Kind: model.CategoryKindExpense},
		},
		SubCategories: []model.SubCategory{{ID: "sub-coffee", CategoryID: "cat-dining", Name: "Coffee"}},
		Tags:          []model.Tag{{ID: "tag-review", Name: "Review"}},
		Transactions: []model.Transaction{
			{ID: "t-pay", AccountID: "acc-main", Date: day(2024, 3, 28), Amount: d("2000"), Currency: "GBP", CategoryID: "cat-income", Description: "ACME PAYROLL"},
			{ID: "t-coffee", AccountID: "acc-main", Date: day(2024, 3, 29), Amount: d("-4.50"), Currency: "GBP", Description: "Blue Bottle COFFEE"},
			{ID: "t-joint", AccountID: "acc-joint", Date: day(2024, 2, 10), Amount: d("500"), Currency: "GBP", CategoryID: "cat-income", Description: "Refund"},
		},
		Rules: []model.ClassificationRule{{
			ID:         "rule-coffee",
			Name:       "Coffee",
			Enabled:    true,
			Match:      model.MatchAll,
			Conditions: []model.Condition{{Type: model.ConditionDescription, Operator: model.OpContains, Value: "coffee"}},
			Actions: []model.Action{
				{Type: model.ActionSetCategory, CategoryID: "cat-dining", SubCategoryID: "sub-coffee"},
				{Type: model.ActionSetPayee, PayeeName: "Blue Bottle"},
			},
		}},
		AllocationRules: []model.AllocationRule{{
			ID:        "alloc-split",
			Name:      "Split",
			Enabled:   true,
			Scope:     model.BaseScope{Type: model.ScopeAllIncome},
			Tolerance: d("0"),
			Purposes: []model.Purpose{
				{ID: "p-save", Name: "Savings", Percentage: d("50"), TargetType: model.TargetLabel, TargetLabel: "savings"},
				{ID: "p-spend", Name: "Spending", Percentage: d("50"), TargetType: model.TargetAccount, TargetID: "acc-joint"},
			},
		}},
	}
}

func newTestStore(t *testing.T, opts ...Option) (*Store, *memPersister) {
	t.Helper()
	p := &memPersister{}
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return NewStore(fixture(), p, opts...), p
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	t.Run("empty persister starts a fresh ledger", func(t *testing.T) {
		s, err := Open(ctx, &memPersister{}, "EUR")
		require.NoError(t, err)
		assert.Equal(t, "EUR", s.Snapshot().Settings.BaseCurrency)
	})

	t.Run("loads saved snapshot", func(t *testing.T) {
		s, err := Open(ctx, &memPersister{saved: fixture()}, "EUR")
		require.NoError(t, err)
		assert.Equal(t, "GBP", s.Snapshot().Settings.BaseCurrency)
		assert.Len(t, s.Snapshot().Transactions, 3)
	})

	t.Run("load failure", func(t *testing.T) {
		_, err := Open(ctx, &failingLoader{}, "GBP")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to load ledger")
	})
}

type failingLoader struct{ memPersister }

func (failingLoader) Load(context.Context) (*Snapshot, error) { return nil, errors.New("disk on fire") }

func TestStore_SnapshotIsACopy(t *testing.T) {
	s, _ := newTestStore(t)
	snap := s.Snapshot()
	snap.Transactions[0].Description = "changed"
	snap.Transactions[0].TagIDs = append(snap.Transactions[0].TagIDs, "x")

	fresh := s.Snapshot()
	assert.Equal(t, "ACME PAYROLL", fresh.Transactions[0].Description)
	assert.Empty(t, fresh.Transactions[0].TagIDs)
}

func TestStore_PersistFailureLeavesLedgerUntouched(t *testing.T) {
	s, p := newTestStore(t)
	p.err = errors.New("read-only")

	_, err := s.RunRules(context.Background(), nil, RunOptions{})
	require.Error(t, err)

	snap := s.Snapshot()
	assert.Empty(t, snap.RunLog)
	assert.Empty(t, snap.Transactions[1].CategoryID)
	assert.Empty(t, snap.Payees)
}

func TestStore_UpdateError(t *testing.T) {
	s, p := newTestStore(t)
	err := s.Update(context.Background(), func(next *Snapshot) error {
		next.Transactions = nil
		return errors.New("abort")
	})
	require.Error(t, err)
	assert.Len(t, s.Snapshot().Transactions, 3)
	assert.Zero(t, p.saves)
}

func TestPrependCapped(t *testing.T) {
	var log []model.RuleRunLogEntry
	for i := range 5 {
		log = prependCapped(log, model.RuleRunLogEntry{ID: fmt.Sprint(i)}, 3)
	}
	require.Len(t, log, 3)
	assert.Equal(t, "4", log[0].ID)
	assert.Equal(t, "2", log[2].ID)
}
