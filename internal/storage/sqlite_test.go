package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/tithe/internal/common"
	"github.com/Veraticus/tithe/internal/ledger"
	"github.com/Veraticus/tithe/internal/model"
)

// createTestStorage opens a migrated database in a temp dir.
func createTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	store, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func testSnapshot() *ledger.Snapshot {
	date := time.Date(2024, 3, 28, 0, 0, 0, 0, time.UTC)
	flow := model.FlowTransfer
	return &ledger.Snapshot{
		Settings: model.Settings{
			BaseCurrency:  "GBP",
			ExchangeRates: []model.ExchangeRate{{Currency: "USD", RateToBase: decimal.RequireFromString("0.79")}},
		},
		Accounts:   []model.Account{{ID: "acc-1", Name: "Main", Provider: "Monzo", Currency: "GBP"}},
		Categories: []model.Category{{ID: "cat-income", Name: "Income", Kind: model.CategoryKindIncome}},
		Tags:       []model.Tag{{ID: "tag-1", Name: "Review"}},
		Transactions: []model.Transaction{{
			ID:           "t1",
			AccountID:    "acc-1",
			Date:         date,
			Amount:       decimal.RequireFromString("2000.10"),
			Currency:     "GBP",
			Description:  "ACME PAYROLL",
			TagIDs:       []string{"tag-1"},
			FlowOverride: &flow,
			Metadata:     map[string]string{"fitid": "abc"},
		}},
		RunLog: []model.RuleRunLogEntry{{ID: "run-1", Mode: model.RunManual, Source: "manual", RanAt: date}},
	}
}

func TestMigrate(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	version, err := store.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, ExpectedSchemaVersion, version)

	require.NoError(t, store.Migrate(ctx), "migrate is idempotent")
}

func TestLoad_Empty(t *testing.T) {
	store := createTestStorage(t)
	_, err := store.Load(context.Background())
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestSaveLoad(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()
	snap := testSnapshot()

	require.NoError(t, store.Save(ctx, snap))
	got, err := store.Load(ctx)
	require.NoError(t, err)

	assert.Equal(t, "GBP", got.Settings.BaseCurrency)
	require.Len(t, got.Settings.ExchangeRates, 1)
	assert.True(t, got.Settings.ExchangeRates[0].RateToBase.Equal(decimal.RequireFromString("0.79")))

	require.Len(t, got.Transactions, 1)
	txn := got.Transactions[0]
	assert.True(t, txn.Amount.Equal(decimal.RequireFromString("2000.10")))
	assert.True(t, txn.Date.Equal(snap.Transactions[0].Date))
	assert.Equal(t, []string{"tag-1"}, txn.TagIDs)
	require.NotNil(t, txn.FlowOverride)
	assert.Equal(t, model.FlowTransfer, *txn.FlowOverride)
	assert.Equal(t, "abc", txn.Metadata["fitid"])
	assert.Equal(t, snap.Accounts, got.Accounts)
	require.Len(t, got.RunLog, 1)
	assert.Equal(t, "run-1", got.RunLog[0].ID)
}

func TestSave_Overwrites(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	snap := testSnapshot()
	require.NoError(t, store.Save(ctx, snap))

	snap.Transactions = nil
	snap.Tags = append(snap.Tags, model.Tag{ID: "tag-2", Name: "Tax"})
	require.NoError(t, store.Save(ctx, snap))

	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, got.Transactions)
	assert.Len(t, got.Tags, 2)

	sizes, err := store.SectionSizes(ctx)
	require.NoError(t, err)
	assert.Len(t, sizes, len(sections))
	assert.Equal(t, len("null"), sizes["transactions"])
}

func TestSave_Validation(t *testing.T) {
	store := createTestStorage(t)
	//nolint:staticcheck // exercising nil context handling
	require.ErrorIs(t, store.Save(nil, testSnapshot()), ErrNilContext)
	require.ErrorIs(t, store.Save(context.Background(), nil), ErrNilParameter)
}

func TestLoad_Corrupted(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, testSnapshot()))

	_, err := store.db.ExecContext(ctx, `UPDATE ledger_state SET value = '{not json' WHERE key = 'rules'`)
	require.NoError(t, err)

	_, err = store.Load(ctx)
	require.ErrorIs(t, err, common.ErrDatabaseCorrupted)
}

func TestNewSQLiteStorage_EmptyPath(t *testing.T) {
	_, err := NewSQLiteStorage(" ")
	require.ErrorIs(t, err, ErrEmptyString)
}

func TestStorageBacksLedgerStore(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, testSnapshot()))

	l, err := ledger.Open(ctx, store, "EUR")
	require.NoError(t, err)

	_, problems, err := l.SaveRule(ctx, model.ClassificationRule{
		ID:      "rule-1",
		Name:    "Tag payroll",
		Enabled: true,
		Actions: []model.Action{{Type: model.ActionSetPayee, PayeeName: "ACME"}},
	})
	require.NoError(t, err)
	require.Empty(t, problems)
	_, err = l.RunRules(ctx, nil, ledger.RunOptions{})
	require.NoError(t, err)

	reopened, err := ledger.Open(ctx, store, "EUR")
	require.NoError(t, err)
	snap := reopened.Snapshot()
	assert.Equal(t, "GBP", snap.Settings.BaseCurrency)
	assert.Equal(t, model.PayeeID("ACME"), snap.Transactions[0].PayeeID)
	assert.Len(t, snap.RunLog, 2)
}
