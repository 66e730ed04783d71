package doctor

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm/tombstone/internal/testutil"
	"github.com/pthm/tombstone/pkg/entity"
)

func TestReport_Print(t *testing.T) {
	r := &Report{}
	r.AddCheck(CheckResult{Category: "Catalog", Name: "a", Status: StatusPass, Message: "all good", Details: "hidden unless verbose"})
	r.AddCheck(CheckResult{Category: "orders", Name: "b", Status: StatusWarn, Message: "careful", FixHint: "do this"})
	r.AddCheck(CheckResult{Category: "orders", Name: "c", Status: StatusFail, Message: "broken", Details: "line 1\nline 2"})

	var buf bytes.Buffer
	r.Print(&buf, false)
	assert.Equal(t,
		"\nCatalog\n"+
			"  ✓ all good\n"+
			"\norders\n"+
			"  ⚠ careful\n"+
			"      Fix: do this\n"+
			"  ✗ broken\n"+
			"\nSummary: 1 passed, 1 warnings, 1 errors\n",
		buf.String())

	buf.Reset()
	r.Print(&buf, true)
	assert.Contains(t, buf.String(), "      hidden unless verbose\n")
	assert.Contains(t, buf.String(), "      line 1\n      line 2\n")

	assert.True(t, r.HasErrors())
	got, ok := r.Find("orders", "b")
	require.True(t, ok)
	assert.Equal(t, "careful", got.Message)
	_, ok = r.Find("orders", "missing")
	assert.False(t, ok)
}

func TestStatus(t *testing.T) {
	assert.Equal(t, "pass", StatusPass.String())
	assert.Equal(t, "fail", StatusFail.String())
	assert.Equal(t, "unknown", Status(9).String())
	assert.Equal(t, "?", Status(9).Symbol())
}

func TestRun_NoSoftDeletableEntities(t *testing.T) {
	catalog, err := entity.NewCatalogFromEntities(entity.Entity{Name: "countries", IdentityColumn: "code"})
	require.NoError(t, err)

	// No database access is needed when nothing is soft-deletable.
	report, err := New(nil, catalog).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Checks, 1)
	assert.Equal(t, StatusWarn, report.Checks[0].Status)
}

func TestRun_Integration(t *testing.T) {
	db := testutil.DB(t)
	_, err := db.Exec(`
		CREATE TABLE strict (id BIGINT PRIMARY KEY, deleted_at TIMESTAMPTZ NOT NULL DEFAULT now());
		CREATE TABLE flagged (id BIGINT PRIMARY KEY, removed BOOLEAN);
		CREATE INDEX users_live ON users (id) WHERE deleted_at IS NULL;
	`)
	require.NoError(t, err)

	catalog, err := entity.NewCatalogFromEntities(
		entity.Entity{Name: "users", DeletedAtColumn: "deleted_at", IdentityColumn: "id"},
		entity.Entity{Name: "orders", DeletedAtColumn: "deleted_at", IdentityColumn: "uuid"},
		entity.Entity{Name: "notes", DeletedAtColumn: "deleted_at"},
		entity.Entity{Name: "strict", DeletedAtColumn: "deleted_at", IdentityColumn: "id"},
		entity.Entity{Name: "flagged", DeletedAtColumn: "removed", IdentityColumn: "id"},
		entity.Entity{Name: "ghosts", DeletedAtColumn: "deleted_at", IdentityColumn: "id"},
		entity.Entity{Name: "countries", IdentityColumn: "code"},
	)
	require.NoError(t, err)

	report, err := New(db, catalog).Run(context.Background())
	require.NoError(t, err)

	tests := []struct {
		category, name string
		want           Status
	}{
		{"Catalog", "soft_deletable", StatusPass},
		{"users", "deleted_at_column", StatusPass},
		{"users", "identity_column", StatusPass},
		{"users", "deleted_at_index", -1},
		{"orders", "identity_column", StatusFail},
		{"orders", "deleted_at_index", StatusWarn},
		{"notes", "identity_column", StatusWarn},
		{"strict", "deleted_at_column", StatusFail},
		{"flagged", "deleted_at_column", StatusWarn},
		{"ghosts", "table_exists", StatusFail},
	}
	for _, tt := range tests {
		t.Run(tt.category+"/"+tt.name, func(t *testing.T) {
			got, ok := report.Find(tt.category, tt.name)
			if tt.want < 0 {
				assert.False(t, ok, "unexpected check: %+v", got)
				return
			}
			require.True(t, ok)
			assert.Equal(t, tt.want, got.Status, got.Message)
		})
	}

	catalogCheck, _ := report.Find("Catalog", "soft_deletable")
	assert.Equal(t, "6 of 7 entities are soft-deletable", catalogCheck.Message)
	assert.Equal(t, "Not filtered: countries", catalogCheck.Details)
	assert.True(t, report.HasErrors())
}
