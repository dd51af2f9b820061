package catalog_repo

import (
	"testing"

	"github.com/Masterminds/squirrel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tally/internal/core/id"
	"tally/internal/domain/catalogs/partners"
)

func TestBaseRepo_SelectScopesByCompany(t *testing.T) {
	repo := NewBaseRepo[any](nil, "test_table", "test", []string{"id", "name"}, func() any { return nil })
	companyID := id.New()
	entityID := id.New()

	sql, args, err := repo.baseSelect(companyID).Where(squirrel.Eq{"id": entityID}).Suffix("FOR UPDATE").ToSql()
	require.NoError(t, err)

	assert.Equal(t, "SELECT id, name FROM test_table WHERE company_id = $1 AND id = $2 FOR UPDATE", sql)
	assert.Equal(t, []any{companyID.String(), entityID.String()}, args)
}

func TestBaseRepo_DeleteSQL(t *testing.T) {
	repo := NewBaseRepo[any](nil, "test_table", "test", []string{"id", "name"}, func() any { return nil })
	entityID := id.New()
	companyID := id.New()

	sql, args, err := repo.Builder().
		Delete(repo.tableName).
		Where(squirrel.Eq{"id": entityID, "company_id": companyID}).
		Where(kindIs(partners.SupplierRef(entityID))).
		ToSql()
	require.NoError(t, err)

	assert.Equal(t, "DELETE FROM test_table WHERE company_id = $1 AND id = $2 AND kind = $3", sql)
	assert.Equal(t, []any{companyID.String(), entityID.String(), partners.KindSupplier}, args)
}

func TestBaseRepo_GuardedColumnsStayOutOfUpdate(t *testing.T) {
	repo := NewAccountRepo(nil)
	assert.Contains(t, repo.guarded, "balance")
	assert.Contains(t, repo.selectCols, "balance")
	assert.Contains(t, repo.selectCols, "company_id")
}
