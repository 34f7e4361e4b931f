// Package testsupport provides the shared test database and fixture
// builders used across the package tests. Tests run against an in-memory
// SQLite database opened through the bundled shim, so no external engine
// is needed.
package testsupport

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"github.com/Nkambwe/Mfi-Mananger-sub000/models"
)

// NewDB opens a fresh in-memory database scoped to the test. The handle is
// pinned to one connection so the in-memory database survives connection
// pool churn, and it is closed automatically when the test finishes.
func NewDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, "file::memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// CreateSchema creates the tables for every domain model.
func CreateSchema(t *testing.T, db *bun.DB) {
	t.Helper()

	ctx := context.Background()
	for _, model := range []any{
		(*models.Branch)(nil),
		(*models.Member)(nil),
		(*models.LoanAccount)(nil),
		(*models.LoanTransaction)(nil),
		(*models.ActivityLog)(nil),
	} {
		_, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx)
		require.NoError(t, err)
	}
}

// NewTestDB is NewDB plus CreateSchema.
func NewTestDB(t *testing.T) *bun.DB {
	t.Helper()
	db := NewDB(t)
	CreateSchema(t, db)
	return db
}

// NewBranch returns a valid branch fixture.
func NewBranch(code string) *models.Branch {
	return &models.Branch{
		Code:     code,
		Name:     "Branch " + code,
		Address:  "Plot 12 Kampala Road",
		Phone:    "+256700000000",
		IsActive: true,
	}
}

// NewMember returns a valid member fixture under the given branch.
func NewMember(branchID int64, memberNo string) *models.Member {
	return &models.Member{
		BranchID:  branchID,
		MemberNo:  memberNo,
		FirstName: "Test",
		LastName:  "Member",
		Email:     "member@example.com",
		Phone:     "+256700000001",
		IsActive:  true,
	}
}

// NewLoanAccount returns a valid active loan fixture for the given member.
func NewLoanAccount(memberID, branchID int64, accountNo string) *models.LoanAccount {
	return &models.LoanAccount{
		MemberID:     memberID,
		BranchID:     branchID,
		AccountNo:    accountNo,
		Principal:    1_000_000,
		Balance:      1_000_000,
		InterestRate: 18.5,
		TermMonths:   12,
		Status:       models.LoanActive,
	}
}

// NewTransaction returns a valid repayment fixture for the given account.
func NewTransaction(accountID int64, reference string) *models.LoanTransaction {
	return &models.LoanTransaction{
		AccountID: accountID,
		Type:      models.TxnRepayment,
		Amount:    125_000,
		Reference: reference,
		Narrative: "monthly repayment",
	}
}
