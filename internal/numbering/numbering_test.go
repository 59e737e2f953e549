package numbering

import (
	"context"
	"fmt"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&Sequence{}))
	return conn
}

func TestNextAllocatesSequentialNumbers(t *testing.T) {
	conn := newTestDB(t)
	alloc := NewAllocator()
	ctx := context.Background()

	var first, second string
	require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
		var err error
		first, err = alloc.Next(ctx, tx, ScopeCustomer, "CUST")
		return err
	}))
	require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
		var err error
		second, err = alloc.Next(ctx, tx, ScopeCustomer, "CUST")
		return err
	}))

	assert.Equal(t, "CUST-000001", first)
	assert.Equal(t, "CUST-000002", second)
}

func TestNextScopesAreIndependent(t *testing.T) {
	conn := newTestDB(t)
	alloc := NewAllocator()
	ctx := context.Background()

	var customer, bill string
	require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
		var err error
		customer, err = alloc.Next(ctx, tx, ScopeCustomer, "CUST")
		if err != nil {
			return err
		}
		bill, err = alloc.Next(ctx, tx, ScopeBill, "BILL")
		return err
	}))

	assert.Equal(t, "CUST-000001", customer)
	assert.Equal(t, "BILL-000001", bill)
}

func TestNextRejectsEmptyScope(t *testing.T) {
	conn := newTestDB(t)
	alloc := NewAllocator()

	err := conn.Transaction(func(tx *gorm.DB) error {
		_, err := alloc.Next(context.Background(), tx, "  ", "X")
		return err
	})
	assert.Error(t, err)
}
