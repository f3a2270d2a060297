package repository

import (
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// setupMockDB 创建模拟数据库
func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}

	dialector := postgres.New(postgres.Config{
		Conn:       db,
		DriverName: "postgres",
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open gorm db: %v", err)
	}

	cleanup := func() {
		db.Close()
	}

	return gormDB, mock, cleanup
}

// TestIsRetryableError 测试可重试错误判断
func TestIsRetryableError(t *testing.T) {
	assert.False(t, isRetryableError(nil))
	assert.False(t, isRetryableError(errors.New("some error")))

	assert.True(t, isRetryableError(&pgconn.PgError{Code: "40001"}))
	assert.True(t, isRetryableError(&pgconn.PgError{Code: "40P01"}))
	assert.True(t, isRetryableError(&pgconn.PgError{Code: "08006"}))
	assert.False(t, isRetryableError(&pgconn.PgError{Code: "23505"}))
}

// TestIsDuplicateKeyError 测试唯一约束冲突判断
func TestIsDuplicateKeyError(t *testing.T) {
	assert.False(t, isDuplicateKeyError(nil))
	assert.False(t, isDuplicateKeyError(errors.New("some error")))

	assert.True(t, isDuplicateKeyError(&pgconn.PgError{Code: "23505"}))
	assert.True(t, isDuplicateKeyError(gorm.ErrDuplicatedKey))
	assert.True(t, isDuplicateKeyError(errors.New(`duplicate key value violates unique constraint "custodial_wallets_public_address_key"`)))
}

// TestPagination 测试分页参数
func TestPagination(t *testing.T) {
	p := &Pagination{Page: 3, PageSize: 10}
	assert.Equal(t, 20, p.Offset())
	assert.Equal(t, 10, p.Limit())

	// 缺省值
	p = &Pagination{}
	assert.Equal(t, 0, p.Offset())
	assert.Equal(t, 20, p.Limit())

	// 上限
	p = &Pagination{Page: 1, PageSize: 500}
	assert.Equal(t, 100, p.Limit())
}
