package database

import (
	"context"

	"gorm.io/gorm"
)

type txKey struct{}

// TxManager 事务管理器
// Do 内的所有仓储调用通过 Conn(ctx, db) 共享同一个事务
type TxManager interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

type gormTxManager struct {
	db *gorm.DB
}

// NewTxManager 创建基于 gorm 的事务管理器
func NewTxManager(db *gorm.DB) TxManager {
	return &gormTxManager{db: db}
}

// Do 在事务中执行 fn；fn 返回错误或 panic 时回滚
// 已处于事务中时使用 SAVEPOINT 嵌套
func (m *gormTxManager) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	return Conn(ctx, m.db).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

// Conn 返回上下文中的事务，没有事务时返回 db 本身
func Conn(ctx context.Context, db *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx.WithContext(ctx)
	}
	return db.WithContext(ctx)
}
