// Package contextx 提供跨层传递事务句柄的 context 工具
package contextx

import "context"

type txKey struct{}

// WithTx 将事务句柄写入 context，供下游仓储复用同一事务
func WithTx(ctx context.Context, tx any) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// GetTx 从 context 中取出事务句柄，不存在时返回 nil
func GetTx(ctx context.Context) any {
	if ctx == nil {
		return nil
	}
	return ctx.Value(txKey{})
}
