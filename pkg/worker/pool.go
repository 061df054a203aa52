// Package worker 提供有界并发的 Map：任务互相独立，结果按输入顺序返回。
package worker

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Map 使用最多 workers 个 goroutine 对 items 逐个调用 fn，返回与 items 顺序一致的结果。
// 任意一个任务出错时取消其余任务，并返回第一个错误。workers <= 0 时不限制并发数。
func Map[T, R any](ctx context.Context, workers int, items []T, fn func(ctx context.Context, item T) (R, error)) ([]R, error) {
	results := make([]R, len(items))
	if len(items) == 0 {
		return results, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i := range items {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r, err := fn(gctx, items[i])
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Chunks 把 [0, n) 切成最多 parts 段连续区间，用于把线性扫描分给多个 worker。
func Chunks(n, parts int) [][2]int {
	if n <= 0 {
		return nil
	}
	if parts <= 0 || parts > n {
		parts = n
	}
	size := (n + parts - 1) / parts
	out := make([][2]int, 0, parts)
	for start := 0; start < n; start += size {
		end := start + size
		if end > n {
			end = n
		}
		out = append(out, [2]int{start, end})
	}
	return out
}
