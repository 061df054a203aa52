// Package console 实现终端交互式检索。
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"wikisearch/internal/service"
	"wikisearch/pkg/embedding"
	"wikisearch/pkg/log"
)

const (
	prompt        = "Enter query text: "
	snippetLength = 200
)

// QueryLoop 循环读取查询并打印检索结果。
type QueryLoop struct {
	svc  service.SearchService
	in   io.Reader
	out  io.Writer
	size int
}

// NewQueryLoop 创建 QueryLoop。size <= 0 时使用 SearchService 的默认条数。
func NewQueryLoop(svc service.SearchService, in io.Reader, out io.Writer, size int) *QueryLoop {
	return &QueryLoop{svc: svc, in: in, out: out, size: size}
}

// Run 在 ctx 被取消或输入结束时返回 nil。查询中没有已知词时打印提示并继续，其他检索错误直接返回。
func (l *QueryLoop) Run(ctx context.Context) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(l.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	for {
		fmt.Fprint(l.out, prompt)
		select {
		case <-ctx.Done():
			fmt.Fprintln(l.out)
			log.Info("[QueryLoop] 收到退出信号")
			return nil
		case query, ok := <-lines:
			if !ok {
				fmt.Fprintln(l.out)
				select {
				case err := <-readErr:
					if err != nil {
						return fmt.Errorf("读取输入失败: %w", err)
					}
				default:
				}
				return nil
			}
			if err := l.handle(ctx, query); err != nil {
				return err
			}
		}
	}
}

func (l *QueryLoop) handle(ctx context.Context, query string) error {
	res, err := l.svc.Search(ctx, query, l.size)
	if errors.Is(err, embedding.ErrNoKnownTokens) {
		fmt.Fprintln(l.out, "\nno known words in query, try another one.")
		return nil
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}

	fmt.Fprintf(l.out, "\n%d total hits.\n", res.Total)
	fmt.Fprintf(l.out, "encoding time: %.2f ms\n", millis(res.EncodingTime))
	fmt.Fprintf(l.out, "search time: %.2f ms\n", millis(res.SearchTime))
	for _, hit := range res.Hits {
		fmt.Fprintf(l.out, "id: %s, score: %v\n", hit.ID, hit.Score)
		fmt.Fprintln(l.out, hit.Title)
		fmt.Fprintln(l.out, truncate(hit.Text, snippetLength))
		fmt.Fprintln(l.out)
	}
	return nil
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// truncate 按字符（rune）截取前 n 个字符。
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
