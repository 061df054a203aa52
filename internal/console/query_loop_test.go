package console

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wikisearch/internal/model"
	"wikisearch/internal/service"
	"wikisearch/pkg/embedding"
)

type fakeService struct {
	queries []string
	sizes   []int
	res     *service.SearchResult
	err     map[string]error
}

func (f *fakeService) Search(_ context.Context, query string, size int) (*service.SearchResult, error) {
	f.queries = append(f.queries, query)
	f.sizes = append(f.sizes, size)
	if err := f.err[query]; err != nil {
		return nil, err
	}
	return f.res, nil
}

func TestRun_PrintsHitsUntilEOF(t *testing.T) {
	svc := &fakeService{res: &service.SearchResult{
		Total:        1234,
		EncodingTime: 1500 * time.Microsecond,
		SearchTime:   12 * time.Millisecond,
		Hits: []model.SearchHit{
			{ID: "42", Score: 1.75, Title: "東京", Text: strings.Repeat("あ", 250)},
		},
	}}
	var out bytes.Buffer
	loop := NewQueryLoop(svc, strings.NewReader("東京\n"), &out, 10)

	require.NoError(t, loop.Run(context.Background()))

	assert.Equal(t, []string{"東京"}, svc.queries)
	assert.Equal(t, []int{10}, svc.sizes)

	want := "Enter query text: \n" +
		"1234 total hits.\n" +
		"encoding time: 1.50 ms\n" +
		"search time: 12.00 ms\n" +
		"id: 42, score: 1.75\n" +
		"東京\n" +
		strings.Repeat("あ", 200) + "\n" +
		"\n" +
		"Enter query text: \n"
	assert.Equal(t, want, out.String())
}

func TestRun_NoKnownTokensContinues(t *testing.T) {
	svc := &fakeService{
		res: &service.SearchResult{},
		err: map[string]error{"ｘｙｚ": fmt.Errorf("wrapped: %w", embedding.ErrNoKnownTokens)},
	}
	var out bytes.Buffer
	loop := NewQueryLoop(svc, strings.NewReader("ｘｙｚ\n東京\n"), &out, 0)

	require.NoError(t, loop.Run(context.Background()))
	assert.Equal(t, []string{"ｘｙｚ", "東京"}, svc.queries)
	assert.Contains(t, out.String(), "no known words in query")
	assert.Contains(t, out.String(), "0 total hits.")
}

func TestRun_SearchErrorStopsLoop(t *testing.T) {
	boom := errors.New("connection refused")
	svc := &fakeService{err: map[string]error{"東京": boom}}
	loop := NewQueryLoop(svc, strings.NewReader("東京\n大阪\n"), io.Discard, 0)

	err := loop.Run(context.Background())
	require.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"東京"}, svc.queries)
}

func TestRun_ReturnsOnCancel(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- NewQueryLoop(&fakeService{}, pr, io.Discard, 0).Run(ctx)
	}()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("query loop did not stop after cancel")
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 200))
	assert.Equal(t, "日本", truncate("日本語", 2))
	assert.Equal(t, "", truncate("", 2))
}
