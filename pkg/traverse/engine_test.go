package traverse

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nerdneilsfield/go-glance/internal/testutils"
	"github.com/nerdneilsfield/go-glance/pkg/backend"
	"github.com/nerdneilsfield/go-glance/pkg/notify"
	"github.com/nerdneilsfield/go-glance/pkg/overlay"
)

func el(text string) *backend.Element {
	return testutils.TextElement(text, 10, 10, 12, 6)
}

func TestEngineIndexResetsPerPage(t *testing.T) {
	doc := testutils.NewFakeDocument("in.pdf",
		[]*backend.Element{el("a"), el("b"), el("c")},
		[]*backend.Element{el("d"), el("e")},
	)
	bus := notify.NewBus(nil)

	type seen struct{ page, index int }
	var got []seen
	var order []string
	bus.OnOpenDocument(func(ev notify.OpenDocument) error {
		order = append(order, "open")
		assert.Equal(t, 2, ev.PageCount)
		assert.Equal(t, "in.pdf", ev.Filename)
		return nil
	})
	bus.OnBeginPage(func(ev notify.BeginPage) error {
		order = append(order, "begin")
		assert.Equal(t, 0, ev.Overlays.Len())
		return nil
	})
	bus.OnElement(func(ev notify.Element) error {
		got = append(got, seen{ev.PageNumber, ev.Index})
		return nil
	})
	bus.OnEndPage(func(ev notify.EndPage) error {
		order = append(order, "end")
		return nil
	})

	summary, err := NewEngine(bus, zap.NewNop()).Run(context.Background(), doc, backend.ReadOnly)
	require.NoError(t, err)

	assert.Equal(t, []seen{{1, 1}, {1, 2}, {1, 3}, {2, 1}, {2, 2}}, got)
	assert.Equal(t, []string{"open", "begin", "end", "begin", "end"}, order)
	assert.Equal(t, Summary{Pages: 2, Elements: 5}, summary)
}

func TestEngineCopyThrough(t *testing.T) {
	a, b := el("alpha"), el("beta")
	doc := testutils.NewFakeDocument("in.pdf", []*backend.Element{a, b})
	bus := notify.NewBus(nil)

	// 第二个元素由订阅者替换
	replacement := el("BETA")
	bus.OnElement(func(ev notify.Element) error {
		if ev.Index == 2 {
			return ev.Writer.Write(replacement)
		}
		return nil
	})

	_, err := NewEngine(bus, nil).Run(context.Background(), doc, backend.ReadWrite)
	require.NoError(t, err)

	w := doc.Pages[0].W
	require.Len(t, w.Written, 2)
	assert.Same(t, a, w.Written[0])
	assert.Same(t, replacement, w.Written[1])
	assert.True(t, doc.Pages[0].Finished)
}

func TestEngineReadOnlyWritesNothing(t *testing.T) {
	doc := testutils.NewFakeDocument("in.pdf", []*backend.Element{el("x")})
	bus := notify.NewBus(nil)
	bus.OnElement(func(ev notify.Element) error {
		assert.Nil(t, ev.Writer)
		ev.Overlays.Enqueue(overlay.Box{Width: 1, Height: 1})
		return nil
	})

	summary, err := NewEngine(bus, nil).Run(context.Background(), doc, backend.ReadOnly)
	require.NoError(t, err)
	assert.Empty(t, doc.Pages[0].W.Written)
	assert.Empty(t, doc.Pages[0].W.Placed)
	assert.Equal(t, 0, summary.Boxes)
}

func TestEngineDegradesFailingElement(t *testing.T) {
	bad := el("bad")
	doc := testutils.NewFakeDocument("in.pdf", []*backend.Element{el("ok"), bad, el("fine")})
	bus := notify.NewBus(nil)
	bus.OnElement(func(ev notify.Element) error {
		ev.Overlays.Enqueue(overlay.Box{X: float64(ev.Index)})
		if ev.Element == bad {
			// 部分写出后失败
			_ = ev.Writer.Write(el("partial"))
			return errors.New("font missing")
		}
		return nil
	})

	summary, err := NewEngine(bus, nil).Run(context.Background(), doc, backend.ReadWrite)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Degraded)
	assert.Equal(t, []string{"ok", "bad", "fine"}, doc.Pages[0].W.Texts())

	// 失败元素排入的框被丢弃，其余按 FIFO 绘制
	placed := doc.Pages[0].W.Placed
	require.Len(t, placed, 2)
	assert.Equal(t, 1.0, placed[0].BBox.X)
	assert.Equal(t, 3.0, placed[1].BBox.X)
	assert.Equal(t, 2, summary.Boxes)
}

func TestEngineFlushesQueueFIFO(t *testing.T) {
	doc := testutils.NewFakeDocument("in.pdf", []*backend.Element{el("x")}, []*backend.Element{el("y")})
	bus := notify.NewBus(nil)
	red := overlay.Color{R: 1, A: 1}
	bus.OnElement(func(ev notify.Element) error {
		for i := 0; i < 3; i++ {
			ev.Overlays.Enqueue(overlay.Box{X: float64(i), Y: float64(ev.PageNumber), Color: red})
		}
		return nil
	})
	bus.OnEndPage(func(ev notify.EndPage) error {
		assert.Equal(t, 3, ev.Overlays.Len())
		return nil
	})

	summary, err := NewEngine(bus, nil).Run(context.Background(), doc, backend.ReadWrite)
	require.NoError(t, err)
	assert.Equal(t, 6, summary.Boxes)

	for _, p := range doc.Pages {
		require.Len(t, p.W.Placed, 3)
		for i, rect := range p.W.Placed {
			assert.Equal(t, float64(i), rect.BBox.X)
			assert.Equal(t, float64(p.Num), rect.BBox.Y)
			require.NotNil(t, rect.Fill)
			assert.Equal(t, red, *rect.Fill)
		}
	}
}

func TestEnginePageFilter(t *testing.T) {
	doc := testutils.NewFakeDocument("in.pdf",
		[]*backend.Element{el("a")},
		[]*backend.Element{el("b")},
		[]*backend.Element{el("c")},
	)
	filter, err := ParsePageList("2")
	require.NoError(t, err)

	bus := notify.NewBus(nil)
	selected := map[int]bool{}
	bus.OnBeginPage(func(ev notify.BeginPage) error {
		selected[ev.PageNumber] = ev.Selected
		return nil
	})

	summary, err := NewEngine(bus, nil, WithPageFilter(filter)).Run(context.Background(), doc, backend.ReadWrite)
	require.NoError(t, err)
	assert.Equal(t, map[int]bool{1: false, 2: true, 3: false}, selected)
	assert.Equal(t, 3, summary.Pages)
	for _, p := range doc.Pages {
		assert.Len(t, p.W.Written, 1)
	}
}

func TestEngineRejectsNonIncreasingPages(t *testing.T) {
	doc := testutils.NewFakeDocument("in.pdf", []*backend.Element{el("a")}, []*backend.Element{el("b")})
	doc.Pages[1].Num = 1

	_, err := NewEngine(notify.NewBus(nil), nil).Run(context.Background(), doc, backend.ReadOnly)
	var be *backend.BackendError
	require.ErrorAs(t, err, &be)
}

func TestEngineRequiresFirstPageOne(t *testing.T) {
	for _, num := range []int{0, 2} {
		doc := testutils.NewFakeDocument("in.pdf", []*backend.Element{el("a")})
		doc.Pages[0].Num = num
		var pages int
		bus := notify.NewBus(nil)
		bus.OnBeginPage(func(notify.BeginPage) error {
			pages++
			return nil
		})

		summary, err := NewEngine(bus, nil).Run(context.Background(), doc, backend.ReadOnly)
		var be *backend.BackendError
		require.ErrorAs(t, err, &be)
		assert.ErrorContains(t, err, "want 1")
		assert.Zero(t, summary.Pages)
		assert.Zero(t, pages, "no page is published")
	}
}

func TestEngineIterationFailureIsFatal(t *testing.T) {
	doc := testutils.NewFakeDocument("in.pdf", []*backend.Element{el("a")})
	doc.NextErr = errors.New("broken xref")

	_, err := NewEngine(notify.NewBus(nil), nil).Run(context.Background(), doc, backend.ReadOnly)
	var be *backend.BackendError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, "next page", be.Op)
}

func TestParsePageList(t *testing.T) {
	tests := []struct {
		in      string
		want    PageList
		wantErr bool
	}{
		{"", nil, false},
		{"3", PageList{{3, 3}}, false},
		{"1,3-5", PageList{{1, 1}, {3, 5}}, false},
		{"7-, 2", PageList{{2, 2}, {7, 0}}, false},
		{"5-3", nil, true},
		{"0", nil, true},
		{"a-b", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePageList(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	list, _ := ParsePageList("1,3-5,9-")
	assert.True(t, list.Selected(4))
	assert.False(t, list.Selected(2))
	assert.True(t, list.Selected(100))
	assert.Equal(t, "1,3-5,9-", list.String())
	assert.True(t, PageList(nil).Selected(42))
}
