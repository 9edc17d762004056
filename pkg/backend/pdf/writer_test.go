package pdf

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsawler/tabula/core"
	"go.uber.org/zap"

	"github.com/nerdneilsfield/go-glance/pkg/backend"
	"github.com/nerdneilsfield/go-glance/pkg/overlay"
)

// newTestPage 用内容流构造一个不依赖文件的可写页面；字体未知时按默认宽度 500 计算
func newTestPage(t *testing.T, content string) *Page {
	t.Helper()
	ops, err := parseContent([]byte(content))
	require.NoError(t, err)
	doc := &Document{mode: backend.ReadWrite, fonts: newFontRegistry(), logger: zap.NewNop()}
	p := &Page{
		doc:       doc,
		number:    1,
		resources: core.Dict{},
		ops:       ops,
		tracker:   newTracker(),
		fonts:     map[string]*pageFont{},
	}
	p.builder = &builder{page: p}
	p.writer = newPageWriter(p)
	return p
}

func readAll(t *testing.T, p *Page) []*backend.Element {
	t.Helper()
	var out []*backend.Element
	for {
		el, err := p.Next(context.Background())
		if errors.Is(err, io.EOF) {
			return out
		}
		require.NoError(t, err)
		out = append(out, el)
	}
}

func testFont() *embeddedFont {
	f := &embeddedFont{res: "GlF1", family: "Test Sans", bold: true, missingW: 600}
	for i := range f.widths {
		f.widths[i] = 600
	}
	return f
}

func TestElementGrouping(t *testing.T) {
	p := newTestPage(t, "q 1 0 0 1 10 20 cm 0 0 m 10 0 l 10 10 l S Q "+
		"BT /F1 10 Tf 0 0 Td [(A) -250 (B)] TJ ET "+
		"/Im1 Do BI /W 2 /H 2 ID \x01\x02\x03\x04 EI /P BMC EMC 0 0 1 rg /Sh1 sh")
	els := readAll(t, p)

	var types []backend.ElementType
	for _, el := range els {
		types = append(types, el.Type)
	}
	assert.Equal(t, []backend.ElementType{
		backend.ElementGraphicsState, backend.ElementGraphicsState, backend.ElementPath, backend.ElementGraphicsState,
		backend.ElementTextBegin, backend.ElementGraphicsState, backend.ElementGraphicsState, backend.ElementText, backend.ElementTextEnd,
		backend.ElementForm, backend.ElementInlineImage,
		backend.ElementMarkedContent, backend.ElementMarkedContent, backend.ElementGraphicsState, backend.ElementShading,
	}, types)

	t.Run("path bbox in page space", func(t *testing.T) {
		assert.Equal(t, backend.Rect{X: 10, Y: 20, Width: 10, Height: 10}, els[2].BBox)
	})

	t.Run("text content and advances", func(t *testing.T) {
		text := els[7]
		require.True(t, text.IsText())
		assert.Equal(t, "AB", text.Text.Content)
		assert.InDeltaSlice(t, []float64{0, 7.5, 12.5}, text.Text.Advances, 1e-9)
		assert.InDelta(t, 12.5, text.BBox.Width, 1e-9)
		assert.InDelta(t, 10, text.BBox.Height, 1e-9)
		assert.InDelta(t, 10, text.Text.Font.Size, 1e-9)

		run := text.Native.(*textRun)
		require.Len(t, run.glyphs, 2)
		assert.Equal(t, -250.0, run.glyphs[1].adjust)
		assert.InDelta(t, 7.5, run.glyphs[1].x, 1e-9)
	})

	t.Run("inline image dimensions", func(t *testing.T) {
		require.NotNil(t, els[10].Image)
		assert.Equal(t, 2, els[10].Image.Width)
		assert.Equal(t, 2, els[10].Image.Height)
	})
}

func TestQuoteMovesToNextLine(t *testing.T) {
	p := newTestPage(t, "BT /F1 10 Tf 14 TL 0 100 Td (a) Tj (b) ' ET")
	els := readAll(t, p)
	var texts []*backend.Element
	for _, el := range els {
		if el.IsText() {
			texts = append(texts, el)
		}
	}
	require.Len(t, texts, 2)
	assert.InDelta(t, 100, texts[0].BBox.Y, 1e-9)
	assert.InDelta(t, 86, texts[1].BBox.Y, 1e-9)
	assert.InDelta(t, 0, texts[1].BBox.X, 1e-9)

	slice, err := p.builder.SliceText(texts[1], 0, 1)
	require.NoError(t, err)
	require.NoError(t, p.writer.Write(slice))
	data := string(p.writer.chunks[len(p.writer.chunks)-1].data)
	assert.Equal(t, "T*\n[<62>] TJ\n", data)
}

// writeAllWith 边读边写页面元素，文本元素交给 handle 处理
func writeAllWith(t *testing.T, p *Page, handle func(el *backend.Element)) {
	t.Helper()
	for {
		el, err := p.Next(context.Background())
		if errors.Is(err, io.EOF) {
			return
		}
		require.NoError(t, err)
		if el.IsText() && handle != nil {
			handle(el)
			continue
		}
		require.NoError(t, p.writer.Write(el))
	}
}

func TestWriterSlices(t *testing.T) {
	const src = "BT /F1 12 Tf 100 700 Td (Hello world) Tj ET"

	t.Run("copy through keeps the page unmodified", func(t *testing.T) {
		p := newTestPage(t, src)
		writeAllWith(t, p, nil)
		assert.False(t, p.writer.modified())
		out, err := p.writer.content()
		require.NoError(t, err)
		assert.Equal(t, "q\nBT\n/F1 12 Tf\n100 700 Td\n<48656c6c6f20776f726c64> Tj\nET\nQ\n", string(out))
	})

	t.Run("coloured head restores the source fill", func(t *testing.T) {
		p := newTestPage(t, src)
		writeAllWith(t, p, func(el *backend.Element) {
			b := p.builder
			zero, err := b.SliceText(el, 0, 0)
			require.NoError(t, err)
			head, err := b.SliceText(el, 0, 2)
			require.NoError(t, err)
			head.Fill = &overlay.Color{R: 1, A: 1}
			tail, err := b.SliceText(el, 2, 11)
			require.NoError(t, err)

			assert.InDelta(t, 100, head.BBox.X, 1e-9)
			assert.InDelta(t, 12, head.BBox.Width, 1e-9)
			assert.Equal(t, "llo world", tail.Text.Content)

			for _, e := range []*backend.Element{zero, head, tail} {
				require.NoError(t, p.writer.Write(e))
			}
		})
		assert.True(t, p.writer.modified())
		out, err := p.writer.content()
		require.NoError(t, err)
		assert.Equal(t, "q\nBT\n/F1 12 Tf\n100 700 Td\n"+
			"1 0 0 rg\n[<4865>] TJ\n"+
			"0 g\n[<6c6c6f20776f726c64>] TJ\n"+
			"ET\nQ\n", string(out))
	})

	t.Run("created run realigns the remaining text", func(t *testing.T) {
		p := newTestPage(t, src)
		f := testFont()
		writeAllWith(t, p, func(el *backend.Element) {
			b := p.builder
			zero, err := b.SliceText(el, 0, 0)
			require.NoError(t, err)
			bold, err := b.CreateTextRun("He", f, 12)
			require.NoError(t, err)
			assert.InDelta(t, 14.4, bold.BBox.Width, 1e-9)
			tail, err := b.SliceText(el, 2, 11)
			require.NoError(t, err)
			for _, e := range []*backend.Element{zero, bold, tail} {
				require.NoError(t, p.writer.Write(e))
			}
		})
		out, err := p.writer.content()
		require.NoError(t, err)
		assert.Equal(t, "q\nBT\n/F1 12 Tf\n100 700 Td\n"+
			"/GlF1 12 Tf\n<4865> Tj\n"+
			"/F1 12 Tf\n[200 <6c6c6f20776f726c64>] TJ\n"+
			"ET\nQ\n", string(out))
		assert.Contains(t, p.writer.fonts, "GlF1")
	})

	t.Run("rollback discards partial output", func(t *testing.T) {
		p := newTestPage(t, src)
		writeAllWith(t, p, func(el *backend.Element) {
			mark := p.writer.Checkpoint()
			head, err := p.builder.SliceText(el, 0, 2)
			require.NoError(t, err)
			require.NoError(t, p.writer.Write(head))
			p.writer.Rollback(mark)
			require.NoError(t, p.writer.Write(el))
		})
		assert.False(t, p.writer.modified())
	})

	t.Run("slice range is validated", func(t *testing.T) {
		p := newTestPage(t, src)
		for _, el := range readAll(t, p) {
			if el.IsText() {
				_, err := p.builder.SliceText(el, 3, 20)
				assert.Error(t, err)
				_, err = p.builder.SliceText(el, 4, 2)
				assert.Error(t, err)
			}
		}
	})

	t.Run("slices of non source text are unsupported", func(t *testing.T) {
		p := newTestPage(t, src)
		run, err := p.builder.CreateTextRun("x", testFont(), 10)
		require.NoError(t, err)
		_, err = p.builder.SliceText(run, 0, 1)
		assert.ErrorIs(t, err, backend.ErrUnsupported)
	})
}

func TestCreatedRunOutsideTextObject(t *testing.T) {
	p := newTestPage(t, "0 0 m 1 1 l S")
	readAll(t, p)
	run, err := p.builder.CreateTextRun("x", testFont(), 10)
	require.NoError(t, err)
	assert.ErrorIs(t, p.writer.Write(run), backend.ErrUnsupported)
}

func TestCreateTextRunNeedsEmbeddedFont(t *testing.T) {
	p := newTestPage(t, "")
	_, err := p.builder.CreateTextRun("x", &pageFont{family: "Helvetica"}, 10)
	assert.ErrorIs(t, err, backend.ErrUnsupported)
	_, err = p.builder.CreateTextRun("x", testFont(), 0)
	assert.Error(t, err)
}

func TestWritePlaced(t *testing.T) {
	p := newTestPage(t, "q 1 0 0 1 50 50 cm")
	writeAllWith(t, p, nil)

	rect, err := p.builder.CreateRect(10, 20, 30, 5)
	require.NoError(t, err)
	rect.Fill = &overlay.Color{R: 1, G: 1, B: 0, A: 0.5}
	require.NoError(t, p.writer.WritePlaced(rect))

	again, err := p.builder.CreateRect(0, 0, 1, 1)
	require.NoError(t, err)
	again.Fill = &overlay.Color{R: 0, G: 0, B: 1, A: 0.5}
	require.NoError(t, p.writer.WritePlaced(again))

	assert.Equal(t, map[string]float64{"GlA1": 0.5}, p.writer.alphas)
	assert.True(t, p.writer.modified())

	out, err := p.writer.content()
	require.NoError(t, err)
	// 未闭合的 q 在覆盖层之前补齐
	assert.True(t, strings.HasPrefix(string(out), "q\nq\n1 0 0 1 50 50 cm\nQ\nQ\n"))
	assert.Contains(t, string(out), "q\n/GlA1 gs\n1 1 0 rg\n10 20 30 5 re\nf\nQ\n")
	assert.Contains(t, string(out), "q\n/GlA1 gs\n0 0 1 rg\n0 0 1 1 re\nf\nQ\n")

	t.Run("only rectangles can be placed", func(t *testing.T) {
		run, err := p.builder.CreateTextRun("x", testFont(), 10)
		require.NoError(t, err)
		assert.ErrorIs(t, p.writer.WritePlaced(run), backend.ErrUnsupported)
	})
}
