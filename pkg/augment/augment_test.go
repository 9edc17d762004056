package augment

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nerdneilsfield/go-glance/internal/testutils"
	"github.com/nerdneilsfield/go-glance/pkg/backend"
	"github.com/nerdneilsfield/go-glance/pkg/notify"
	"github.com/nerdneilsfield/go-glance/pkg/policy"
	"github.com/nerdneilsfield/go-glance/pkg/traverse"
)

func newRules(t *testing.T, mutate func(*policy.Settings)) *policy.Rules {
	t.Helper()
	return testutils.CreateTestRules(mutate)
}

func run(t *testing.T, doc *testutils.FakeDocument, mode backend.Mode, register func(bus *notify.Bus), opts ...traverse.Option) traverse.Summary {
	t.Helper()
	bus := notify.NewBus(zap.NewNop())
	register(bus)
	summary, err := traverse.NewEngine(bus, zap.NewNop(), opts...).Run(context.Background(), doc, mode)
	require.NoError(t, err)
	return summary
}

func hello() *backend.Element {
	return testutils.TextElement("Hello big world", 10, 10, 12, 6)
}

func TestSplitWords(t *testing.T) {
	words := splitWords("a  bc d")
	require.Len(t, words, 4)
	assert.Equal(t, word{text: "a", start: 0, end: 1}, words[0])
	assert.Equal(t, word{text: "", start: 2, end: 2}, words[1])
	assert.Equal(t, word{text: "bc", start: 3, end: 5}, words[2])
	assert.Equal(t, word{text: "d", start: 6, end: 7}, words[3])

	assert.Len(t, splitWords(""), 1)
}

func TestPDFHandlerText(t *testing.T) {
	t.Run("bold coloured heads and original tails", func(t *testing.T) {
		doc := testutils.NewFakeDocument("in.pdf", []*backend.Element{hello()})
		h := NewPDFHandler(newRules(t, nil), nil, OCROptions{}, nil)
		run(t, doc, backend.ReadWrite, func(bus *notify.Bus) { h.Register(context.Background(), bus) })

		page := doc.Pages[0]
		assert.Equal(t, []string{"", "H", "ello ", "b", "ig ", "w", "orld"}, page.W.Texts())
		assert.Equal(t, []string{"/fonts/times-bold.ttf"}, page.B.Loaded)

		head := page.W.Written[1]
		assert.Equal(t, "run", head.Native)
		assert.Equal(t, 12.0, head.Text.Font.Size)
		require.NotNil(t, head.Fill)
		assert.Equal(t, "#011993", head.Fill.Hex())
		assert.Nil(t, page.W.Written[2].Fill)
		assert.Empty(t, page.W.Placed)

		assert.Equal(t, Counters{Words: 3, Augmented: 3}, h.Counters())
	})

	t.Run("colour only keeps the source font", func(t *testing.T) {
		doc := testutils.NewFakeDocument("in.pdf", []*backend.Element{hello()})
		rules := newRules(t, func(s *policy.Settings) { s.UseStrongText = false })
		h := NewPDFHandler(rules, nil, OCROptions{}, nil)
		run(t, doc, backend.ReadWrite, func(bus *notify.Bus) { h.Register(context.Background(), bus) })

		page := doc.Pages[0]
		assert.Empty(t, page.B.Loaded)
		head := page.W.Written[1]
		assert.Equal(t, "slice", head.Native)
		require.NotNil(t, head.Fill)
		assert.InDeltaSlice(t, []float64{10, 16}, head.Text.Advances, 1e-9)
	})

	t.Run("boxes only copy the element and queue one box per word", func(t *testing.T) {
		doc := testutils.NewFakeDocument("in.pdf", []*backend.Element{hello()})
		rules := newRules(t, func(s *policy.Settings) {
			s.UseStrongText = false
			s.UseColoredText = false
			s.UseStrongBox = true
		})
		h := NewPDFHandler(rules, nil, OCROptions{}, nil)
		summary := run(t, doc, backend.ReadWrite, func(bus *notify.Bus) { h.Register(context.Background(), bus) })

		page := doc.Pages[0]
		assert.Equal(t, []string{"Hello big world"}, page.W.Texts())
		require.Len(t, page.W.Placed, 3)
		assert.Equal(t, backend.Rect{X: 10, Y: 10, Width: 6, Height: 12}, page.W.Placed[0].BBox)
		assert.Equal(t, backend.Rect{X: 46, Y: 10, Width: 6, Height: 12}, page.W.Placed[1].BBox)
		assert.Equal(t, backend.Rect{X: 70, Y: 10, Width: 6, Height: 12}, page.W.Placed[2].BBox)
		require.NotNil(t, page.W.Placed[0].Fill)
		assert.InDelta(t, 0x30/255.0, page.W.Placed[0].Fill.A, 1e-9)
		assert.Equal(t, 3, summary.Boxes)
	})

	t.Run("underbar boxes follow the configured offsets", func(t *testing.T) {
		el := testutils.TextElement("Word", 0, 100, 10, 5)
		doc := testutils.NewFakeDocument("in.pdf", []*backend.Element{el})
		rules := newRules(t, func(s *policy.Settings) {
			s.UseStrongText = false
			s.UseColoredText = false
			s.UseStrongBox = true
			s.StrongBoxShape = "underbar"
			s.StrongBoxHeight = 2
			s.BoxXOffset = 3
		})
		h := NewPDFHandler(rules, nil, OCROptions{}, nil)
		run(t, doc, backend.ReadWrite, func(bus *notify.Bus) { h.Register(context.Background(), bus) })

		require.Len(t, doc.Pages[0].W.Placed, 1)
		assert.Equal(t, backend.Rect{X: 3, Y: 97, Width: 5, Height: 2}, doc.Pages[0].W.Placed[0].BBox)
	})

	t.Run("missing font mapping degrades the element", func(t *testing.T) {
		el := hello()
		el.Text.Font.Family = "Garamond"
		doc := testutils.NewFakeDocument("in.pdf", []*backend.Element{el})
		rules := newRules(t, func(s *policy.Settings) { s.FallbackFont = "Nope" })
		h := NewPDFHandler(rules, nil, OCROptions{}, nil)
		summary := run(t, doc, backend.ReadWrite, func(bus *notify.Bus) { h.Register(context.Background(), bus) })

		assert.Equal(t, 1, summary.Degraded)
		assert.Equal(t, []string{"Hello big world"}, doc.Pages[0].W.Texts())
	})

	t.Run("numbers and identifiers are copied", func(t *testing.T) {
		el := testutils.TextElement("1234 AB12", 0, 0, 10, 5)
		doc := testutils.NewFakeDocument("in.pdf", []*backend.Element{el})
		h := NewPDFHandler(newRules(t, nil), nil, OCROptions{}, nil)
		run(t, doc, backend.ReadWrite, func(bus *notify.Bus) { h.Register(context.Background(), bus) })

		assert.Equal(t, []*backend.Element{el}, doc.Pages[0].W.Written)
		assert.Equal(t, Counters{Words: 2}, h.Counters())
	})

	t.Run("pages outside the filter are copied", func(t *testing.T) {
		doc := testutils.NewFakeDocument("in.pdf", []*backend.Element{hello()}, []*backend.Element{hello()})
		filter, err := traverse.ParsePageList("2")
		require.NoError(t, err)
		h := NewPDFHandler(newRules(t, nil), nil, OCROptions{}, nil)
		run(t, doc, backend.ReadWrite, func(bus *notify.Bus) { h.Register(context.Background(), bus) },
			traverse.WithPageFilter(filter))

		assert.Equal(t, []string{"Hello big world"}, doc.Pages[0].W.Texts())
		assert.Len(t, doc.Pages[1].W.Written, 7)
	})
}

func TestSplitIsReproducible(t *testing.T) {
	texts := func() []string {
		doc := testutils.NewFakeDocument("in.pdf", []*backend.Element{
			testutils.TextElement("Reproducible splitting of several longer words", 0, 0, 10, 5),
		})
		rules := newRules(t, func(s *policy.Settings) { s.MaxHeadLen = 4 })
		h := NewPDFHandler(rules, nil, OCROptions{}, nil)
		run(t, doc, backend.ReadWrite, func(bus *notify.Bus) { h.Register(context.Background(), bus) })
		return doc.Pages[0].W.Texts()
	}
	first := texts()
	assert.Equal(t, first, texts())
	assert.Equal(t, "Reproducible splitting of several longer words", strings.Join(first, ""))
}

func TestEPUBHandler(t *testing.T) {
	t.Run("heads become styled runs", func(t *testing.T) {
		el := &backend.Element{Type: backend.ElementText, Text: &backend.TextInfo{Content: "Reading is fun"}}
		structural := &backend.Element{Type: backend.ElementStructural, TypeName: "structural:em"}
		doc := testutils.NewFakeDocument("in.epub", []*backend.Element{el, structural})

		h := NewEPUBHandler(newRules(t, nil), nil)
		run(t, doc, backend.ReadWrite, h.Register)

		page := doc.Pages[0]
		assert.Equal(t, []string{"", "R", "eading ", "i", "s ", "f", "un"}, page.W.Texts())
		assert.Equal(t, []string{BoldFontName}, page.B.Loaded)
		assert.Equal(t, structural, page.W.Written[len(page.W.Written)-1])
		require.NotNil(t, page.W.Written[1].Fill)
		assert.Equal(t, Counters{Words: 3, Augmented: 3}, h.Counters())
	})

	t.Run("all styling off copies the text", func(t *testing.T) {
		el := &backend.Element{Type: backend.ElementText, Text: &backend.TextInfo{Content: "Reading is fun"}}
		doc := testutils.NewFakeDocument("in.epub", []*backend.Element{el})
		rules := newRules(t, func(s *policy.Settings) {
			s.UseStrongText = false
			s.UseColoredText = false
		})
		run(t, doc, backend.ReadWrite, NewEPUBHandler(rules, nil).Register)
		assert.Equal(t, []*backend.Element{el}, doc.Pages[0].W.Written)
	})

	t.Run("colour without bold loads no font", func(t *testing.T) {
		el := &backend.Element{Type: backend.ElementText, Text: &backend.TextInfo{Content: "Reading"}}
		doc := testutils.NewFakeDocument("in.epub", []*backend.Element{el})
		rules := newRules(t, func(s *policy.Settings) { s.UseStrongText = false })
		run(t, doc, backend.ReadWrite, NewEPUBHandler(rules, nil).Register)
		assert.Empty(t, doc.Pages[0].B.Loaded)
		assert.Equal(t, []string{"", "R", "eading"}, doc.Pages[0].W.Texts())
	})
}

func TestInspector(t *testing.T) {
	img := &backend.Element{
		Type:  backend.ElementImage,
		BBox:  backend.Rect{X: 1, Y: 2, Width: 3, Height: 4},
		Image: &backend.ImageInfo{Name: "Im1", Width: 640, Height: 480},
	}
	doc := testutils.NewFakeDocument("in.pdf", []*backend.Element{hello(), img}, []*backend.Element{hello()})
	filter, err := traverse.ParsePageList("1")
	require.NoError(t, err)

	insp := NewInspector(nil)
	run(t, doc, backend.ReadOnly, insp.Register, traverse.WithPageFilter(filter))

	records := insp.Records()
	require.Len(t, records, 2)
	assert.Equal(t, 1, records[0].Page)
	assert.Equal(t, 1, records[0].Index)
	assert.Equal(t, "Hello big world", records[0].Text)
	assert.Equal(t, "Times", records[0].Font.Family)
	assert.Equal(t, &ImageSize{Width: 640, Height: 480}, records[1].Image)
	assert.Empty(t, doc.Pages[0].W.Written)

	t.Run("table", func(t *testing.T) {
		var buf bytes.Buffer
		insp.RenderTable(&buf, true)
		out := buf.String()
		assert.Contains(t, out, `"Hello big world"`)
		assert.Contains(t, out, "Times 12.0pt")
		assert.Contains(t, out, "640x480 px (307,200 pixels)")
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, insp.WriteJSON(&buf))
		var decoded []Record
		require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
		require.Len(t, decoded, 2)
		assert.Equal(t, "image", decoded[1].Type)
		assert.Equal(t, 3.0, decoded[1].BBox.Width)
	})
}

func TestTextColorRejectsBadColour(t *testing.T) {
	rules := newRules(t, func(s *policy.Settings) { s.ColoredTextColor = "blue" })
	_, err := textColor(rules)
	var ce *policy.ConfigurationError
	assert.ErrorAs(t, err, &ce)

	rules = newRules(t, func(s *policy.Settings) { s.UseColoredText = false })
	c, err := textColor(rules)
	require.NoError(t, err)
	assert.Nil(t, c)
}
