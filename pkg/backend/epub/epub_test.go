package epub

import (
	"archive/zip"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerdneilsfield/go-glance/internal/testutils"
	"github.com/nerdneilsfield/go-glance/pkg/backend"
	"github.com/nerdneilsfield/go-glance/pkg/overlay"
)

func readAll(t *testing.T, p backend.Page) []*backend.Element {
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

func readZipEntry(t *testing.T, path, name string) (string, uint16) {
	t.Helper()
	zr, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer zr.Close()
	for _, f := range zr.File {
		if f.Name == name {
			data, err := readFile(f)
			require.NoError(t, err)
			return string(data), f.Method
		}
	}
	t.Fatalf("%s not found", name)
	return "", 0
}

func TestOpenAndTraverse(t *testing.T) {
	path := testutils.WriteEPUB(t, t.TempDir(), nil)
	doc, err := NewOpener(nil).Open(context.Background(), path, backend.ReadOnly)
	require.NoError(t, err)
	defer doc.Close()

	assert.Equal(t, 1, doc.PageCount())
	assert.Equal(t, "OEBPS/content.opf", doc.(*Document).opfPath)
	assert.Equal(t, "Test Book", doc.(*Document).Metadata().Title)

	page, err := doc.NextPage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, page.Number())
	assert.Nil(t, page.BBox())
	assert.Nil(t, page.Writer())
	assert.Nil(t, page.Images())

	els := readAll(t, page)
	var names []string
	for _, el := range els {
		if el.IsText() {
			names = append(names, "text:"+el.Text.Content)
		} else {
			names = append(names, el.Name())
		}
	}
	assert.Equal(t, []string{
		"text:Reading is ", "structural:em", "text: & easy",
		"text:Second", "structural:br", "text:para",
	}, names)
	assert.Nil(t, els[0].Text.Advances)

	_, err = doc.NextPage(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}

func TestOpenRejectsDRM(t *testing.T) {
	path := testutils.WriteEPUB(t, t.TempDir(), map[string]string{"META-INF/rights.xml": "<rights/>"})
	_, err := NewOpener(nil).Open(context.Background(), path, backend.ReadOnly)
	var be *backend.BackendError
	assert.ErrorAs(t, err, &be)
}

func TestOpenRejectsNonArchive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plain.epub")
	require.NoError(t, os.WriteFile(path, []byte("not a zip"), 0o644))
	_, err := NewOpener(nil).Open(context.Background(), path, backend.ReadOnly)
	assert.Error(t, err)
}

func TestWriterAndSave(t *testing.T) {
	dir := t.TempDir()
	path := testutils.WriteEPUB(t, dir, nil)
	doc, err := NewOpener(nil, WithContributor("Augmented in a test")).Open(context.Background(), path, backend.ReadWrite)
	require.NoError(t, err)
	defer doc.Close()

	page, err := doc.NextPage(context.Background())
	require.NoError(t, err)
	w, b := page.Writer(), page.Builder()
	require.NotNil(t, w)

	bold, err := b.LoadFont("bold")
	require.NoError(t, err)
	assert.True(t, bold.Bold())

	for {
		el, err := page.Next(context.Background())
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		if !el.IsText() || el.Text.Content != "Reading is " {
			require.NoError(t, w.Write(el))
			continue
		}
		head, err := b.CreateTextRun("Rea", bold, 0)
		require.NoError(t, err)
		head.Fill = &overlay.Color{R: 1, A: 1}
		tail, err := b.SliceText(el, 3, len([]rune(el.Text.Content)))
		require.NoError(t, err)
		require.NoError(t, w.Write(head))
		require.NoError(t, w.Write(tail))
	}

	t.Run("rectangles are unsupported", func(t *testing.T) {
		_, err := b.CreateRect(0, 0, 1, 1)
		assert.ErrorIs(t, err, backend.ErrUnsupported)
		assert.ErrorIs(t, w.WritePlaced(&backend.Element{}), backend.ErrUnsupported)
	})
	require.NoError(t, page.Finish())

	t.Run("refuses to overwrite the source", func(t *testing.T) {
		var invalid *backend.InvalidOutputPathError
		assert.ErrorAs(t, doc.Save(context.Background(), path), &invalid)
	})

	out := filepath.Join(dir, "out.epub")
	require.NoError(t, doc.Save(context.Background(), out))

	zr, err := zip.OpenReader(out)
	require.NoError(t, err)
	first := zr.File[0]
	assert.Equal(t, "mimetype", first.Name)
	assert.Equal(t, zip.Store, first.Method)
	require.NoError(t, zr.Close())

	chapter, _ := readZipEntry(t, out, "OEBPS/ch1.xhtml")
	assert.True(t, strings.HasPrefix(chapter, "<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n<!DOCTYPE html>\n<html"))
	assert.Contains(t, chapter, `<p class="first"><span class="glance" style="font-weight:bold;color:#ff0000;">Rea</span>ding is <em>fun</em> &amp; easy</p>`)
	assert.Contains(t, chapter, `<p>Second<br/>para</p>`)
	assert.Contains(t, chapter, `<link rel="stylesheet" href="style.css"/>`)
	assert.Contains(t, chapter, `xml:lang="en"`)

	opf, _ := readZipEntry(t, out, "OEBPS/content.opf")
	assert.Contains(t, opf, `<dc:contributor id="glance-augment">Augmented in a test</dc:contributor>`)

	css, _ := readZipEntry(t, out, "OEBPS/style.css")
	assert.Equal(t, "p { margin: 0 }", css)

	t.Run("the saved book reopens", func(t *testing.T) {
		again, err := NewOpener(nil).Open(context.Background(), out, backend.ReadOnly)
		require.NoError(t, err)
		defer again.Close()
		assert.Equal(t, 1, again.PageCount())
	})
}

func TestRollbackAndSliceErrors(t *testing.T) {
	path := testutils.WriteEPUB(t, t.TempDir(), nil)
	doc, err := NewOpener(nil).Open(context.Background(), path, backend.ReadWrite)
	require.NoError(t, err)
	defer doc.Close()
	page, err := doc.NextPage(context.Background())
	require.NoError(t, err)
	w, b := page.Writer(), page.Builder()

	el, err := page.Next(context.Background())
	require.NoError(t, err)
	require.True(t, el.IsText())

	mark := w.Checkpoint()
	run, err := b.CreateTextRun("x", nil, 0)
	require.NoError(t, err)
	require.NoError(t, w.Write(run))
	w.Rollback(mark)
	assert.Equal(t, mark, w.Checkpoint())

	_, err = b.SliceText(el, 2, 99)
	assert.Error(t, err)
	_, err = b.SliceText(run, 0, 1)
	assert.ErrorIs(t, err, backend.ErrUnsupported)
}

func TestAddContributor(t *testing.T) {
	opf := []byte("<package><opf:metadata><dc:title>T</dc:title></opf:metadata></package>")
	out := addContributor(opf, "A & B")
	assert.Contains(t, string(out), `<dc:contributor id="glance-augment">A &amp; B</dc:contributor>`)
	assert.Equal(t, out, addContributor(out, "A & B"), "added only once")
	assert.Equal(t, []byte("<package/>"), addContributor([]byte("<package/>"), "x"))
}

func TestSplitProlog(t *testing.T) {
	prolog, body := splitProlog([]byte("<?xml version=\"1.0\"?>\n<HTML><body/></HTML>"))
	assert.Equal(t, "<?xml version=\"1.0\"?>\n", string(prolog))
	assert.Equal(t, "<HTML><body/></HTML>", string(body))

	prolog, body = splitProlog([]byte("<html></html>"))
	assert.Nil(t, prolog)
	assert.Equal(t, "<html></html>", string(body))
}

func TestExpandSelfClosing(t *testing.T) {
	cases := []struct {
		name, in, want string
	}{
		{"anchor", `<p>One <a id="pg12"/>two</p>`, `<p>One <a id="pg12"></a>two</p>`},
		{"space before slash", `<span class="x" />y`, `<span class="x" ></span>y`},
		{"void elements stay", `<p>a<br/>b<img src="i.png"/></p>`, `<p>a<br/>b<img src="i.png"/></p>`},
		{"uppercase name", `<DIV/>`, `<DIV></div>`},
		{"script body untouched", `<script>if (a<b/>c) {}</script>`, `<script>if (a<b/>c) {}</script>`},
		{"plain markup", `<p class="first">Reading is <em>fun</em> &amp; easy</p>`, `<p class="first">Reading is <em>fun</em> &amp; easy</p>`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, string(expandSelfClosing([]byte(tc.in))))
		})
	}
}

const anchorChapter = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE html>
<html xmlns="http://www.w3.org/1999/xhtml">
<head><title>Anchors</title></head>
<body>
<p>One <a id="pg12"/>two three</p>
<p>Four</p>
</body>
</html>`

func TestSelfClosedAnchorKeepsSiblings(t *testing.T) {
	dir := t.TempDir()
	path := testutils.WriteEPUB(t, dir, map[string]string{"OEBPS/ch1.xhtml": anchorChapter})
	doc, err := NewOpener(nil).Open(context.Background(), path, backend.ReadWrite)
	require.NoError(t, err)
	defer doc.Close()

	page, err := doc.NextPage(context.Background())
	require.NoError(t, err)
	w, b := page.Writer(), page.Builder()
	bold, err := b.LoadFont("bold")
	require.NoError(t, err)

	var names []string
	for {
		el, err := page.Next(context.Background())
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		if !el.IsText() {
			names = append(names, el.Name())
			require.NoError(t, w.Write(el))
			continue
		}
		names = append(names, "text:"+el.Text.Content)
		if el.Text.Content != "two three" {
			require.NoError(t, w.Write(el))
			continue
		}
		head, err := b.CreateTextRun("two", bold, 0)
		require.NoError(t, err)
		tail, err := b.SliceText(el, 3, len([]rune(el.Text.Content)))
		require.NoError(t, err)
		require.NoError(t, w.Write(head))
		require.NoError(t, w.Write(tail))
	}
	assert.Equal(t, []string{"text:One ", "structural:a", "text:two three", "text:Four"}, names)
	require.NoError(t, page.Finish())

	out := filepath.Join(dir, "out.epub")
	require.NoError(t, doc.Save(context.Background(), out))
	chapter, _ := readZipEntry(t, out, "OEBPS/ch1.xhtml")
	assert.Contains(t, chapter, `<p>One <a id="pg12"></a><span class="glance" style="font-weight:bold;">two</span> three</p>`)
	assert.Contains(t, chapter, `<p>Four</p>`)
	assert.Equal(t, 1, strings.Count(chapter, `id="pg12"`))
}
