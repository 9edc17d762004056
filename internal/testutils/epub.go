package testutils

import (
	"archive/zip"
	"bytes"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/require"
)

const epubContainer = `<?xml version="1.0"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`

const epubOPF = `<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0" unique-identifier="id">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:title>Test Book</dc:title>
    <dc:identifier id="id">urn:uuid:1234</dc:identifier>
    <dc:language>en</dc:language>
  </metadata>
  <manifest>
    <item id="ch1" href="ch1.xhtml" media-type="application/xhtml+xml"/>
    <item id="css" href="style.css" media-type="text/css"/>
  </manifest>
  <spine>
    <itemref idref="ch1"/>
  </spine>
</package>`

// EPUBChapter 是 WriteEPUB 写入的章节内容
const EPUBChapter = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE html>
<html xmlns="http://www.w3.org/1999/xhtml" xml:lang="en">
<head><title>One</title><link rel="stylesheet" href="style.css"/></head>
<body>
<h1>Chapter One</h1>
<p class="first">Reading is <em>fun</em> &amp; easy</p>
<p>Second<br/>para</p>
</body>
</html>`

// WriteEPUB 在 dir 中生成单章节的最小 EPUB（book.epub）。
// extra 追加额外条目，与默认条目同名时替换其内容。
func WriteEPUB(t testing.TB, dir string, extra map[string]string) string {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	w, err := zw.CreateHeader(&zip.FileHeader{Name: "mimetype", Method: zip.Store})
	require.NoError(t, err)
	_, err = w.Write([]byte("application/epub+zip"))
	require.NoError(t, err)

	files := []struct{ name, body string }{
		{"META-INF/container.xml", epubContainer},
		{"OEBPS/content.opf", epubOPF},
		{"OEBPS/ch1.xhtml", EPUBChapter},
		{"OEBPS/style.css", "p { margin: 0 }"},
	}
	replaced := make(map[string]bool)
	for i := range files {
		if body, ok := extra[files[i].name]; ok {
			files[i].body = body
			replaced[files[i].name] = true
		}
	}
	for _, name := range slices.Sorted(maps.Keys(extra)) {
		if !replaced[name] {
			files = append(files, struct{ name, body string }{name, extra[name]})
		}
	}
	for _, f := range files {
		w, err := zw.Create(f.name)
		require.NoError(t, err)
		_, err = w.Write([]byte(f.body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())

	path := filepath.Join(dir, "book.epub")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

