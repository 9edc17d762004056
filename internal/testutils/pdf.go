package testutils

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// pdfObjects 是单页文档的对象 1 到 6：目录、页树、页面、内容流、Helvetica 与文档信息
func pdfObjects(content string) []string {
	return []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 /MediaBox [0 0 612 792] /Resources << /Font << /F1 5 0 R >> >> >>",
		"<< /Type /Page /Parent 2 0 R /Contents 4 0 R >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>",
		"<< /Producer (unit test) >>",
	}
}

func writeObjects(b *bytes.Buffer, objs []string) []int {
	offsets := make([]int, len(objs))
	for i, o := range objs {
		offsets[i] = b.Len()
		fmt.Fprintf(b, "%d 0 obj\n%s\nendobj\n", i+1, o)
	}
	return offsets
}

// WritePDF 在 dir 中生成单页、使用 Helvetica 的最小 PDF（input.pdf），资源继承自 /Pages 节点。
// extraTrailer 原样追加到 trailer 字典中。
func WritePDF(t testing.TB, dir, content, extraTrailer string) string {
	t.Helper()
	objs := pdfObjects(content)

	var b bytes.Buffer
	b.WriteString("%PDF-1.4\n")
	offsets := writeObjects(&b, objs)
	xref := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n0000000000 65535 f \n", len(objs)+1)
	for _, off := range offsets {
		fmt.Fprintf(&b, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&b, "trailer\n<< /Size %d /Root 1 0 R /Info 6 0 R %s>>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, extraTrailer, xref)

	path := filepath.Join(dir, "input.pdf")
	require.NoError(t, os.WriteFile(path, b.Bytes(), 0o644))
	return path
}

// WriteXRefStreamPDF 生成与 WritePDF 相同的文档，但交叉引用以 Flate 压缩的 xref 流（PDF 1.5）写出
func WriteXRefStreamPDF(t testing.TB, dir, content string) string {
	t.Helper()
	objs := pdfObjects(content)

	var b bytes.Buffer
	b.WriteString("%PDF-1.5\n")
	offsets := writeObjects(&b, objs)
	xrefNum := len(objs) + 1
	xref := b.Len()

	var rows bytes.Buffer
	row := func(typ byte, off uint32, gen uint16) {
		rows.WriteByte(typ)
		_ = binary.Write(&rows, binary.BigEndian, off)
		_ = binary.Write(&rows, binary.BigEndian, gen)
	}
	row(0, 0, 0xffff)
	for _, off := range offsets {
		row(1, uint32(off), 0)
	}
	row(1, uint32(xref), 0)

	var z bytes.Buffer
	zw := zlib.NewWriter(&z)
	_, err := zw.Write(rows.Bytes())
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	fmt.Fprintf(&b, "%d 0 obj\n<< /Type /XRef /Size %d /W [1 4 2] /Root 1 0 R /Info 6 0 R /Filter /FlateDecode /Length %d >>\nstream\n",
		xrefNum, xrefNum+1, z.Len())
	b.Write(z.Bytes())
	fmt.Fprintf(&b, "\nendstream\nendobj\nstartxref\n%d\n%%%%EOF\n", xref)

	path := filepath.Join(dir, "input.pdf")
	require.NoError(t, os.WriteFile(path, b.Bytes(), 0o644))
	return path
}
