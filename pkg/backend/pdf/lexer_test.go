package pdf

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsawler/tabula/core"
)

func TestParseContent(t *testing.T) {
	t.Run("operators and operands", func(t *testing.T) {
		ops, err := parseContent([]byte("q 1 0 0 1 10.5 -2 cm /F1 12 Tf (a\\(b\\)) Tj <48 69> Tj Q"))
		require.NoError(t, err)
		require.Len(t, ops, 5)

		assert.Equal(t, "cm", ops[1].Operator)
		assert.Equal(t, core.Real(10.5), ops[1].Operands[4])
		assert.Equal(t, core.Int(-2), ops[1].Operands[5])
		assert.Equal(t, core.Name("F1"), ops[2].Operands[0])
		assert.Equal(t, core.String("a(b)"), ops[3].Operands[0])
		assert.Equal(t, core.String("Hi"), ops[4].Operands[0])
	})

	t.Run("comments and quote operators", func(t *testing.T) {
		ops, err := parseContent([]byte("% heading\nBT 1 2 (x) \" (y) ' ET"))
		require.NoError(t, err)
		require.Len(t, ops, 4)
		assert.Equal(t, "\"", ops[1].Operator)
		assert.Len(t, ops[1].Operands, 3)
		assert.Equal(t, "'", ops[2].Operator)
	})

	t.Run("TJ arrays and dictionaries", func(t *testing.T) {
		ops, err := parseContent([]byte("[(A) -250 (B)] TJ /Span <</MCID 3>> BDC EMC"))
		require.NoError(t, err)
		require.Len(t, ops, 3)
		arr, ok := ops[0].Operands[0].(core.Array)
		require.True(t, ok)
		assert.Len(t, arr, 3)
		props, ok := ops[1].Operands[1].(core.Dict)
		require.True(t, ok)
		assert.Equal(t, core.Int(3), props["MCID"])
	})

	t.Run("names with escapes", func(t *testing.T) {
		ops, err := parseContent([]byte("/A#20B gs"))
		require.NoError(t, err)
		assert.Equal(t, core.Name("A B"), ops[0].Operands[0])
	})

	t.Run("inline image kept as one operation", func(t *testing.T) {
		data := []byte("q BI /W 2 /H 1 /CS /G /BPC 8 ID \x00EI\xff EI Q")
		ops, err := parseContent(data)
		require.NoError(t, err)
		require.Len(t, ops, 3)
		assert.Equal(t, opInlineImage, ops[1].Operator)
		assert.Equal(t, core.String("\x00EI\xff"), ops[1].Operands[1])
		assert.Equal(t, "Q", ops[2].Operator)
	})

	t.Run("unterminated inline image", func(t *testing.T) {
		_, err := parseContent([]byte("BI /W 2 ID \x00\x01"))
		assert.Error(t, err)
	})

	t.Run("dangling operands", func(t *testing.T) {
		_, err := parseContent([]byte("BT (x) Tj 12"))
		assert.Error(t, err)
	})
}

func TestWriteOps(t *testing.T) {
	t.Run("operations round trip through the lexer", func(t *testing.T) {
		src := "BT\n/F1 12 Tf\n[(A) -250.5 (B)] TJ\n/Tag <</MCID 1>> BDC\nET\n"
		ops, err := parseContent([]byte(src))
		require.NoError(t, err)

		var buf bytes.Buffer
		require.NoError(t, writeOps(&buf, ops))
		assert.Equal(t, "BT\n/F1 12 Tf\n[<41> -250.5 <42>] TJ\n/Tag <</MCID 1 >> BDC\nET\n", buf.String())

		again, err := parseContent(buf.Bytes())
		require.NoError(t, err)
		assert.Equal(t, ops, again)
	})

	t.Run("inline image bytes are preserved", func(t *testing.T) {
		ops, err := parseContent([]byte("BI /W 1 /H 1 ID \x7f\x00 EI"))
		require.NoError(t, err)
		var buf bytes.Buffer
		require.NoError(t, writeOps(&buf, ops))
		assert.Equal(t, "BI\n/H 1\n/W 1\nID \x7f\x00\nEI\n", buf.String())
	})

	t.Run("streams cannot be inlined", func(t *testing.T) {
		var buf bytes.Buffer
		assert.Error(t, writeObject(&buf, &core.Stream{}))
	})
}

func TestFormatting(t *testing.T) {
	assert.Equal(t, "0", formatReal(0))
	assert.Equal(t, "0.125", formatReal(0.125))
	assert.Equal(t, "1000000", formatReal(1e6))
	assert.Equal(t, "/A#23B#2F", formatName("A#B/"))
	assert.Equal(t, core.Int(3), num(3))
	assert.Equal(t, core.Real(2.5), num(2.5))
}
