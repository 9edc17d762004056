package pdf

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"

	"github.com/tsawler/tabula/contentstream"
	"github.com/tsawler/tabula/core"
)

// formatReal 输出最短的十进制表示，不使用科学计数法
func formatReal(v float64) string {
	if v == 0 {
		return "0"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// formatName 输出名字对象，对非常规字符使用 #xx 转义
func formatName(name string) string {
	var b bytes.Buffer
	b.WriteByte('/')
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c < 0x21 || c > 0x7e || c == '#' || isDelimiter(c) {
			fmt.Fprintf(&b, "#%02X", c)
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

// writeObject 序列化一个直接对象。流对象不能内联，需作为间接对象写出。
func writeObject(b *bytes.Buffer, obj core.Object) error {
	switch v := obj.(type) {
	case nil, core.Null:
		b.WriteString("null")
	case core.Bool:
		if v {
			b.WriteString("true")
		} else {
			b.WriteString("false")
		}
	case core.Int:
		b.WriteString(strconv.FormatInt(int64(v), 10))
	case core.Real:
		b.WriteString(formatReal(float64(v)))
	case core.String:
		b.WriteByte('<')
		b.WriteString(hex.EncodeToString([]byte(v)))
		b.WriteByte('>')
	case core.Name:
		b.WriteString(formatName(string(v)))
	case core.Array:
		b.WriteByte('[')
		for i, item := range v {
			if i > 0 {
				b.WriteByte(' ')
			}
			if err := writeObject(b, item); err != nil {
				return err
			}
		}
		b.WriteByte(']')
	case core.Dict:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString("<<")
		for _, k := range keys {
			b.WriteString(formatName(k))
			b.WriteByte(' ')
			if err := writeObject(b, v[k]); err != nil {
				return err
			}
			b.WriteByte(' ')
		}
		b.WriteString(">>")
	case core.IndirectRef:
		fmt.Fprintf(b, "%d %d R", v.Number, v.Generation)
	case *core.Stream:
		return fmt.Errorf("stream objects cannot be written inline")
	default:
		return fmt.Errorf("unsupported object type %T", obj)
	}
	return nil
}

// writeOp 序列化一个内容流操作
func writeOp(b *bytes.Buffer, op contentstream.Operation) error {
	if op.Operator == opInlineImage {
		return writeInlineImage(b, op)
	}
	for _, operand := range op.Operands {
		if err := writeObject(b, operand); err != nil {
			return err
		}
		b.WriteByte(' ')
	}
	b.WriteString(op.Operator)
	b.WriteByte('\n')
	return nil
}

func writeInlineImage(b *bytes.Buffer, op contentstream.Operation) error {
	if len(op.Operands) != 2 {
		return fmt.Errorf("malformed inline image")
	}
	params, ok := op.Operands[0].(core.Dict)
	if !ok {
		return fmt.Errorf("malformed inline image parameters")
	}
	data, ok := op.Operands[1].(core.String)
	if !ok {
		return fmt.Errorf("malformed inline image data")
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	b.WriteString("BI\n")
	for _, k := range keys {
		b.WriteString(formatName(k))
		b.WriteByte(' ')
		if err := writeObject(b, params[k]); err != nil {
			return err
		}
		b.WriteByte('\n')
	}
	b.WriteString("ID ")
	b.WriteString(string(data))
	b.WriteString("\nEI\n")
	return nil
}

// writeOps 依次序列化多个操作
func writeOps(b *bytes.Buffer, ops []contentstream.Operation) error {
	for _, op := range ops {
		if err := writeOp(b, op); err != nil {
			return err
		}
	}
	return nil
}

func num(v float64) core.Object {
	if v == float64(int64(v)) {
		return core.Int(int64(v))
	}
	return core.Real(v)
}

func op(operator string, operands ...core.Object) contentstream.Operation {
	return contentstream.Operation{Operator: operator, Operands: operands}
}
