package pdf

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/tsawler/tabula/contentstream"
	"github.com/tsawler/tabula/core"
)

// opInlineImage 是内联图像的合成操作符，操作数为参数字典与原始数据
const opInlineImage = "BI"

// lexer 把内容流切分为操作。内联图像 BI … ID … EI 作为单个操作保留原始字节。
type lexer struct {
	data []byte
	pos  int
}

// parseContent 解析整个内容流
func parseContent(data []byte) ([]contentstream.Operation, error) {
	l := &lexer{data: data}
	var ops []contentstream.Operation
	var operands []core.Object

	for {
		l.skipSpace()
		if l.pos >= len(l.data) {
			break
		}

		c := l.data[l.pos]
		if isRegular(c) && !isNumberStart(c) {
			word := l.readWord()
			switch word {
			case "true":
				operands = append(operands, core.Bool(true))
				continue
			case "false":
				operands = append(operands, core.Bool(false))
				continue
			case "null":
				operands = append(operands, core.Null{})
				continue
			case "BI":
				op, err := l.readInlineImage()
				if err != nil {
					return nil, err
				}
				ops = append(ops, op)
				operands = nil
				continue
			}
			ops = append(ops, contentstream.Operation{Operator: word, Operands: operands})
			operands = nil
			continue
		}

		obj, err := l.readObject()
		if err != nil {
			return nil, err
		}
		operands = append(operands, obj)
	}

	if len(operands) > 0 {
		return nil, fmt.Errorf("content stream ends with %d dangling operands", len(operands))
	}
	return ops, nil
}

func (l *lexer) skipSpace() {
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		if isSpace(c) {
			l.pos++
			continue
		}
		if c == '%' {
			for l.pos < len(l.data) && l.data[l.pos] != '\n' && l.data[l.pos] != '\r' {
				l.pos++
			}
			continue
		}
		return
	}
}

func (l *lexer) readWord() string {
	start := l.pos
	for l.pos < len(l.data) && isRegular(l.data[l.pos]) {
		l.pos++
	}
	return string(l.data[start:l.pos])
}

func (l *lexer) readObject() (core.Object, error) {
	c := l.data[l.pos]
	switch {
	case isNumberStart(c):
		return l.readNumber()
	case c == '(':
		return l.readLiteral()
	case c == '<' && l.peek(1) == '<':
		return l.readDict()
	case c == '<':
		return l.readHex()
	case c == '/':
		return l.readName(), nil
	case c == '[':
		return l.readArray()
	}
	return nil, fmt.Errorf("unexpected %q at offset %d", c, l.pos)
}

func (l *lexer) peek(n int) byte {
	if l.pos+n < len(l.data) {
		return l.data[l.pos+n]
	}
	return 0
}

func (l *lexer) readNumber() (core.Object, error) {
	start := l.pos
	if c := l.data[l.pos]; c == '+' || c == '-' {
		l.pos++
	}
	real := false
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		if c >= '0' && c <= '9' {
			l.pos++
		} else if c == '.' && !real {
			real = true
			l.pos++
		} else {
			break
		}
	}
	s := string(l.data[start:l.pos])
	if s == "+" || s == "-" || s == "." {
		return nil, fmt.Errorf("malformed number at offset %d", start)
	}
	if real {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("malformed number %q: %w", s, err)
		}
		return core.Real(v), nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("malformed number %q: %w", s, err)
	}
	return core.Int(v), nil
}

func (l *lexer) readLiteral() (core.Object, error) {
	l.pos++
	var buf bytes.Buffer
	depth := 1
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		l.pos++
		switch c {
		case '(':
			depth++
			buf.WriteByte(c)
		case ')':
			depth--
			if depth == 0 {
				return core.String(buf.String()), nil
			}
			buf.WriteByte(c)
		case '\\':
			if l.pos >= len(l.data) {
				continue
			}
			e := l.data[l.pos]
			l.pos++
			switch e {
			case 'n':
				buf.WriteByte('\n')
			case 'r':
				buf.WriteByte('\r')
			case 't':
				buf.WriteByte('\t')
			case 'b':
				buf.WriteByte('\b')
			case 'f':
				buf.WriteByte('\f')
			case '\r':
				if l.pos < len(l.data) && l.data[l.pos] == '\n' {
					l.pos++
				}
			case '\n':
			default:
				if e >= '0' && e <= '7' {
					v := int(e - '0')
					for i := 0; i < 2 && l.pos < len(l.data); i++ {
						d := l.data[l.pos]
						if d < '0' || d > '7' {
							break
						}
						v = v*8 + int(d-'0')
						l.pos++
					}
					buf.WriteByte(byte(v))
				} else {
					buf.WriteByte(e)
				}
			}
		default:
			buf.WriteByte(c)
		}
	}
	return nil, fmt.Errorf("unterminated string")
}

func (l *lexer) readHex() (core.Object, error) {
	l.pos++
	var digits []byte
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		l.pos++
		if c == '>' {
			if len(digits)%2 == 1 {
				digits = append(digits, '0')
			}
			out := make([]byte, len(digits)/2)
			for i := range out {
				out[i] = hexNibble(digits[2*i])<<4 | hexNibble(digits[2*i+1])
			}
			return core.String(out), nil
		}
		if isSpace(c) {
			continue
		}
		if hexNibble(c) == 0xff {
			return nil, fmt.Errorf("invalid hex digit %q", c)
		}
		digits = append(digits, c)
	}
	return nil, fmt.Errorf("unterminated hex string")
}

func (l *lexer) readName() core.Name {
	l.pos++
	var buf bytes.Buffer
	for l.pos < len(l.data) && isRegular(l.data[l.pos]) {
		c := l.data[l.pos]
		if c == '#' && l.pos+2 < len(l.data) {
			h, lo := hexNibble(l.data[l.pos+1]), hexNibble(l.data[l.pos+2])
			if h != 0xff && lo != 0xff {
				buf.WriteByte(h<<4 | lo)
				l.pos += 3
				continue
			}
		}
		buf.WriteByte(c)
		l.pos++
	}
	return core.Name(buf.String())
}

func (l *lexer) readArray() (core.Object, error) {
	l.pos++
	arr := core.Array{}
	for {
		l.skipSpace()
		if l.pos >= len(l.data) {
			return nil, fmt.Errorf("unterminated array")
		}
		if l.data[l.pos] == ']' {
			l.pos++
			return arr, nil
		}
		obj, err := l.readValue()
		if err != nil {
			return nil, err
		}
		arr = append(arr, obj)
	}
}

func (l *lexer) readDict() (core.Object, error) {
	l.pos += 2
	dict := core.Dict{}
	for {
		l.skipSpace()
		if l.pos >= len(l.data) {
			return nil, fmt.Errorf("unterminated dictionary")
		}
		if l.data[l.pos] == '>' && l.peek(1) == '>' {
			l.pos += 2
			return dict, nil
		}
		if l.data[l.pos] != '/' {
			return nil, fmt.Errorf("dictionary key is not a name at offset %d", l.pos)
		}
		key := l.readName()
		l.skipSpace()
		if l.pos >= len(l.data) {
			return nil, fmt.Errorf("unterminated dictionary")
		}
		val, err := l.readValue()
		if err != nil {
			return nil, err
		}
		dict[string(key)] = val
	}
}

// readValue 读取数组或字典内的值，允许 true/false/null 关键字
func (l *lexer) readValue() (core.Object, error) {
	c := l.data[l.pos]
	if isRegular(c) && !isNumberStart(c) {
		switch word := l.readWord(); word {
		case "true":
			return core.Bool(true), nil
		case "false":
			return core.Bool(false), nil
		case "null":
			return core.Null{}, nil
		default:
			return nil, fmt.Errorf("unexpected keyword %q in value", word)
		}
	}
	return l.readObject()
}

// readInlineImage 读取 BI 之后的参数、ID 与原始数据，直到独立的 EI
func (l *lexer) readInlineImage() (contentstream.Operation, error) {
	params := core.Dict{}
	for {
		l.skipSpace()
		if l.pos >= len(l.data) {
			return contentstream.Operation{}, fmt.Errorf("unterminated inline image")
		}
		if l.data[l.pos] != '/' {
			if word := l.readWord(); word != "ID" {
				return contentstream.Operation{}, fmt.Errorf("unexpected %q in inline image", word)
			}
			break
		}
		key := l.readName()
		l.skipSpace()
		if l.pos >= len(l.data) {
			return contentstream.Operation{}, fmt.Errorf("unterminated inline image")
		}
		val, err := l.readValue()
		if err != nil {
			return contentstream.Operation{}, err
		}
		params[string(key)] = val
	}

	// ID 之后紧跟一个空白字节
	if l.pos < len(l.data) && isSpace(l.data[l.pos]) {
		l.pos++
	}
	start := l.pos
	for i := start; i+1 < len(l.data); i++ {
		if l.data[i] != 'E' || l.data[i+1] != 'I' {
			continue
		}
		if i > start && !isSpace(l.data[i-1]) {
			continue
		}
		if i+2 < len(l.data) && !isSpace(l.data[i+2]) {
			continue
		}
		end := i
		if end > start && isSpace(l.data[end-1]) {
			end--
		}
		l.pos = i + 2
		return contentstream.Operation{
			Operator: opInlineImage,
			Operands: []core.Object{params, core.String(l.data[start:end])},
		}, nil
	}
	return contentstream.Operation{}, fmt.Errorf("inline image without EI")
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n' || c == '\f' || c == 0
}

func isDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func isRegular(c byte) bool {
	return !isSpace(c) && !isDelimiter(c)
}

func isNumberStart(c byte) bool {
	return c == '+' || c == '-' || c == '.' || (c >= '0' && c <= '9')
}

func hexNibble(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10
	}
	return 0xff
}
