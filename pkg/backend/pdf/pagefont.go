package pdf

import (
	"strings"

	"github.com/tsawler/tabula/core"
	"github.com/tsawler/tabula/font"
)

const defaultGlyphWidth = 500.0

// pageFont 是页面资源中的一个字体，按字形码解码与测宽
type pageFont struct {
	res     string
	base    *font.Font
	cid     *font.Type0Font
	family  string
	bold    bool
	italic  bool
	twoByte bool
}

func (f *pageFont) Name() string  { return f.family }
func (f *pageFont) Bold() bool    { return f.bold }
func (f *pageFont) Italic() bool  { return f.italic }

// codeLen 返回单个字形码的字节数
func (f *pageFont) codeLen() int {
	if f != nil && f.twoByte {
		return 2
	}
	return 1
}

// decode 把一个字形码解码为 Unicode 文本
func (f *pageFont) decode(code []byte) string {
	if f == nil || f.base == nil {
		return latin1(code)
	}
	return f.base.DecodeString(code)
}

// width 返回字形码的宽度（千分之一 em）
func (f *pageFont) width(code []byte) float64 {
	if f == nil {
		return defaultGlyphWidth
	}
	v := 0
	for _, b := range code {
		v = v<<8 | int(b)
	}
	if f.cid != nil {
		return f.cid.GetWidth(rune(v))
	}
	if f.base != nil {
		return f.base.GetWidth(rune(v))
	}
	return defaultGlyphWidth
}

func latin1(b []byte) string {
	r := make([]rune, len(b))
	for i, c := range b {
		r[i] = rune(c)
	}
	return string(r)
}

// loadPageFonts 解析资源字典中的所有字体，无法解析的字体按默认宽度处理
func loadPageFonts(resources core.Dict, resolve func(core.Object) (core.Object, error)) map[string]*pageFont {
	fonts := make(map[string]*pageFont)
	if resources == nil {
		return fonts
	}
	obj, err := resolve(resources.Get("Font"))
	if err != nil {
		return fonts
	}
	dict, ok := obj.(core.Dict)
	if !ok {
		return fonts
	}

	resolveRef := func(ref core.IndirectRef) (core.Object, error) {
		return resolve(ref)
	}

	for name, ref := range dict {
		resolved, err := resolve(ref)
		if err != nil {
			continue
		}
		fd, ok := resolved.(core.Dict)
		if !ok {
			continue
		}

		pf := &pageFont{res: strings.TrimPrefix(name, "/")}
		baseFont, _ := fd.GetName("BaseFont")
		pf.family, pf.bold, pf.italic = parseBaseFont(string(baseFont))

		subtype, _ := fd.GetName("Subtype")
		var desc *font.FontDescriptor
		switch string(subtype) {
		case "Type0":
			pf.twoByte = true
			if t0, err := font.NewType0Font(fd, resolveRef); err == nil {
				pf.cid = t0
				pf.base = t0.Font
			}
		case "TrueType":
			if tt, err := font.NewTrueTypeFont(fd, resolveRef); err == nil {
				pf.base = tt.Font
				desc = tt.FontDescriptor
			}
		default:
			if t1, err := font.NewType1Font(fd, resolveRef); err == nil {
				pf.base = t1.Font
				desc = t1.FontDescriptor
			}
		}
		if desc != nil {
			if desc.Flags&(1<<6) != 0 || desc.ItalicAngle != 0 {
				pf.italic = true
			}
			if desc.Flags&(1<<18) != 0 {
				pf.bold = true
			}
		}
		fonts[pf.res] = pf
	}
	return fonts
}

// parseBaseFont 从 BaseFont 名推断字族与字重，例如 "ABCDEF+Times-BoldItalic"
func parseBaseFont(base string) (family string, bold, italic bool) {
	if i := strings.IndexByte(base, '+'); i == 6 {
		base = base[i+1:]
	}
	family = base
	style := ""
	if i := strings.IndexAny(base, "-,"); i > 0 {
		family, style = base[:i], base[i+1:]
	}

	lower := strings.ToLower(style)
	if style == "" {
		lower = strings.ToLower(base)
	}
	bold = strings.Contains(lower, "bold") || strings.Contains(lower, "black") || strings.Contains(lower, "heavy")
	italic = strings.Contains(lower, "italic") || strings.Contains(lower, "oblique")
	return family, bold, italic
}
