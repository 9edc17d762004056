package pdf

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
	"golang.org/x/text/encoding/charmap"
)

const (
	firstChar = 32
	lastChar  = 255
	// 以 1000 ppem 取度量，结果直接是 PDF 的千分之一 em 单位
	metricsPPEM = 1000
)

// embeddedFont 是为新建文本加载并嵌入的字体
type embeddedFont struct {
	path     string
	res      string
	data     []byte
	cff      bool
	psName   string
	family   string
	bold     bool
	italic   bool
	widths   [lastChar - firstChar + 1]float64
	bbox     [4]float64
	ascent   float64
	descent  float64
	capH     float64
	missingW float64
}

func (f *embeddedFont) Name() string { return f.family }
func (f *embeddedFont) Bold() bool   { return f.bold }
func (f *embeddedFont) Italic() bool { return f.italic }

// encode 把文本编码为 WinAnsi 字节，无法编码的字符替换为 '?'
func (f *embeddedFont) encode(text string) []byte {
	out := make([]byte, 0, len(text))
	for _, r := range text {
		b, ok := charmap.Windows1252.EncodeRune(r)
		if !ok || b < firstChar {
			b = '?'
		}
		out = append(out, b)
	}
	return out
}

// textWidth 返回编码后文本的宽度（千分之一 em）
func (f *embeddedFont) textWidth(codes []byte) float64 {
	w := 0.0
	for _, c := range codes {
		if c < firstChar {
			w += f.missingW
			continue
		}
		w += f.widths[int(c)-firstChar]
	}
	return w
}

// parseEmbeddedFont 用 sfnt 读取字体名称与度量
func parseEmbeddedFont(path string, data []byte) (*embeddedFont, error) {
	sf, err := sfnt.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse font %s: %w", path, err)
	}

	var buf sfnt.Buffer
	ef := &embeddedFont{
		path: path,
		data: data,
		cff:  bytes.HasPrefix(data, []byte("OTTO")),
	}

	ef.psName, _ = sf.Name(&buf, sfnt.NameIDPostScript)
	if ef.psName == "" {
		ef.psName = "GlanceFont"
	}
	ef.psName = strings.ReplaceAll(ef.psName, " ", "")

	ef.family, _ = sf.Name(&buf, sfnt.NameIDTypographicFamily)
	if ef.family == "" {
		ef.family, _ = sf.Name(&buf, sfnt.NameIDFamily)
	}
	sub, _ := sf.Name(&buf, sfnt.NameIDTypographicSubfamily)
	if sub == "" {
		sub, _ = sf.Name(&buf, sfnt.NameIDSubfamily)
	}
	lower := strings.ToLower(sub)
	ef.bold = strings.Contains(lower, "bold") || strings.Contains(lower, "black") || strings.Contains(lower, "heavy")
	ef.italic = strings.Contains(lower, "italic") || strings.Contains(lower, "oblique")

	ppem := fixed.I(metricsPPEM)
	if bounds, err := sf.Bounds(&buf, ppem, font.HintingNone); err == nil {
		// sfnt 的 y 轴向下
		ef.bbox = [4]float64{
			fixedToFloat(bounds.Min.X), -fixedToFloat(bounds.Max.Y),
			fixedToFloat(bounds.Max.X), -fixedToFloat(bounds.Min.Y),
		}
	}
	if m, err := sf.Metrics(&buf, ppem, font.HintingNone); err == nil {
		ef.ascent = fixedToFloat(m.Ascent)
		ef.descent = -fixedToFloat(m.Descent)
		ef.capH = fixedToFloat(m.CapHeight)
	}
	if ef.capH == 0 {
		ef.capH = ef.ascent
	}

	if adv, err := sf.GlyphAdvance(&buf, 0, ppem, font.HintingNone); err == nil {
		ef.missingW = fixedToFloat(adv)
	}
	for c := firstChar; c <= lastChar; c++ {
		r := charmap.Windows1252.DecodeByte(byte(c))
		idx, err := sf.GlyphIndex(&buf, r)
		if err != nil || idx == 0 {
			ef.widths[c-firstChar] = ef.missingW
			continue
		}
		adv, err := sf.GlyphAdvance(&buf, idx, ppem, font.HintingNone)
		if err != nil {
			ef.widths[c-firstChar] = ef.missingW
			continue
		}
		ef.widths[c-firstChar] = fixedToFloat(adv)
	}
	return ef, nil
}

func fixedToFloat(v fixed.Int26_6) float64 {
	return float64(v) / 64
}

// fontRegistry 按路径缓存文档中加载的字体
type fontRegistry struct {
	mu    sync.Mutex
	byKey map[string]*embeddedFont
	order []*embeddedFont
}

func newFontRegistry() *fontRegistry {
	return &fontRegistry{byKey: make(map[string]*embeddedFont)}
}

func (r *fontRegistry) load(path string) (*embeddedFont, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if f, ok := r.byKey[path]; ok {
		return f, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read font: %w", err)
	}
	f, err := parseEmbeddedFont(path, data)
	if err != nil {
		return nil, err
	}
	f.res = fmt.Sprintf("GlF%d", len(r.order)+1)
	r.byKey[path] = f
	r.order = append(r.order, f)
	return f, nil
}
