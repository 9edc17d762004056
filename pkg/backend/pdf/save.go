package pdf

import (
	"bytes"
	"compress/zlib"
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/tsawler/tabula/core"
	"go.uber.org/zap"

	"github.com/nerdneilsfield/go-glance/pkg/backend"
)

// pageUpdate 是一页的新内容及其需要的新资源
type pageUpdate struct {
	entry     pageEntry
	resources core.Dict
	content   []byte
	fonts     map[string]*embeddedFont
	alphas    map[string]float64
}

// Save 以增量更新的方式把修改写到 path，原文件保持不变
func (d *Document) Save(ctx context.Context, path string) error {
	if d.closed {
		return backend.ErrClosed
	}
	if err := backend.CheckOutputPath(path, d.path); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	src, err := os.ReadFile(d.path)
	if err != nil {
		return backend.NewBackendError("save", d.path, err)
	}
	out, err := d.appendUpdate(src, time.Now())
	if err != nil {
		return backend.NewBackendError("save", path, err)
	}
	if err := backend.WriteFileAtomic(path, out); err != nil {
		return backend.NewBackendError("save", path, err)
	}
	d.logger.Info("保存 PDF 文档",
		zap.String("output", path),
		zap.Int("changed_pages", len(d.updates)))
	return nil
}

// incremental 收集增量更新部分的对象
type incremental struct {
	buf     bytes.Buffer
	next    int
	offsets map[int]int64
	gens    map[int]int
}

func (u *incremental) alloc() core.IndirectRef {
	ref := core.IndirectRef{Number: u.next}
	u.next++
	return ref
}

func (u *incremental) begin(ref core.IndirectRef) {
	u.offsets[ref.Number] = int64(u.buf.Len())
	u.gens[ref.Number] = ref.Generation
	fmt.Fprintf(&u.buf, "%d %d obj\n", ref.Number, ref.Generation)
}

func (u *incremental) object(ref core.IndirectRef, obj core.Object) error {
	u.begin(ref)
	if err := writeObject(&u.buf, obj); err != nil {
		return fmt.Errorf("object %d: %w", ref.Number, err)
	}
	u.buf.WriteString("\nendobj\n")
	return nil
}

func (u *incremental) stream(ref core.IndirectRef, dict core.Dict, data []byte) error {
	dict["Length"] = core.Int(len(data))
	u.begin(ref)
	if err := writeObject(&u.buf, dict); err != nil {
		return fmt.Errorf("stream %d: %w", ref.Number, err)
	}
	u.buf.WriteString("\nstream\n")
	u.buf.Write(data)
	u.buf.WriteString("\nendstream\nendobj\n")
	return nil
}

// appendUpdate 在源字节之后追加新对象、xref 与 trailer。
// 源文件最后一节是 xref 流时，更新同样以 xref 流写出。
func (d *Document) appendUpdate(src []byte, now time.Time) ([]byte, error) {
	xp := core.NewXRefParser(bytes.NewReader(src))
	prev, err := xp.FindXRef()
	if err != nil {
		return nil, err
	}
	streamXRef := false
	if last, err := xp.ParseXRef(prev); err == nil {
		streamXRef = last.IsStream
	} else {
		d.logger.Debug("无法判断 xref 形式，写出传统 xref 表", zap.Error(err))
	}

	trailer := d.r.Trailer()
	size, ok := trailer.GetInt("Size")
	if !ok {
		return nil, fmt.Errorf("trailer missing /Size")
	}
	root := trailer.Get("Root")
	if root == nil {
		return nil, fmt.Errorf("trailer missing /Root")
	}

	u := &incremental{next: int(size), offsets: make(map[int]int64), gens: make(map[int]int)}
	u.buf.Write(src)
	if len(src) > 0 && src[len(src)-1] != '\n' {
		u.buf.WriteByte('\n')
	}

	fontRefs, err := d.writeFonts(u)
	if err != nil {
		return nil, err
	}

	for _, up := range d.updates {
		if err := d.writePage(u, up, fontRefs); err != nil {
			return nil, fmt.Errorf("page object %d: %w", up.entry.ref.Number, err)
		}
	}

	infoRef, err := d.writeInfo(u, now)
	if err != nil {
		return nil, err
	}

	t := core.Dict{
		"Root": root,
		"Info": infoRef,
		"ID":   documentID(trailer),
		"Prev": core.Int(prev),
	}
	var xrefAt int
	if streamXRef {
		xrefAt, err = u.xrefStream(t)
	} else {
		xrefAt, err = u.xrefTable(t)
	}
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(&u.buf, "startxref\n%d\n%%%%EOF\n", xrefAt)
	return u.buf.Bytes(), nil
}

func (u *incremental) numbers() []int {
	nums := make([]int, 0, len(u.offsets))
	for n := range u.offsets {
		nums = append(nums, n)
	}
	sort.Ints(nums)
	return nums
}

// xrefTable 写出传统 xref 表与 trailer，返回 xref 的偏移
func (u *incremental) xrefTable(trailer core.Dict) (int, error) {
	at := u.buf.Len()
	u.buf.WriteString("xref\n")
	nums := u.numbers()
	if len(nums) == 0 || nums[0] != 0 {
		u.buf.WriteString("0 1\n0000000000 65535 f \n")
	}
	for _, n := range nums {
		fmt.Fprintf(&u.buf, "%d 1\n%010d %05d n \n", n, u.offsets[n], u.gens[n])
	}

	trailer["Size"] = core.Int(u.next)
	u.buf.WriteString("trailer\n")
	if err := writeObject(&u.buf, trailer); err != nil {
		return 0, err
	}
	u.buf.WriteString("\n")
	return at, nil
}

// xrefStream 写出 /Type /XRef 流对象，它自身也登记在流中。连续对象号合并为一个 /Index 区间。
func (u *incremental) xrefStream(trailer core.Dict) (int, error) {
	ref := u.alloc()
	at := u.buf.Len()
	u.offsets[ref.Number] = int64(at)
	u.gens[ref.Number] = 0

	nums := u.numbers()
	width := offsetWidth(int64(at))
	var rows bytes.Buffer
	var index core.Array
	for i := 0; i < len(nums); {
		j := i
		for j+1 < len(nums) && nums[j+1] == nums[j]+1 {
			j++
		}
		index = append(index, core.Int(nums[i]), core.Int(j-i+1))
		for _, n := range nums[i : j+1] {
			rows.WriteByte(1)
			putUint(&rows, uint64(u.offsets[n]), width)
			putUint(&rows, uint64(u.gens[n]), 2)
		}
		i = j + 1
	}

	var z bytes.Buffer
	zw := zlib.NewWriter(&z)
	if _, err := zw.Write(rows.Bytes()); err != nil {
		return 0, fmt.Errorf("xref stream: %w", err)
	}
	if err := zw.Close(); err != nil {
		return 0, fmt.Errorf("xref stream: %w", err)
	}

	dict := copyDict(trailer)
	dict["Type"] = core.Name("XRef")
	dict["Size"] = core.Int(u.next)
	dict["Index"] = index
	dict["W"] = core.Array{core.Int(1), core.Int(width), core.Int(2)}
	dict["Filter"] = core.Name("FlateDecode")
	if err := u.stream(ref, dict, z.Bytes()); err != nil {
		return 0, err
	}
	return at, nil
}

// offsetWidth 返回容纳 v 所需的最少字节数
func offsetWidth(v int64) int {
	w := 1
	for w < 8 && v >= int64(1)<<(8*w) {
		w++
	}
	return w
}

func putUint(b *bytes.Buffer, v uint64, width int) {
	for i := width - 1; i >= 0; i-- {
		b.WriteByte(byte(v >> (8 * i)))
	}
}

// writeFonts 为本次保存中用到的每个字体写出字体文件、描述符与字体字典
func (d *Document) writeFonts(u *incremental) (map[string]core.IndirectRef, error) {
	used := make(map[string]bool)
	for _, up := range d.updates {
		for res := range up.fonts {
			used[res] = true
		}
	}

	refs := make(map[string]core.IndirectRef)
	for _, f := range d.fonts.order {
		if !used[f.res] {
			continue
		}
		fileRef, descRef, fontRef := u.alloc(), u.alloc(), u.alloc()

		fileDict := core.Dict{"Length1": core.Int(len(f.data))}
		fileKey := "FontFile2"
		if f.cff {
			fileDict["Subtype"] = core.Name("OpenType")
			fileKey = "FontFile3"
		}
		if err := u.stream(fileRef, fileDict, f.data); err != nil {
			return nil, err
		}

		flags := 32
		angle := 0.0
		if f.italic {
			flags |= 64
			angle = -12
		}
		desc := core.Dict{
			"Type":         core.Name("FontDescriptor"),
			"FontName":     core.Name(f.psName),
			"Flags":        core.Int(flags),
			"FontBBox":     core.Array{num(round(f.bbox[0])), num(round(f.bbox[1])), num(round(f.bbox[2])), num(round(f.bbox[3]))},
			"ItalicAngle":  num(angle),
			"Ascent":       num(round(f.ascent)),
			"Descent":      num(round(f.descent)),
			"CapHeight":    num(round(f.capH)),
			"StemV":        core.Int(80),
			"MissingWidth": num(round(f.missingW)),
			fileKey:        fileRef,
		}
		if err := u.object(descRef, desc); err != nil {
			return nil, err
		}

		widths := make(core.Array, 0, len(f.widths))
		for _, w := range f.widths {
			widths = append(widths, num(round(w)))
		}
		fontDict := core.Dict{
			"Type":           core.Name("Font"),
			"Subtype":        core.Name("TrueType"),
			"BaseFont":       core.Name(f.psName),
			"FirstChar":      core.Int(firstChar),
			"LastChar":       core.Int(lastChar),
			"Widths":         widths,
			"Encoding":       core.Name("WinAnsiEncoding"),
			"FontDescriptor": descRef,
		}
		if err := u.object(fontRef, fontDict); err != nil {
			return nil, err
		}
		refs[f.res] = fontRef
	}
	return refs, nil
}

// writePage 写出压缩后的新内容流，并在原对象号下重写页面字典
func (d *Document) writePage(u *incremental, up *pageUpdate, fontRefs map[string]core.IndirectRef) error {
	var z bytes.Buffer
	zw := zlib.NewWriter(&z)
	if _, err := zw.Write(up.content); err != nil {
		return err
	}
	if err := zw.Close(); err != nil {
		return err
	}
	contentRef := u.alloc()
	if err := u.stream(contentRef, core.Dict{"Filter": core.Name("FlateDecode")}, z.Bytes()); err != nil {
		return err
	}

	resources := copyDict(up.resources)
	if len(up.fonts) > 0 {
		fonts, err := d.subDict(resources, "Font")
		if err != nil {
			return err
		}
		for res := range up.fonts {
			ref, ok := fontRefs[res]
			if !ok {
				return fmt.Errorf("font %s was not written", res)
			}
			fonts[res] = ref
		}
		resources["Font"] = fonts
	}
	if len(up.alphas) > 0 {
		states, err := d.subDict(resources, "ExtGState")
		if err != nil {
			return err
		}
		for name, a := range up.alphas {
			states[name] = core.Dict{
				"Type": core.Name("ExtGState"),
				"ca":   num(a),
				"CA":   num(a),
			}
		}
		resources["ExtGState"] = states
	}

	page := copyDict(up.entry.dict)
	page["Contents"] = contentRef
	page["Resources"] = resources
	for _, key := range []string{"MediaBox", "CropBox", "Rotate"} {
		if page.Get(key) == nil {
			if v := up.entry.inherited.Get(key); v != nil {
				page[key] = v
			}
		}
	}
	return u.object(up.entry.ref, page)
}

// subDict 返回资源中某个子字典的副本，间接引用会被解析
func (d *Document) subDict(resources core.Dict, key string) (core.Dict, error) {
	obj, err := d.resolve(resources.Get(key))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve /%s: %w", key, err)
	}
	existing, _ := obj.(core.Dict)
	return copyDict(existing), nil
}

// writeInfo 更新文档信息字典，记录增强来源与修改时间
func (d *Document) writeInfo(u *incremental, now time.Time) (core.IndirectRef, error) {
	info, err := d.r.GetInfo()
	if err != nil {
		d.logger.Debug("无法读取文档信息，重新创建", zap.Error(err))
		info = nil
	}
	updated := copyDict(info)

	producer := d.producer
	if old, ok := updated.GetString("Producer"); ok && len(old) > 0 {
		producer = string(old) + "; " + d.producer
	}
	updated["Producer"] = core.String(producer)
	updated["ModDate"] = core.String(now.UTC().Format("D:20060102150405Z"))

	ref, ok := d.r.Trailer().GetIndirectRef("Info")
	if !ok {
		ref = u.alloc()
	}
	if err := u.object(ref, updated); err != nil {
		return core.IndirectRef{}, err
	}
	return ref, nil
}

// documentID 保留原始 ID 的第一部分，第二部分标识本次修订
func documentID(trailer core.Dict) core.Array {
	rev := uuid.New()
	first := core.String(rev[:])
	if ids, ok := trailer.GetArray("ID"); ok && len(ids) > 0 {
		if s, ok := ids[0].(core.String); ok {
			first = s
		}
	}
	next := uuid.New()
	return core.Array{first, core.String(next[:])}
}

func copyDict(src core.Dict) core.Dict {
	out := make(core.Dict, len(src)+2)
	for k, v := range src {
		out[k] = v
	}
	return out
}
