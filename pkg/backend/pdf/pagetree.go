package pdf

import (
	"fmt"

	"github.com/tsawler/tabula/core"
)

// 页面树中可继承的属性
var inheritable = []string{"Resources", "MediaBox", "CropBox", "Rotate"}

// pageEntry 是页面树中的一个叶子
type pageEntry struct {
	ref  core.IndirectRef
	dict core.Dict
	// inherited 汇总了所有祖先节点的可继承属性
	inherited core.Dict
}

// walkPages 按文档顺序展开 /Pages 树
func (d *Document) walkPages() ([]pageEntry, error) {
	catalog, err := d.r.GetCatalog()
	if err != nil {
		return nil, err
	}
	root := catalog.Get("Pages")
	if root == nil {
		return nil, fmt.Errorf("catalog missing /Pages")
	}

	var out []pageEntry
	visited := make(map[int]bool)

	var walk func(obj core.Object, inherited core.Dict) error
	walk = func(obj core.Object, inherited core.Dict) error {
		ref, ok := obj.(core.IndirectRef)
		if !ok {
			return fmt.Errorf("page tree node is not a reference: %T", obj)
		}
		if visited[ref.Number] {
			return fmt.Errorf("page tree cycle at object %d", ref.Number)
		}
		visited[ref.Number] = true

		resolved, err := d.r.ResolveReference(ref)
		if err != nil {
			return fmt.Errorf("failed to resolve page node %d: %w", ref.Number, err)
		}
		node, ok := resolved.(core.Dict)
		if !ok {
			return fmt.Errorf("page node %d is %T", ref.Number, resolved)
		}

		next := make(core.Dict, len(inherited)+len(inheritable))
		for k, v := range inherited {
			next[k] = v
		}
		for _, key := range inheritable {
			if v := node.Get(key); v != nil {
				next[key] = v
			}
		}

		typ, _ := node.GetName("Type")
		kidsObj := node.Get("Kids")
		if typ == "Page" || (typ == "" && kidsObj == nil) {
			out = append(out, pageEntry{ref: ref, dict: node, inherited: next})
			return nil
		}

		kids, err := d.resolve(kidsObj)
		if err != nil {
			return fmt.Errorf("failed to resolve /Kids of %d: %w", ref.Number, err)
		}
		arr, ok := kids.(core.Array)
		if !ok {
			return fmt.Errorf("invalid /Kids of %d: %T", ref.Number, kids)
		}
		for _, kid := range arr {
			if err := walk(kid, next); err != nil {
				return err
			}
		}
		return nil
	}

	if err := walk(root, core.Dict{}); err != nil {
		return nil, err
	}
	return out, nil
}
