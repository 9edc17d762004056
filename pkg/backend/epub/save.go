package epub

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"regexp"

	"golang.org/x/net/html"
	"go.uber.org/zap"

	"github.com/nerdneilsfield/go-glance/pkg/backend"
)

// ContributorID 标识写入 OPF 的增强说明，重复增强时不会再次添加
const ContributorID = "glance-augment"

var metadataEnd = regexp.MustCompile(`(?i)</(?:[a-z0-9_-]+:)?metadata\s*>`)

// Save 重新打包归档：mimetype 置首且不压缩，被修改的章节替换为新内容，OPF 追加 contributor
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

	zr, err := zip.OpenReader(d.path)
	if err != nil {
		return backend.NewBackendError("save", d.path, err)
	}
	defer zr.Close()

	var buf bytes.Buffer
	if err := d.repack(ctx, &buf, &zr.Reader); err != nil {
		return backend.NewBackendError("save", path, err)
	}
	if err := backend.WriteFileAtomic(path, buf.Bytes()); err != nil {
		return backend.NewBackendError("save", path, err)
	}

	d.mu.Lock()
	changed := len(d.replaced)
	d.mu.Unlock()
	d.logger.Info("保存 EPUB 文档",
		zap.String("output", path),
		zap.Int("changed_chapters", changed))
	return nil
}

func (d *Document) repack(ctx context.Context, w io.Writer, zr *zip.Reader) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	zw := zip.NewWriter(w)
	files := make([]*zip.File, 0, len(zr.File))
	for _, f := range zr.File {
		if f.Name == "mimetype" {
			files = append([]*zip.File{f}, files...)
			continue
		}
		files = append(files, f)
	}

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		data, replaced := d.replaced[f.Name]
		switch {
		case f.Name == d.opfPath:
			opf, err := readFile(f)
			if err != nil {
				return err
			}
			data, replaced = addContributor(opf, d.contributor), true
		case f.Name == "mimetype" && f.Method != zip.Store:
			raw, err := readFile(f)
			if err != nil {
				return err
			}
			data, replaced = raw, true
		}
		if !replaced {
			if err := zw.Copy(f); err != nil {
				return fmt.Errorf("failed to copy %s: %w", f.Name, err)
			}
			continue
		}

		method := f.Method
		if f.Name == "mimetype" {
			method = zip.Store
		}
		out, err := zw.CreateHeader(&zip.FileHeader{
			Name:     f.Name,
			Method:   method,
			Modified: f.Modified,
		})
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", f.Name, err)
		}
		if _, err := out.Write(data); err != nil {
			return fmt.Errorf("failed to write %s: %w", f.Name, err)
		}
	}
	return zw.Close()
}

func readFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", f.Name, err)
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// addContributor 在 </metadata> 之前插入 <dc:contributor>
func addContributor(opf []byte, text string) []byte {
	if bytes.Contains(opf, []byte(`id="`+ContributorID+`"`)) {
		return opf
	}
	loc := metadataEnd.FindIndex(opf)
	if loc == nil {
		return opf
	}
	element := fmt.Sprintf(`<dc:contributor id="%s">%s</dc:contributor>`, ContributorID, html.EscapeString(text))

	var out bytes.Buffer
	out.Grow(len(opf) + len(element) + 4)
	out.Write(opf[:loc[0]])
	out.WriteString("  ")
	out.WriteString(element)
	out.WriteString("\n  ")
	out.Write(opf[loc[0]:])
	return out.Bytes()
}
