package backend

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Kind 是文档类型
type Kind string

const (
	KindPDF  Kind = "pdf"
	KindEPUB Kind = "epub"
)

// DetectKind 根据扩展名判断文档类型，forceEPUB 时一律按 EPUB 处理
func DetectKind(path string, forceEPUB bool) (Kind, error) {
	if forceEPUB {
		return KindEPUB, nil
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return KindPDF, nil
	case ".epub":
		return KindEPUB, nil
	default:
		return "", fmt.Errorf("unsupported document type: %s", path)
	}
}

// ResolveOutputPath 计算输出路径：显式路径优先，其次 writeInto 目录，最后是当前工作目录下的同名文件
func ResolveOutputPath(explicit, writeInto, input string) string {
	if explicit != "" {
		return explicit
	}
	base := filepath.Base(input)
	if writeInto != "" {
		return filepath.Join(writeInto, base)
	}
	return base
}

// CheckOutputPath 在任何写出之前确认输出路径不会覆盖源文件
func CheckOutputPath(output, input string) error {
	outAbs, err := filepath.Abs(output)
	if err != nil {
		return fmt.Errorf("resolve output path %s: %w", output, err)
	}
	inAbs, err := filepath.Abs(input)
	if err != nil {
		return fmt.Errorf("resolve input path %s: %w", input, err)
	}
	if outAbs == inAbs {
		return &InvalidOutputPathError{Path: output}
	}

	outInfo, err := os.Stat(outAbs)
	if err != nil {
		// 输出文件尚不存在
		return nil
	}
	inInfo, err := os.Stat(inAbs)
	if err != nil {
		return nil
	}
	if os.SameFile(outInfo, inInfo) {
		return &InvalidOutputPathError{Path: output}
	}
	return nil
}

// WriteFileAtomic 先写同目录下的临时文件再重命名，失败时不留下半成品
func WriteFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(name)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return err
	}
	if err := os.Rename(name, path); err != nil {
		os.Remove(name)
		return err
	}
	return nil
}
