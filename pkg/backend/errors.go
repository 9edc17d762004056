package backend

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupported 表示后端不支持该能力
	ErrUnsupported = errors.New("operation not supported by backend")
	// ErrClosed 表示文档已关闭
	ErrClosed = errors.New("document already closed")
)

// BackendError 表示底层引擎打开、遍历或保存失败
type BackendError struct {
	Op   string
	Path string
	Err  error
}

func (e *BackendError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("backend %s %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("backend %s: %v", e.Op, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// NewBackendError 包装后端错误
func NewBackendError(op, path string, err error) error {
	if err == nil {
		return nil
	}
	var be *BackendError
	if errors.As(err, &be) {
		return err
	}
	return &BackendError{Op: op, Path: path, Err: err}
}

// InvalidOutputPathError 表示保存路径与源文件相同
type InvalidOutputPathError struct {
	Path string
}

func (e *InvalidOutputPathError) Error() string {
	return fmt.Sprintf("output path %s is the same as the input document", e.Path)
}
