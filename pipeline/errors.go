package pipeline

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrSchema 缺少必需列
	ErrSchema = errors.New("required column missing")
	// ErrNoInput 未提供输入文件
	ErrNoInput = errors.New("no input files")
)

// LoadError 文件不可读或格式错误
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}
