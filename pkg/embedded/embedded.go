// Package embedded 提供嵌入数据的统一访问接口
//
// 由于 Go embed 指令只能嵌入当前包目录及其子目录的文件，
// embed.FS 变量必须声明在项目根目录（embed.go）。
// 本包提供包装函数，让其他包可以访问嵌入的 data/ 目录。
//
// 未调用 Init() 时可以用 InitFromDisk() 直接读取磁盘上的 data/，
// 用于热重载和命令行工具。
package embedded

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotInitialized 未初始化
var ErrNotInitialized = errors.New("embedded package not initialized, call Init() first")

var (
	dataFS      fs.FS
	onDisk      bool
	initialized bool
)

// Init 使用嵌入的文件系统初始化
// data 的根目录下必须有 data/ 目录
func Init(data fs.FS) {
	dataFS = data
	onDisk = false
	initialized = true
}

// InitFromDisk 使用磁盘目录初始化，root 下必须有 data/ 目录
func InitFromDisk(root string) error {
	info, err := os.Stat(filepath.Join(root, "data"))
	if err != nil {
		return fmt.Errorf("failed to stat data directory under '%s': %w", root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("'%s' is not a directory", filepath.Join(root, "data"))
	}
	dataFS = os.DirFS(root)
	onDisk = true
	initialized = true
	return nil
}

// IsInitialized 返回 embedded 包是否已初始化
func IsInitialized() bool {
	return initialized
}

// OnDisk 当前是否从磁盘读取（热重载只在磁盘模式下有意义）
func OnDisk() bool {
	return onDisk
}

// FS 返回根文件系统，路径以 "data/" 开头
func FS() (fs.FS, error) {
	if !initialized {
		return nil, ErrNotInitialized
	}
	return dataFS, nil
}

// normalize 标准化路径分隔符并检查前缀
func normalize(path string) (string, error) {
	if !initialized {
		return "", ErrNotInitialized
	}
	// embed.FS 使用正斜杠
	path = filepath.ToSlash(path)
	path = strings.TrimPrefix(path, "./")
	if path != "data" && !strings.HasPrefix(path, "data/") {
		return "", fmt.Errorf("unknown resource path prefix: %s (must start with 'data/')", path)
	}
	return path, nil
}

// Open 打开文件，路径必须以 "data/" 开头
func Open(path string) (fs.File, error) {
	path, err := normalize(path)
	if err != nil {
		return nil, err
	}
	return dataFS.Open(path)
}

// ReadFile 读取文件内容，路径必须以 "data/" 开头
func ReadFile(path string) ([]byte, error) {
	path, err := normalize(path)
	if err != nil {
		return nil, err
	}
	return fs.ReadFile(dataFS, path)
}

// Exists 检查文件是否存在
func Exists(path string) bool {
	file, err := Open(path)
	if err != nil {
		return false
	}
	file.Close()
	return true
}

// Glob 匹配文件，模式必须以 "data/" 开头
func Glob(pattern string) ([]string, error) {
	pattern, err := normalize(pattern)
	if err != nil {
		return nil, err
	}
	return fs.Glob(dataFS, pattern)
}

// ReadDir 读取目录内容
func ReadDir(path string) ([]fs.DirEntry, error) {
	path, err := normalize(path)
	if err != nil {
		return nil, err
	}
	return fs.ReadDir(dataFS, path)
}

// Sub 返回指定目录的子文件系统
func Sub(dir string) (fs.FS, error) {
	dir, err := normalize(dir)
	if err != nil {
		return nil, err
	}
	return fs.Sub(dataFS, dir)
}

// reset 测试用
func reset() {
	dataFS = nil
	onDisk = false
	initialized = false
}
