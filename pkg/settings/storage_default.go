//go:build !android

package settings

// ensureStorageDir 其他平台上 gdata 自行创建目录
func ensureStorageDir() error {
	return nil
}
