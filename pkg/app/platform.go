//go:build !mobile

package app

import "os"

// IsMobile 是否以移动端布局运行
// 桌面端可以设置 ANIMVIEWER_MOBILE_EMULATE=1 强制启用（用于本地调试）
func IsMobile() bool {
	return os.Getenv("ANIMVIEWER_MOBILE_EMULATE") == "1"
}
