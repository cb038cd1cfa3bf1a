// Package settings 查看器设置的持久化（gdata + YAML）
package settings

import (
	"fmt"
	"log"

	"github.com/quasilyte/gdata/v2"
	"gopkg.in/yaml.v3"
)

// ViewerSettings 查看器设置
type ViewerSettings struct {
	// 相机
	Yaw   float64 `yaml:"yaw"`   // 度
	Pitch float64 `yaml:"pitch"` // 度
	Zoom  float64 `yaml:"zoom"`  // 每单位像素数

	// 显示
	ShowHelp   bool `yaml:"showHelp"`
	ShowJoints bool `yaml:"showJoints"`
	Fullscreen bool `yaml:"fullscreen"`

	// LastSequence 上次执行的序列，启动后可直接重放
	LastSequence string `yaml:"lastSequence"`
	// Relay 网络同步中继地址，为空时使用动画库中的配置
	Relay string `yaml:"relay"`
}

// DefaultSettings 默认设置
func DefaultSettings() *ViewerSettings {
	return &ViewerSettings{
		Yaw:        20,
		Pitch:      10,
		Zoom:       12,
		ShowHelp:   true,
		ShowJoints: true,
	}
}

// 缩放范围
const (
	MinZoom = 2.0
	MaxZoom = 60.0
)

// Manager 设置管理器
type Manager struct {
	gdataManager *gdata.Manager // 可为 nil（降级模式，仅内存设置）
	settings     *ViewerSettings
}

const (
	settingsObject   = "viewer"
	settingsProperty = "settings"
)

// NewManager 创建设置管理器并加载已保存的设置
// 加载失败不是致命错误，使用默认设置
func NewManager(gdataManager *gdata.Manager) *Manager {
	m := &Manager{
		gdataManager: gdataManager,
		settings:     DefaultSettings(),
	}
	if err := m.Load(); err != nil {
		log.Printf("[Settings] Warning: Failed to load settings: %v (using defaults)", err)
	}
	return m
}

// Open 用应用名打开 gdata 存储并创建管理器
// 存储不可用时退化为仅内存设置
func Open(appName string) *Manager {
	if err := ensureStorageDir(); err != nil {
		log.Printf("[Settings] Warning: %v", err)
	}
	gm, err := gdata.Open(gdata.Config{AppName: appName})
	if err != nil {
		log.Printf("[Settings] Warning: gdata unavailable: %v (settings will not persist)", err)
		return NewManager(nil)
	}
	return NewManager(gm)
}

// Load 从 gdata 加载设置
func (m *Manager) Load() error {
	if m.gdataManager == nil {
		m.settings = DefaultSettings()
		return nil
	}
	if !m.gdataManager.ObjectPropExists(settingsObject, settingsProperty) {
		m.settings = DefaultSettings()
		return nil
	}

	data, err := m.gdataManager.LoadObjectProp(settingsObject, settingsProperty)
	if err != nil {
		m.settings = DefaultSettings()
		return fmt.Errorf("failed to load settings: %w", err)
	}

	// 在默认值上解码，旧版本缺少的字段保持默认
	loaded := DefaultSettings()
	if err := yaml.Unmarshal(data, loaded); err != nil {
		m.settings = DefaultSettings()
		return fmt.Errorf("failed to unmarshal settings: %w", err)
	}
	loaded.Zoom = clampZoom(loaded.Zoom)
	m.settings = loaded
	return nil
}

// Save 保存设置；降级模式下不报错
func (m *Manager) Save() error {
	if m.gdataManager == nil {
		return nil
	}
	data, err := yaml.Marshal(m.settings)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}
	if err := m.gdataManager.SaveObjectProp(settingsObject, settingsProperty, data); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	log.Printf("[Settings] Settings saved")
	return nil
}

// Settings 当前设置
func (m *Manager) Settings() *ViewerSettings {
	return m.settings
}

// Persistent 设置是否能持久化
func (m *Manager) Persistent() bool {
	return m.gdataManager != nil
}

// Rotate 调整相机角度，Pitch 限制在 [-89, 89]
func (m *Manager) Rotate(dYaw, dPitch float64) {
	s := m.settings
	s.Yaw += dYaw
	for s.Yaw >= 360 {
		s.Yaw -= 360
	}
	for s.Yaw < 0 {
		s.Yaw += 360
	}
	s.Pitch += dPitch
	if s.Pitch > 89 {
		s.Pitch = 89
	}
	if s.Pitch < -89 {
		s.Pitch = -89
	}
}

// SetZoom 设置缩放（限制在 [MinZoom, MaxZoom]）
func (m *Manager) SetZoom(zoom float64) {
	m.settings.Zoom = clampZoom(zoom)
}

// SetLastSequence 记录上次执行的序列
func (m *Manager) SetLastSequence(name string) {
	m.settings.LastSequence = name
}

func clampZoom(zoom float64) float64 {
	if zoom < MinZoom {
		return MinZoom
	}
	if zoom > MaxZoom {
		return MaxZoom
	}
	return zoom
}
