package config

import (
	"fmt"
	"io/fs"
	"log"
	"path"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/RaccoonTwigs/vsmod-AnimationManagerLib/internal/shape"
	"github.com/RaccoonTwigs/vsmod-AnimationManagerLib/pkg/animation"
	"github.com/RaccoonTwigs/vsmod-AnimationManagerLib/pkg/systems"
)

// LibraryFile 动画库配置文件的顶层结构
// 目录模式下每个文件都是一个 LibraryFile，列表按文件名顺序合并
type LibraryFile struct {
	Global     *GlobalConfig     `yaml:"global,omitempty"`
	Categories []CategoryConfig  `yaml:"categories"`
	Animations []AnimationConfig `yaml:"animations"`
	Sequences  []SequenceConfig  `yaml:"sequences"`
}

// GlobalConfig 全局配置
type GlobalConfig struct {
	Playback PlaybackConfig `yaml:"playback"`
	Blending BlendingConfig `yaml:"blending"`
	Sync     SyncConfig     `yaml:"sync"`
}

// PlaybackConfig 播放配置
type PlaybackConfig struct {
	TPS int `yaml:"tps"` // 模拟 TPS，Tick 的 dt = 1/TPS
}

// BlendingConfig 混合配置
type BlendingConfig struct {
	WeightCap float64 `yaml:"weight_cap"` // 平均混合的权重上限
}

// SyncConfig 网络同步配置
type SyncConfig struct {
	Relay string `yaml:"relay,omitempty"` // 中继地址（ws://...），为空时不同步
}

// CategoryConfig 动画类别
type CategoryConfig struct {
	Name   string   `yaml:"name"`
	Blend  string   `yaml:"blend"`            // add / average，默认 average
	Weight *float64 `yaml:"weight,omitempty"` // 可选：类别默认权重
}

// AnimationConfig 动画注册
type AnimationConfig struct {
	ID       string `yaml:"id"`
	Code     string `yaml:"code"` // 形状中的轨道名，默认与 id 相同
	Category string `yaml:"category"`
	Cyclic   bool   `yaml:"cyclic"`
	// Shape 可选：相对于库文件目录的形状文件；指定时注册即构建片段
	Shape         string             `yaml:"shape,omitempty"`
	ElementWeight map[string]float64 `yaml:"element_weight,omitempty"`
	ElementBlend  map[string]string  `yaml:"element_blend,omitempty"`

	// ShapePath 解析后的形状路径（相对于文件系统根目录）
	ShapePath string `yaml:"-"`
}

// SequenceConfig 命名的请求序列
type SequenceConfig struct {
	Name  string       `yaml:"name"`
	Steps []StepConfig `yaml:"steps"`
}

// StepConfig 序列中的一步
type StepConfig struct {
	Animation string        `yaml:"animation"`
	Action    string        `yaml:"action"`
	Duration  time.Duration `yaml:"duration,omitempty"`
	Frame     *float64      `yaml:"frame,omitempty"`  // set / ease_in 的目标帧
	Start     *float64      `yaml:"start,omitempty"`  // play / rewind 的起始帧
	Target    *float64      `yaml:"target,omitempty"` // play / rewind 的目标帧
	Modifier  string        `yaml:"modifier,omitempty"`
}

// Library 已加载并校验的动画库
type Library struct {
	Global     GlobalConfig
	Categories []CategoryConfig
	Animations []AnimationConfig
	Sequences  []SequenceConfig

	categoryMap  map[string]animation.Category
	animationMap map[string]*AnimationConfig
	sequenceMap  map[string]*SequenceConfig
}

// DefaultGlobalConfig 默认全局配置
func DefaultGlobalConfig() GlobalConfig {
	return GlobalConfig{
		Playback: PlaybackConfig{TPS: 60},
		Blending: BlendingConfig{WeightCap: animation.DefaultWeightCap},
	}
}

// LoadLibrary 加载动画库
//
// 参数：
//   - fsys: 文件系统（embed.FS、os.DirFS 或测试用的 fstest.MapFS）
//   - p: 单个 YAML 文件，或包含多个 *.yaml 文件的目录
func LoadLibrary(fsys fs.FS, p string) (*Library, error) {
	var files []string
	baseDir := p
	if entries, err := fs.ReadDir(fsys, p); err == nil {
		for _, e := range entries {
			if e.IsDir() || path.Ext(e.Name()) != ".yaml" {
				continue
			}
			files = append(files, path.Join(p, e.Name()))
		}
		sort.Strings(files)
		if len(files) == 0 {
			return nil, fmt.Errorf("no library files found in '%s'", p)
		}
	} else {
		files = []string{p}
		baseDir = path.Dir(p)
	}

	merged := &LibraryFile{}
	for _, file := range files {
		data, err := fs.ReadFile(fsys, file)
		if err != nil {
			return nil, fmt.Errorf("failed to read library file '%s': %w", file, err)
		}
		var lf LibraryFile
		if err := yaml.Unmarshal(data, &lf); err != nil {
			return nil, fmt.Errorf("failed to parse YAML from '%s': %w", file, err)
		}
		if lf.Global != nil {
			if merged.Global != nil {
				return nil, fmt.Errorf("duplicate global section in '%s'", file)
			}
			merged.Global = lf.Global
		}
		merged.Categories = append(merged.Categories, lf.Categories...)
		merged.Animations = append(merged.Animations, lf.Animations...)
		merged.Sequences = append(merged.Sequences, lf.Sequences...)
	}

	lib, err := newLibrary(merged, baseDir)
	if err != nil {
		return nil, fmt.Errorf("invalid library '%s': %w", p, err)
	}
	return lib, nil
}

// ParseLibrary 从内存数据解析单文件动画库，形状路径相对于 baseDir
func ParseLibrary(data []byte, baseDir string) (*Library, error) {
	var lf LibraryFile
	if err := yaml.Unmarshal(data, &lf); err != nil {
		return nil, fmt.Errorf("failed to parse library YAML: %w", err)
	}
	return newLibrary(&lf, baseDir)
}

// newLibrary 填充默认值并建立索引
func newLibrary(lf *LibraryFile, baseDir string) (*Library, error) {
	lib := &Library{
		Global:       DefaultGlobalConfig(),
		Categories:   lf.Categories,
		Animations:   lf.Animations,
		Sequences:    lf.Sequences,
		categoryMap:  make(map[string]animation.Category),
		animationMap: make(map[string]*AnimationConfig),
		sequenceMap:  make(map[string]*SequenceConfig),
	}
	if lf.Global != nil {
		lib.Global = *lf.Global
		if lib.Global.Playback.TPS <= 0 {
			lib.Global.Playback.TPS = 60
		}
		if lib.Global.Blending.WeightCap <= 0 {
			lib.Global.Blending.WeightCap = animation.DefaultWeightCap
		}
	}

	for i, c := range lib.Categories {
		if c.Name == "" {
			return nil, fmt.Errorf("category #%d has no name", i)
		}
		if _, exists := lib.categoryMap[c.Name]; exists {
			return nil, fmt.Errorf("duplicate category '%s'", c.Name)
		}
		blend, err := animation.ParseBlendMode(c.Blend)
		if err != nil {
			return nil, fmt.Errorf("category '%s': %w", c.Name, err)
		}
		category := animation.NewCategory(c.Name, blend)
		if c.Weight != nil {
			category = category.WithWeight(*c.Weight)
		}
		lib.categoryMap[c.Name] = category
	}

	for i := range lib.Animations {
		a := &lib.Animations[i]
		if a.ID == "" {
			return nil, fmt.Errorf("animation #%d has no id", i)
		}
		if _, exists := lib.animationMap[a.ID]; exists {
			return nil, fmt.Errorf("duplicate animation id '%s'", a.ID)
		}
		if _, ok := lib.categoryMap[a.Category]; !ok {
			return nil, fmt.Errorf("animation '%s' references unknown category '%s'", a.ID, a.Category)
		}
		if a.Code == "" {
			a.Code = a.ID
		}
		for element, b := range a.ElementBlend {
			if _, err := animation.ParseBlendMode(b); err != nil {
				return nil, fmt.Errorf("animation '%s' element '%s': %w", a.ID, element, err)
			}
		}
		if a.Shape != "" {
			a.ShapePath = path.Join(baseDir, a.Shape)
		}
		lib.animationMap[a.ID] = a
	}

	for i := range lib.Sequences {
		s := &lib.Sequences[i]
		if s.Name == "" {
			return nil, fmt.Errorf("sequence #%d has no name", i)
		}
		if _, exists := lib.sequenceMap[s.Name]; exists {
			return nil, fmt.Errorf("duplicate sequence '%s'", s.Name)
		}
		if len(s.Steps) == 0 {
			return nil, fmt.Errorf("sequence '%s' has no steps", s.Name)
		}
		lib.sequenceMap[s.Name] = s
		// 提前校验，Sequence() 在运行时不应失败
		if _, err := lib.Sequence(s.Name); err != nil {
			return nil, err
		}
	}

	return lib, nil
}

// Category 按名称获取类别
func (l *Library) Category(name string) (animation.Category, error) {
	c, ok := l.categoryMap[name]
	if !ok {
		return animation.Category{}, fmt.Errorf("category '%s' not found", name)
	}
	return c, nil
}

// Animation 按 id 获取动画配置
func (l *Library) Animation(id string) (*AnimationConfig, error) {
	a, ok := l.animationMap[id]
	if !ok {
		return nil, fmt.Errorf("animation '%s' not found", id)
	}
	return a, nil
}

// AnimationID 把配置中的 id 转换为 AnimationId
func (l *Library) AnimationID(id string) (animation.AnimationId, error) {
	a, err := l.Animation(id)
	if err != nil {
		return animation.AnimationId{}, err
	}
	return animation.NewAnimationId(l.categoryMap[a.Category], a.ID), nil
}

// Sequence 把命名序列转换为请求列表
func (l *Library) Sequence(name string) ([]animation.Request, error) {
	s, ok := l.sequenceMap[name]
	if !ok {
		return nil, fmt.Errorf("sequence '%s' not found", name)
	}
	requests := make([]animation.Request, 0, len(s.Steps))
	for i, step := range s.Steps {
		id, err := l.AnimationID(step.Animation)
		if err != nil {
			return nil, fmt.Errorf("sequence '%s' step %d: %w", name, i, err)
		}
		params, err := step.Parameters()
		if err != nil {
			return nil, fmt.Errorf("sequence '%s' step %d: %w", name, i, err)
		}
		requests = append(requests, animation.NewRequest(id, params))
	}
	return requests, nil
}

// SequenceNames 所有序列名称（按声明顺序）
func (l *Library) SequenceNames() []string {
	names := make([]string, 0, len(l.Sequences))
	for _, s := range l.Sequences {
		names = append(names, s.Name)
	}
	return names
}

// Parameters 把一步转换为运行参数
func (s StepConfig) Parameters() (animation.RunParameters, error) {
	action, err := animation.ParseAction(s.Action)
	if err != nil {
		return animation.RunParameters{}, err
	}
	modifier, err := animation.ParseProgressModifier(s.Modifier)
	if err != nil {
		return animation.RunParameters{}, err
	}
	if s.Duration < 0 {
		return animation.RunParameters{}, fmt.Errorf("negative duration %s", s.Duration)
	}

	frame := func(f *float64) float64 {
		if f == nil {
			return 0
		}
		return *f
	}

	switch action {
	case animation.ActionSet:
		return animation.Set(frame(s.Frame)), nil
	case animation.ActionEaseIn:
		return animation.EaseIn(s.Duration, frame(s.Frame), modifier), nil
	case animation.ActionEaseOut:
		return animation.EaseOut(s.Duration, modifier), nil
	case animation.ActionPlay, animation.ActionRewind:
		params := animation.RunParameters{
			Action:      action,
			Duration:    s.Duration,
			Modifier:    modifier,
			StartFrame:  s.Start,
			TargetFrame: s.Target,
		}
		return params, nil
	case animation.ActionStop:
		return animation.Stop(), nil
	default:
		return animation.Clear(), nil
	}
}

// ShapeLoader 按路径加载形状
type ShapeLoader interface {
	Load(path string) (*shape.Shape, error)
}

// RegisterAll 把所有动画注册到注册表
// 指定了形状的动画立即构建片段；其余按目标延迟构建。
// 返回成功注册的数量；形状加载失败返回错误，重复注册只记录日志。
func (l *Library) RegisterAll(registry *systems.AnimationRegistry, shapes ShapeLoader) (int, error) {
	registered := 0
	for i := range l.Animations {
		a := &l.Animations[i]
		id, err := l.AnimationID(a.ID)
		if err != nil {
			return registered, err
		}

		data := systems.AnimationData{
			Code:          a.Code,
			Cyclic:        a.Cyclic,
			ElementWeight: a.ElementWeight,
		}
		if len(a.ElementBlend) > 0 {
			data.ElementBlend = make(map[string]animation.BlendMode, len(a.ElementBlend))
			for element, b := range a.ElementBlend {
				// 已在加载时校验
				data.ElementBlend[element], _ = animation.ParseBlendMode(b)
			}
		}
		if a.ShapePath != "" {
			if shapes == nil {
				return registered, fmt.Errorf("animation '%s' needs shape '%s' but no shape loader was given", a.ID, a.ShapePath)
			}
			s, err := shapes.Load(a.ShapePath)
			if err != nil {
				return registered, fmt.Errorf("failed to load shape for animation '%s': %w", a.ID, err)
			}
			data.Shape = s
		}

		if !registry.Register(id, data) {
			log.Printf("[Library] Skipping animation '%s': registration rejected", a.ID)
			continue
		}
		registered++
	}
	return registered, nil
}
