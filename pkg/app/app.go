// Package app 提供动画查看器的核心包装器
//
// 查看器是动画管理器的宿主：ebiten 的 Update 以固定 TPS 调用 AnimationManager.Tick，
// Draw 用前向运动学把每个角色的骨骼画成线框。
// 桌面端通过 main.go 调用 NewApp()，移动端通过 mobile/mobile.go 调用。
package app

import (
	"context"
	"fmt"
	"image/color"
	"io"
	"log"
	"path"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"golang.design/x/clipboard"
	"gopkg.in/yaml.v3"

	"github.com/RaccoonTwigs/vsmod-AnimationManagerLib/pkg/animation"
	"github.com/RaccoonTwigs/vsmod-AnimationManagerLib/pkg/components"
	"github.com/RaccoonTwigs/vsmod-AnimationManagerLib/pkg/config"
	"github.com/RaccoonTwigs/vsmod-AnimationManagerLib/pkg/ecs"
	"github.com/RaccoonTwigs/vsmod-AnimationManagerLib/pkg/embedded"
	"github.com/RaccoonTwigs/vsmod-AnimationManagerLib/pkg/netsync"
	"github.com/RaccoonTwigs/vsmod-AnimationManagerLib/pkg/settings"
	"github.com/RaccoonTwigs/vsmod-AnimationManagerLib/pkg/systems"
	"github.com/RaccoonTwigs/vsmod-AnimationManagerLib/pkg/utils"
	"github.com/RaccoonTwigs/vsmod-AnimationManagerLib/pkg/watch"
)

// 逻辑屏幕尺寸
const (
	ScreenWidth  = 960
	ScreenHeight = 600
)

// heldItemLifetime 临时手持道具的存在时间(秒)
const heldItemLifetime = 4.0

// sequenceKeys 数字键 1-9 依次对应动画库中的序列
var sequenceKeys = []ebiten.Key{
	ebiten.Key1, ebiten.Key2, ebiten.Key3, ebiten.Key4, ebiten.Key5,
	ebiten.Key6, ebiten.Key7, ebiten.Key8, ebiten.Key9,
}

// Config 定义应用启动配置
type Config struct {
	// Verbose 启用详细日志输出
	Verbose bool
	// LibraryPath 动画库文件或目录
	LibraryPath string
	// ShapePath 角色使用的形状文件
	ShapePath string
	// Actors 场景中的角色数量
	Actors int
	// Relay 网络同步中继地址，非空时覆盖设置和动画库
	Relay string
	// Watch 监视 data/ 并热重载（仅磁盘模式）
	Watch bool
	// DataRoot 磁盘模式下 data/ 所在目录
	DataRoot string
}

// DefaultConfig 默认启动配置
func DefaultConfig() Config {
	return Config{
		LibraryPath: "data/library.yaml",
		ShapePath:   "data/shapes/humanoid.yaml",
		Actors:      3,
		DataRoot:    ".",
	}
}

// App 动画查看器，实现 ebiten.Game 接口
type App struct {
	cfg      Config
	settings *settings.Manager

	library   *config.Library
	shapes    *config.ShapeCache
	em        *ecs.EntityManager
	resolver  *systems.WorldResolver
	manager   *systems.AnimationManager
	lifetimes *systems.LifetimeSystem

	actors   []ecs.EntityID
	selected int
	drag     *OrbitDrag
	nextSeq  int

	ws      *netsync.WSClient
	watcher *watch.Watcher

	lastRun       uuid.UUID
	clipboardOK   bool
	status        string
	statusExpires time.Time

	pendingWindowSizeReset   bool
	windowSizeResetCountdown int
}

// NewApp 创建并初始化查看器
//
// 调用此函数前，必须先调用 embedded.Init() 或 embedded.InitFromDisk()。
func NewApp(cfg Config) (*App, error) {
	if !cfg.Verbose {
		log.SetOutput(io.Discard)
		log.SetFlags(0)
	}
	systems.Verbose = cfg.Verbose
	if cfg.Actors <= 0 {
		cfg.Actors = 1
	}

	fsys, err := embedded.FS()
	if err != nil {
		return nil, err
	}

	a := &App{
		cfg:      cfg,
		settings: settings.Open("animviewer"),
		shapes:   config.NewShapeCache(fsys),
		em:       ecs.NewEntityManager(),
		drag:     NewOrbitDrag(),
	}
	a.resolver = systems.NewWorldResolver(a.em)
	a.lifetimes = systems.NewLifetimeSystem(a.em)

	if err := a.spawnActors(); err != nil {
		return nil, err
	}
	if err := a.loadLibrary(); err != nil {
		return nil, err
	}

	if err := clipboard.Init(); err != nil {
		log.Printf("[App] Warning: clipboard unavailable: %v", err)
	} else {
		a.clipboardOK = true
	}

	a.connectRelay()

	if cfg.Watch {
		a.startWatcher()
	}

	return a, nil
}

// spawnActors 创建角色实体
func (a *App) spawnActors() error {
	s, err := a.shapes.Load(a.cfg.ShapePath)
	if err != nil {
		return fmt.Errorf("failed to load actor shape: %w", err)
	}
	spacing := 12.0
	start := -spacing * float64(a.cfg.Actors-1) / 2
	for i := 0; i < a.cfg.Actors; i++ {
		id := a.em.CreateEntity()
		a.em.AddComponent(id, components.NewSkeletonComponent(s))
		a.em.AddComponent(id, &components.PlacementComponent{
			Position: utils.Vec3{start + spacing*float64(i), 0, 0},
			Label:    fmt.Sprintf("actor %d", id),
		})
		a.actors = append(a.actors, id)
	}
	return nil
}

// loadLibrary 加载动画库并（重新）创建注册表和管理器
// 已有的运行全部丢弃，骨骼回到静止姿势
func (a *App) loadLibrary() error {
	fsys, err := embedded.FS()
	if err != nil {
		return err
	}
	lib, err := config.LoadLibrary(fsys, a.cfg.LibraryPath)
	if err != nil {
		return fmt.Errorf("failed to load animation library: %w", err)
	}

	registry := systems.NewAnimationRegistry(a.resolver)
	n, err := lib.RegisterAll(registry, a.shapes)
	if err != nil {
		return fmt.Errorf("failed to register animations: %w", err)
	}

	var sync netsync.Synchronizer
	if a.manager != nil {
		a.manager.Close()
	}
	if a.ws != nil {
		sync = a.ws
	}

	manager := systems.NewAnimationManager(registry, a.resolver)
	manager.SetWeightCap(lib.Global.Blending.WeightCap)
	manager.SetSynchronizer(sync)
	manager.Events().Subscribe(a.onEvent)

	a.library = lib
	a.manager = manager
	for _, id := range a.actors {
		if skel, ok := ecs.GetComponent[*components.SkeletonComponent](a.em, id); ok {
			skel.ResetPose()
		}
	}

	log.Printf("[App] Loaded %d animations and %d sequences from %s",
		n, len(lib.Sequences), a.cfg.LibraryPath)
	return nil
}

// connectRelay 连接网络同步中继（失败不影响本地播放）
func (a *App) connectRelay() {
	url := a.cfg.Relay
	if url == "" {
		url = a.settings.Settings().Relay
	}
	if url == "" {
		url = a.library.Global.Sync.Relay
	}
	if url == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	ws, err := netsync.DialWS(ctx, url)
	if err != nil {
		log.Printf("[App] Warning: %v (running without sync)", err)
		a.setStatus("relay unavailable")
		return
	}
	a.ws = ws
	a.manager.SetSynchronizer(ws)
	log.Printf("[App] Connected to relay %s", url)
}

// startWatcher 监视 data/ 下的 YAML 文件
func (a *App) startWatcher() {
	if !embedded.OnDisk() {
		log.Printf("[App] Warning: hot reload needs on-disk data, ignoring --watch")
		return
	}
	dirs := []string{filepath.Join(a.cfg.DataRoot, path.Dir(a.cfg.ShapePath))}
	if libDir := filepath.Join(a.cfg.DataRoot, path.Dir(a.cfg.LibraryPath)); libDir != dirs[0] {
		dirs = append(dirs, libDir)
	}
	w, err := watch.NewWatcher(dirs...)
	if err != nil {
		log.Printf("[App] Warning: failed to watch %v: %v", dirs, err)
		return
	}
	a.watcher = w
	log.Printf("[App] Watching %v for changes", dirs)
}

func (a *App) onEvent(e systems.Event) {
	switch e.Type {
	case systems.EventTargetInvalidated:
		a.setStatus(fmt.Sprintf("target %s removed", e.Target))
	case systems.EventRunFinished:
		if e.RunID == a.lastRun {
			a.setStatus("sequence finished")
		}
	}
	if a.cfg.Verbose {
		log.Printf("[App] Event %s run=%s target=%s", e.Type, e.RunID, e.Target)
	}
}

func (a *App) setStatus(msg string) {
	a.status = msg
	a.statusExpires = time.Now().Add(3 * time.Second)
}

// selectedTarget 当前选中角色的动画目标
func (a *App) selectedTarget() animation.Target {
	return animation.EntityTarget(int64(a.actors[a.selected]))
}

// runSequence 在选中角色上执行命名序列
func (a *App) runSequence(name string) {
	requests, err := a.library.Sequence(name)
	if err != nil {
		a.setStatus(err.Error())
		return
	}
	handle, err := a.manager.Run(a.selectedTarget(), requests...)
	if err != nil {
		a.setStatus(fmt.Sprintf("%s: %v", name, err))
		return
	}
	a.lastRun = handle
	a.settings.SetLastSequence(name)
	a.setStatus(fmt.Sprintf("running %s", name))
}

// spawnHeldItem 生成一个限时手持道具并在其上挥手
func (a *App) spawnHeldItem() {
	if len(ecs.GetEntitiesWith1[*components.HeldItemComponent](a.em)) > 0 {
		a.setStatus("already holding an item")
		return
	}
	s, err := a.shapes.Load(a.cfg.ShapePath)
	if err != nil {
		a.setStatus(err.Error())
		return
	}
	owner := a.actors[a.selected]
	id := a.em.CreateEntity()
	a.em.AddComponent(id, components.NewSkeletonComponent(s))
	ecs.AddComponent(a.em, id, &components.HeldItemComponent{Owner: owner})
	ecs.AddComponent(a.em, id, &components.LifetimeComponent{MaxLifetime: heldItemLifetime})
	a.em.AddComponent(id, &components.PlacementComponent{
		Position: utils.Vec3{0, 0, 8},
		Label:    "held item",
	})

	requests, err := a.library.Sequence("wave_hello")
	if err != nil {
		a.setStatus(err.Error())
		return
	}
	if _, err := a.manager.Run(animation.HeldItemTarget(), requests...); err != nil {
		a.setStatus(err.Error())
	}
}

// copyPose 把选中角色的当前姿势以 YAML 复制到剪贴板
func (a *App) copyPose() {
	if !a.clipboardOK {
		a.setStatus("clipboard unavailable")
		return
	}
	skel, ok := ecs.GetComponent[*components.SkeletonComponent](a.em, a.actors[a.selected])
	if !ok {
		return
	}
	data, err := yaml.Marshal(skel.Snapshot())
	if err != nil {
		a.setStatus(fmt.Sprintf("failed to marshal pose: %v", err))
		return
	}
	clipboard.Write(clipboard.FmtText, data)
	a.setStatus("pose copied")
}

// reload 处理被修改的文件
func (a *App) reload(changed string) {
	log.Printf("[App] %s changed, reloading", changed)
	a.shapes.Invalidate(a.cfg.ShapePath)
	s, err := a.shapes.Load(a.cfg.ShapePath)
	if err != nil {
		a.setStatus(fmt.Sprintf("reload failed: %v", err))
		return
	}
	for _, id := range ecs.GetEntitiesWith1[*components.SkeletonComponent](a.em) {
		if skel, ok := ecs.GetComponent[*components.SkeletonComponent](a.em, id); ok {
			skel.Shape = s
		}
	}
	if err := a.loadLibrary(); err != nil {
		a.setStatus(fmt.Sprintf("reload failed: %v", err))
		return
	}
	a.setStatus("reloaded")
}

// Update 更新查看器状态
// 每个 tick 调用一次（TPS 来自动画库配置）
func (a *App) Update() error {
	a.updateWindow()
	a.handleInput()

	if a.watcher != nil {
		a.watcher.Drain(a.reload)
	}

	dt := 1.0 / float64(a.library.Global.Playback.TPS)
	a.lifetimes.Update(dt)
	a.manager.Tick(dt)
	a.em.RemoveMarkedEntities()

	if a.ws != nil {
		select {
		case <-a.ws.Done():
			log.Printf("[App] Relay connection closed")
			a.setStatus("relay disconnected")
			a.manager.SetSynchronizer(nil)
			a.ws = nil
		default:
		}
	}
	return nil
}

func (a *App) updateWindow() {
	// 退出全屏后需要等待几帧才能正确设置窗口大小
	if a.pendingWindowSizeReset {
		a.windowSizeResetCountdown--
		if a.windowSizeResetCountdown <= 0 {
			ebiten.SetWindowSize(ScreenWidth, ScreenHeight)
			a.pendingWindowSizeReset = false
		}
	}

	if inpututil.IsKeyJustPressed(ebiten.KeyF11) {
		a.settings.Settings().Fullscreen = !ebiten.IsFullscreen()
		if ebiten.IsFullscreen() {
			ebiten.SetFullscreen(false)
			if ebiten.IsWindowMaximized() || ebiten.IsWindowMinimized() {
				ebiten.RestoreWindow()
			}
			a.pendingWindowSizeReset = true
			a.windowSizeResetCountdown = 3
		} else {
			ebiten.SetFullscreen(true)
		}
	}
}

func (a *App) handleInput() {
	s := a.settings.Settings()

	if inpututil.IsKeyJustPressed(ebiten.KeyH) {
		s.ShowHelp = !s.ShowHelp
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyJ) {
		s.ShowJoints = !s.ShowJoints
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyTab) {
		a.selected = (a.selected + 1) % len(a.actors)
	}

	// 数字键执行序列
	names := a.library.SequenceNames()
	for idx, key := range sequenceKeys {
		if idx < len(names) && inpututil.IsKeyJustPressed(key) {
			a.runSequence(names[idx])
		}
	}

	if inpututil.IsKeyJustPressed(ebiten.KeySpace) && s.LastSequence != "" {
		a.runSequence(s.LastSequence)
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyS) && a.lastRun != uuid.Nil {
		if a.manager.Stop(a.lastRun) {
			a.setStatus("stopped")
		}
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyI) {
		a.spawnHeldItem()
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyC) {
		a.copyPose()
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyR) {
		a.reload(a.cfg.LibraryPath)
	}

	// 相机
	const rotateSpeed = 2.0
	if ebiten.IsKeyPressed(ebiten.KeyLeft) {
		a.settings.Rotate(-rotateSpeed, 0)
	}
	if ebiten.IsKeyPressed(ebiten.KeyRight) {
		a.settings.Rotate(rotateSpeed, 0)
	}
	if ebiten.IsKeyPressed(ebiten.KeyUp) {
		a.settings.Rotate(0, rotateSpeed)
	}
	if ebiten.IsKeyPressed(ebiten.KeyDown) {
		a.settings.Rotate(0, -rotateSpeed)
	}
	if _, wheel := ebiten.Wheel(); wheel != 0 {
		a.settings.SetZoom(s.Zoom + wheel)
	}
	if dYaw, dPitch := a.drag.Update(); dYaw != 0 || dPitch != 0 {
		a.settings.Rotate(dYaw, dPitch)
	}

	// 移动端：点击底部信息栏轮流执行序列，点击其他位置切换角色
	if x, y, ok := a.drag.Tapped(); ok && IsMobile() {
		a.handleTap(x, y)
	}
}

func (a *App) handleTap(_, y int) {
	if y < ScreenHeight-infoBarHeight {
		a.selected = (a.selected + 1) % len(a.actors)
		return
	}
	names := a.library.SequenceNames()
	if len(names) == 0 {
		return
	}
	a.runSequence(names[a.nextSeq%len(names)])
	a.nextSeq++
}

// DrawFinalScreen 实现 FinalScreenDrawer 接口
// 用于控制全屏时的缩放和 letterbox 颜色
func (a *App) DrawFinalScreen(screen ebiten.FinalScreen, offscreen *ebiten.Image, geoM ebiten.GeoM) {
	screen.Fill(color.Black)
	op := &ebiten.DrawImageOptions{}
	op.GeoM = geoM
	op.Filter = ebiten.FilterLinear
	screen.DrawImage(offscreen, op)
}

// Layout 返回逻辑屏幕尺寸
func (a *App) Layout(outsideWidth, outsideHeight int) (int, int) {
	return ScreenWidth, ScreenHeight
}

// TPS 动画库配置的模拟频率
func (a *App) TPS() int {
	return a.library.Global.Playback.TPS
}

// Fullscreen 上次保存的全屏设置
func (a *App) Fullscreen() bool {
	return a.settings.Settings().Fullscreen
}

// Close 保存设置并释放网络和文件监视资源
func (a *App) Close() error {
	a.manager.Close()
	if a.watcher != nil {
		a.watcher.Close()
	}
	if a.ws != nil {
		a.ws.Close()
	}
	return a.settings.Save()
}
