package app

import (
	"fmt"
	"image/color"
	"sort"
	"strings"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/vector"

	"github.com/RaccoonTwigs/vsmod-AnimationManagerLib/pkg/components"
	"github.com/RaccoonTwigs/vsmod-AnimationManagerLib/pkg/ecs"
	"github.com/RaccoonTwigs/vsmod-AnimationManagerLib/pkg/skeleton"
	"github.com/RaccoonTwigs/vsmod-AnimationManagerLib/pkg/utils"
)

var (
	backgroundColor = color.RGBA{R: 24, G: 26, B: 32, A: 255}
	gridColor       = color.RGBA{R: 48, G: 52, B: 60, A: 255}
	boneColor       = color.RGBA{R: 200, G: 200, B: 210, A: 255}
	selectedColor   = color.RGBA{R: 255, G: 200, B: 80, A: 255}
	heldItemColor   = color.RGBA{R: 120, G: 200, B: 255, A: 255}
	jointColor      = color.RGBA{R: 255, G: 90, B: 90, A: 255}
)

const infoBarHeight = 40

// camera 根据当前设置构建相机，原点在屏幕下方中央
func (a *App) camera() skeleton.Camera {
	s := a.settings.Settings()
	return skeleton.Camera{
		Yaw:     s.Yaw,
		Pitch:   s.Pitch,
		Scale:   s.Zoom,
		OriginX: ScreenWidth / 2,
		OriginY: ScreenHeight * 3 / 4,
	}
}

// Draw 渲染所有带骨骼的实体
func (a *App) Draw(screen *ebiten.Image) {
	screen.Fill(backgroundColor)
	cam := a.camera()
	a.drawGround(screen, cam)

	selected := a.actors[a.selected]
	for _, id := range ecs.GetEntitiesWith1[*components.SkeletonComponent](a.em) {
		clr := boneColor
		switch {
		case id == selected:
			clr = selectedColor
		case ecs.HasComponent[*components.HeldItemComponent](a.em, id):
			clr = heldItemColor
		}
		a.drawSkeleton(screen, cam, id, clr)
	}

	a.drawInfoBar(screen)
	if a.settings.Settings().ShowHelp {
		a.drawHelp(screen)
	}
}

// drawGround 画地面网格（y=0 平面）
func (a *App) drawGround(screen *ebiten.Image, cam skeleton.Camera) {
	const half = 30.0
	const step = 5.0
	for v := -half; v <= half; v += step {
		a.strokeWorld(screen, cam, utils.Vec3{v, 0, -half}, utils.Vec3{v, 0, half}, 1, gridColor)
		a.strokeWorld(screen, cam, utils.Vec3{-half, 0, v}, utils.Vec3{half, 0, v}, 1, gridColor)
	}
}

func (a *App) strokeWorld(screen *ebiten.Image, cam skeleton.Camera, from, to utils.Vec3, width float32, clr color.Color) {
	p0 := cam.Project(from)
	p1 := cam.Project(to)
	vector.StrokeLine(screen, float32(p0.X), float32(p0.Y), float32(p1.X), float32(p1.Y), width, clr, true)
}

// drawSkeleton 求解实体姿势并画出骨骼线段
func (a *App) drawSkeleton(screen *ebiten.Image, cam skeleton.Camera, id ecs.EntityID, clr color.Color) {
	skel, ok := ecs.GetComponent[*components.SkeletonComponent](a.em, id)
	if !ok || skel.Shape == nil {
		return
	}
	joints := skeleton.Solve(skel.Shape, skel.LocalTransforms())
	skel.Dirty = false

	placement, _ := ecs.GetComponent[*components.PlacementComponent](a.em, id)
	if placement != nil {
		skeleton.Translate(joints, placement.Position)
	}

	for _, seg := range skeleton.Segments(joints) {
		a.strokeWorld(screen, cam, seg.From, seg.To, 3, clr)
	}

	if a.settings.Settings().ShowJoints {
		for _, j := range joints {
			p := cam.Project(j.Position())
			vector.DrawFilledCircle(screen, float32(p.X), float32(p.Y), 3, jointColor, true)
		}
	}

	if placement != nil && placement.Label != "" {
		minPt, maxPt := cam.Bounds(joints)
		x := int((minPt.X+maxPt.X)/2) - len(placement.Label)*3
		ebitenutil.DebugPrintAt(screen, placement.Label, x, int(minPt.Y)-18)
	}
}

// drawInfoBar 绘制底部信息栏
func (a *App) drawInfoBar(screen *ebiten.Image) {
	vector.DrawFilledRect(screen, 0, ScreenHeight-infoBarHeight, ScreenWidth, infoBarHeight, color.RGBA{0, 0, 0, 200}, false)

	target := a.selectedTarget()
	info := fmt.Sprintf("Target: %s | Runs: %d | Composers: %d | TPS: %.0f",
		target, a.manager.ActiveRuns(), a.manager.ActiveComposers(), ebiten.ActualTPS())
	if req, ok := a.manager.CurrentRequest(a.lastRun); ok {
		info += fmt.Sprintf(" | Current: %s (%s)", req.Animation, req.Parameters.Action)
	}
	ebitenutil.DebugPrintAt(screen, info, 10, ScreenHeight-35)

	status := "Press H for help"
	if a.status != "" && time.Now().Before(a.statusExpires) {
		status = a.status
	}
	if a.ws != nil {
		status += " | synced"
	}
	ebitenutil.DebugPrintAt(screen, status, 10, ScreenHeight-18)
}

// drawHelp 绘制帮助信息
func (a *App) drawHelp(screen *ebiten.Image) {
	if IsMobile() {
		a.drawTouchHelp(screen)
		return
	}
	lines := []string{
		"=== Animation Viewer ===",
		"",
		"[1-9]     Run sequence",
		"[Space]   Repeat last sequence",
		"[S]       Stop last run",
		"[Tab]     Next actor",
		"[I]       Spawn held item",
		"[C]       Copy pose (YAML)",
		"[R]       Reload library",
		"[Arrows]  Rotate camera",
		"[Wheel]   Zoom",
		"[J]       Toggle joints",
		"[F11]     Fullscreen",
		"[H]       Toggle help",
		"",
		"Sequences:",
	}
	names := a.library.SequenceNames()
	for i, name := range names {
		if i >= 9 {
			break
		}
		lines = append(lines, fmt.Sprintf("  %d  %s", i+1, name))
	}

	categories := make([]string, 0, len(a.library.Categories))
	for _, c := range a.library.Categories {
		categories = append(categories, c.Name)
	}
	sort.Strings(categories)
	lines = append(lines, "", "Categories: "+strings.Join(categories, ", "))

	drawPanel(screen, lines)
}

// drawTouchHelp 移动端帮助
func (a *App) drawTouchHelp(screen *ebiten.Image) {
	drawPanel(screen, []string{
		"=== Animation Viewer ===",
		"",
		"Drag          Rotate camera",
		"Tap bar       Next sequence",
		"Tap elsewhere Next actor",
	})
}

func drawPanel(screen *ebiten.Image, lines []string) {
	width := 0
	for _, line := range lines {
		if len(line) > width {
			width = len(line)
		}
	}
	panelW := float32(width*6 + 20)
	panelH := float32(len(lines)*16 + 20)
	vector.DrawFilledRect(screen, 10, 10, panelW, panelH, color.RGBA{0, 0, 0, 180}, false)
	for i, line := range lines {
		ebitenutil.DebugPrintAt(screen, line, 20, 20+i*16)
	}
}
