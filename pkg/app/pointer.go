package app

import (
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
)

// DragState 拖拽状态
type DragState int

const (
	// DragStateNone 无拖拽
	DragStateNone DragState = iota
	// DragStateStarted 拖拽开始（刚按下）
	DragStateStarted
	// DragStateDragging 拖拽中（按住移动）
	DragStateDragging
	// DragStateEnded 拖拽结束（释放），只持续一帧
	DragStateEnded
)

// pointerSample 一帧的指针输入
type pointerSample struct {
	JustPressed bool
	Pressed     bool
	X, Y        int
	TouchID     ebiten.TouchID // -1 表示鼠标
}

// readPointer 读取当前帧的指针，触摸优先于鼠标
func readPointer(tracked ebiten.TouchID) pointerSample {
	if ids := inpututil.AppendJustPressedTouchIDs(nil); len(ids) > 0 {
		x, y := ebiten.TouchPosition(ids[0])
		return pointerSample{JustPressed: true, Pressed: true, X: x, Y: y, TouchID: ids[0]}
	}
	if tracked >= 0 {
		for _, id := range ebiten.AppendTouchIDs(nil) {
			if id == tracked {
				x, y := ebiten.TouchPosition(id)
				return pointerSample{Pressed: true, X: x, Y: y, TouchID: id}
			}
		}
		return pointerSample{TouchID: tracked}
	}

	x, y := ebiten.CursorPosition()
	return pointerSample{
		JustPressed: inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft),
		Pressed:     ebiten.IsMouseButtonPressed(ebiten.MouseButtonLeft),
		X:           x,
		Y:           y,
		TouchID:     -1,
	}
}

// tapSlop 点击允许的最大移动距离(像素)
const tapSlop = 6

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// OrbitDrag 把鼠标/触摸拖拽转换为相机旋转增量
type OrbitDrag struct {
	state        DragState
	touchID      ebiten.TouchID
	lastX, lastY int
	travel       int
	// Sensitivity 每像素旋转的角度
	Sensitivity float64
}

// NewOrbitDrag 创建拖拽跟踪器
func NewOrbitDrag() *OrbitDrag {
	return &OrbitDrag{touchID: -1, Sensitivity: 0.5}
}

// Update 读取本帧输入，返回本帧的偏航和俯仰增量(度)
func (d *OrbitDrag) Update() (dYaw, dPitch float64) {
	return d.apply(readPointer(d.touchID))
}

func (d *OrbitDrag) apply(p pointerSample) (dYaw, dPitch float64) {
	switch d.state {
	case DragStateNone, DragStateEnded:
		d.state = DragStateNone
		d.touchID = -1
		if p.JustPressed {
			d.state = DragStateStarted
			d.touchID = p.TouchID
			d.lastX, d.lastY = p.X, p.Y
			d.travel = 0
		}
		return 0, 0

	case DragStateStarted, DragStateDragging:
		if !p.Pressed {
			d.state = DragStateEnded
			return 0, 0
		}
		d.state = DragStateDragging
		dx, dy := p.X-d.lastX, p.Y-d.lastY
		d.lastX, d.lastY = p.X, p.Y
		d.travel += abs(dx) + abs(dy)
		// 向上拖动时抬高相机
		return float64(dx) * d.Sensitivity, float64(-dy) * d.Sensitivity
	}
	return 0, 0
}

// Tapped 本帧结束的是一次点击（几乎没有移动），返回点击位置
func (d *OrbitDrag) Tapped() (x, y int, ok bool) {
	if d.state != DragStateEnded || d.travel > tapSlop {
		return 0, 0, false
	}
	return d.lastX, d.lastY, true
}

// State 当前拖拽状态
func (d *OrbitDrag) State() DragState {
	return d.state
}

// IsDragging 是否正在拖拽
func (d *OrbitDrag) IsDragging() bool {
	return d.state == DragStateDragging
}

// Reset 重置拖拽状态
func (d *OrbitDrag) Reset() {
	d.state = DragStateNone
	d.touchID = -1
}
