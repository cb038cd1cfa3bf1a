package main

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/colornames"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"

	"github.com/RaccoonTwigs/vsmod-AnimationManagerLib/pkg/skeleton"
)

// sheetOptions 姿势表布局
type sheetOptions struct {
	Columns     int
	Cell        int // 单元格边长(像素)
	Supersample int // 超采样倍数
	Yaw, Pitch  float64
	Labels      bool
}

// posePoint 一个采样点：tick 序号和求解后的关节
type posePoint struct {
	Tick   int
	Joints []skeleton.Joint
}

var (
	sheetBackground = color.NRGBA{R: 24, G: 26, B: 32, A: 255}
	sheetBone       = colornames.Gold
	sheetJoint      = colornames.Tomato
	sheetLabel      = colornames.Lightgrey
)

// fitCamera 让所有采样姿势以同一比例居中放进单元格
func fitCamera(poses []posePoint, opts sheetOptions) skeleton.Camera {
	cam := skeleton.Camera{Yaw: opts.Yaw, Pitch: opts.Pitch, Scale: 1}
	minPt := skeleton.Point2{X: math.Inf(1), Y: math.Inf(1)}
	maxPt := skeleton.Point2{X: math.Inf(-1), Y: math.Inf(-1)}
	for _, p := range poses {
		lo, hi := cam.Bounds(p.Joints)
		minPt.X = math.Min(minPt.X, lo.X)
		minPt.Y = math.Min(minPt.Y, lo.Y)
		maxPt.X = math.Max(maxPt.X, hi.X)
		maxPt.Y = math.Max(maxPt.Y, hi.Y)
	}

	size := float64(opts.Cell * opts.Supersample)
	extent := math.Max(maxPt.X-minPt.X, maxPt.Y-minPt.Y)
	if extent <= 0 || math.IsInf(extent, 0) {
		extent = 1
	}
	cam.Scale = size * 0.8 / extent
	cam.OriginX = size/2 - (minPt.X+maxPt.X)/2*cam.Scale
	cam.OriginY = size/2 - (minPt.Y+maxPt.Y)/2*cam.Scale
	return cam
}

// renderSheet 把采样姿势画成网格
func renderSheet(poses []posePoint, opts sheetOptions) *image.NRGBA {
	if opts.Columns <= 0 {
		opts.Columns = 1
	}
	if opts.Supersample <= 0 {
		opts.Supersample = 1
	}
	rows := (len(poses) + opts.Columns - 1) / opts.Columns
	if rows == 0 {
		rows = 1
	}
	cols := opts.Columns
	if len(poses) < cols {
		cols = max(len(poses), 1)
	}

	sheet := image.NewNRGBA(image.Rect(0, 0, cols*opts.Cell, rows*opts.Cell))
	draw.Draw(sheet, sheet.Bounds(), image.NewUniform(sheetBackground), image.Point{}, draw.Src)

	cam := fitCamera(poses, opts)
	for i, p := range poses {
		cell := renderCell(p.Joints, cam, opts)
		x := (i % opts.Columns) * opts.Cell
		y := (i / opts.Columns) * opts.Cell
		dst := image.Rect(x, y, x+opts.Cell, y+opts.Cell)
		draw.CatmullRom.Scale(sheet, dst, cell, cell.Bounds(), draw.Over, nil)
		if opts.Labels {
			drawLabel(sheet, x+4, y+14, tickLabel(p.Tick))
		}
	}
	return sheet
}

// renderCell 以超采样分辨率画出一个姿势（透明背景）
func renderCell(joints []skeleton.Joint, cam skeleton.Camera, opts sheetOptions) *image.NRGBA {
	size := opts.Cell * opts.Supersample
	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	r := vector.NewRasterizer(size, size)
	ss := float32(opts.Supersample)

	for _, seg := range skeleton.Segments(joints) {
		a := cam.Project(seg.From)
		b := cam.Project(seg.To)
		strokeSegment(r, a, b, 1.5*ss)
	}
	r.Draw(img, img.Bounds(), image.NewUniform(sheetBone), image.Point{})

	r.Reset(size, size)
	for _, j := range joints {
		fillDisc(r, cam.Project(j.Position()), 2.5*ss)
	}
	r.Draw(img, img.Bounds(), image.NewUniform(sheetJoint), image.Point{})
	return img
}

// strokeSegment 把线段作为带宽度的四边形加入路径
func strokeSegment(r *vector.Rasterizer, a, b skeleton.Point2, halfWidth float32) {
	dx := float32(b.X - a.X)
	dy := float32(b.Y - a.Y)
	length := float32(math.Hypot(float64(dx), float64(dy)))
	if length == 0 {
		return
	}
	nx := -dy / length * halfWidth
	ny := dx / length * halfWidth

	ax, ay := float32(a.X), float32(a.Y)
	bx, by := float32(b.X), float32(b.Y)
	r.MoveTo(ax+nx, ay+ny)
	r.LineTo(bx+nx, by+ny)
	r.LineTo(bx-nx, by-ny)
	r.LineTo(ax-nx, ay-ny)
	r.ClosePath()
}

// fillDisc 以多边形近似圆
func fillDisc(r *vector.Rasterizer, c skeleton.Point2, radius float32) {
	const segments = 16
	cx, cy := float32(c.X), float32(c.Y)
	r.MoveTo(cx+radius, cy)
	for i := 1; i < segments; i++ {
		angle := 2 * math.Pi * float64(i) / segments
		r.LineTo(cx+radius*float32(math.Cos(angle)), cy+radius*float32(math.Sin(angle)))
	}
	r.ClosePath()
}

func drawLabel(dst draw.Image, x, y int, label string) {
	d := font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(sheetLabel),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(label)
}
