package skeleton

import (
	"math"

	"github.com/RaccoonTwigs/vsmod-AnimationManagerLib/pkg/utils"
)

// Camera 正交投影相机
// 先绕 Y 轴旋转 Yaw，再绕 X 轴旋转 Pitch，然后丢弃深度；屏幕 Y 轴向下。
type Camera struct {
	Yaw     float64 // 度
	Pitch   float64 // 度
	Scale   float64 // 每单位像素数
	OriginX float64
	OriginY float64
}

// Point2 屏幕坐标
type Point2 struct {
	X, Y float64
}

// Project 投影一个世界坐标点
func (c Camera) Project(v utils.Vec3) Point2 {
	yaw := c.Yaw * math.Pi / 180
	pitch := c.Pitch * math.Pi / 180

	x := v[0]*math.Cos(yaw) + v[2]*math.Sin(yaw)
	z := -v[0]*math.Sin(yaw) + v[2]*math.Cos(yaw)
	y := v[1]*math.Cos(pitch) - z*math.Sin(pitch)

	scale := c.Scale
	if scale == 0 {
		scale = 1
	}
	return Point2{X: c.OriginX + x*scale, Y: c.OriginY - y*scale}
}

// Bounds 投影后所有关节的包围盒
func (c Camera) Bounds(joints []Joint) (minPt, maxPt Point2) {
	if len(joints) == 0 {
		return Point2{}, Point2{}
	}
	minPt = Point2{math.Inf(1), math.Inf(1)}
	maxPt = Point2{math.Inf(-1), math.Inf(-1)}
	for _, j := range joints {
		p := c.Project(j.Position())
		minPt.X = math.Min(minPt.X, p.X)
		minPt.Y = math.Min(minPt.Y, p.Y)
		maxPt.X = math.Max(maxPt.X, p.X)
		maxPt.Y = math.Max(maxPt.Y, p.Y)
	}
	return minPt, maxPt
}
