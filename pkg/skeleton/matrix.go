package skeleton

import (
	"math"

	"github.com/RaccoonTwigs/vsmod-AnimationManagerLib/pkg/utils"
)

// Mat4 4×4 行主序矩阵，用于元素的世界变换
type Mat4 [16]float64

// Identity 单位矩阵
func Identity() Mat4 {
	return Mat4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// Mul 返回 a × b
func (a Mat4) Mul(b Mat4) Mat4 {
	var m Mat4
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			m[r*4+c] = a[r*4+0]*b[0*4+c] + a[r*4+1]*b[1*4+c] +
				a[r*4+2]*b[2*4+c] + a[r*4+3]*b[3*4+c]
		}
	}
	return m
}

// MulPoint 变换点 (w=1)
func (a Mat4) MulPoint(v utils.Vec3) utils.Vec3 {
	return utils.Vec3{
		a[0]*v[0] + a[1]*v[1] + a[2]*v[2] + a[3],
		a[4]*v[0] + a[5]*v[1] + a[6]*v[2] + a[7],
		a[8]*v[0] + a[9]*v[1] + a[10]*v[2] + a[11],
	}
}

// Translation 矩阵的平移部分
func (a Mat4) Translation() utils.Vec3 {
	return utils.Vec3{a[3], a[7], a[11]}
}

// Quat 四元数 (x, y, z, w)
type Quat [4]float64

// EulerDegrees 欧拉角（度，XYZ 顺序）转四元数
func EulerDegrees(rot utils.Vec3) Quat {
	rx, ry, rz := rot[0]*math.Pi/180, rot[1]*math.Pi/180, rot[2]*math.Pi/180
	cx, sx := math.Cos(rx*0.5), math.Sin(rx*0.5)
	cy, sy := math.Cos(ry*0.5), math.Sin(ry*0.5)
	cz, sz := math.Cos(rz*0.5), math.Sin(rz*0.5)

	return Quat{
		sx*cy*cz - cx*sy*sz,
		cx*sy*cz + sx*cy*sz,
		cx*cy*sz - sx*sy*cz,
		cx*cy*cz + sx*sy*sz,
	}
}

// Compose 由旋转四元数和平移构造仿射矩阵
func Compose(q Quat, t utils.Vec3) Mat4 {
	x, y, z, w := q[0], q[1], q[2], q[3]
	xx, yy, zz := x*x, y*y, z*z
	xy, xz, yz := x*y, x*z, y*z
	wx, wy, wz := w*x, w*y, w*z

	return Mat4{
		1 - 2*(yy+zz), 2 * (xy - wz), 2 * (xz + wy), t[0],
		2 * (xy + wz), 1 - 2*(xx+zz), 2 * (yz - wx), t[1],
		2 * (xz - wy), 2 * (yz + wx), 1 - 2*(xx+yy), t[2],
		0, 0, 0, 1,
	}
}
