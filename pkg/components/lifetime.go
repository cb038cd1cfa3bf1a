package components

// LifetimeComponent 限时实体（如查看器里临时生成的手持道具）
// 到期后由 LifetimeSystem 标记删除，动画管理器在下一次 Tick 清理其动画
type LifetimeComponent struct {
	MaxLifetime     float64 // 最大生命周期(秒)
	CurrentLifetime float64 // 当前已存在时间(秒)
	IsExpired       bool    // 是否已过期
}

// Remaining 剩余时间(秒)，不小于 0
func (c *LifetimeComponent) Remaining() float64 {
	if r := c.MaxLifetime - c.CurrentLifetime; r > 0 {
		return r
	}
	return 0
}
