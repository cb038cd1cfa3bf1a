package systems

import (
	"math"
	"testing"

	"github.com/RaccoonTwigs/vsmod-AnimationManagerLib/internal/shape"
	"github.com/RaccoonTwigs/vsmod-AnimationManagerLib/pkg/animation"
	"github.com/RaccoonTwigs/vsmod-AnimationManagerLib/pkg/components"
	"github.com/RaccoonTwigs/vsmod-AnimationManagerLib/pkg/ecs"
)

const humanoidPath = "../../data/shapes/humanoid.yaml"

var (
	locomotion = animation.NewCategory("locomotion", animation.BlendAverage)
	posture    = animation.NewCategory("posture", animation.BlendAverage)
	overlay    = animation.NewCategory("overlay", animation.BlendAdd)

	// 与 data/library.yaml 中的 posture 一致
	weightedPosture = animation.NewCategory("posture", animation.BlendAverage).WithWeight(0.5)

	walkID      = animation.NewAnimationId(locomotion, "walk")
	idleID      = animation.NewAnimationId(posture, "idle")
	waveID      = animation.NewAnimationId(posture, "wave")
	breathingID = animation.NewAnimationId(overlay, "breathing")
	missingID   = animation.NewAnimationId(posture, "missing")
	leanID      = animation.NewAnimationId(weightedPosture, "idle_pose")
)

func loadHumanoid(t *testing.T) *shape.Shape {
	t.Helper()
	s, err := shape.ParseShapeFile(humanoidPath)
	if err != nil {
		t.Fatalf("Failed to load humanoid shape: %v", err)
	}
	return s
}

// testWorld 一个带骨骼实体的世界 + 管理器
type testWorld struct {
	em       *ecs.EntityManager
	manager  *AnimationManager
	entity   ecs.EntityID
	skeleton *components.SkeletonComponent
}

func newTestWorld(t *testing.T, entityID ecs.EntityID) *testWorld {
	t.Helper()
	em := ecs.NewEntityManager()
	if !em.CreateEntityWithID(entityID) {
		t.Fatalf("Failed to create entity %d", entityID)
	}
	skel := components.NewSkeletonComponent(loadHumanoid(t))
	em.AddComponent(entityID, skel)

	resolver := NewWorldResolver(em)
	manager := NewAnimationManager(NewAnimationRegistry(resolver), resolver)
	registerHumanoidAnimations(t, manager)

	return &testWorld{em: em, manager: manager, entity: entityID, skeleton: skel}
}

func registerHumanoidAnimations(t *testing.T, m *AnimationManager) {
	t.Helper()
	defs := []struct {
		id     animation.AnimationId
		code   string
		cyclic bool
	}{
		{walkID, "walk", true},
		{idleID, "idle", false},
		{waveID, "wave", false},
		{breathingID, "breathing", true},
		{missingID, "does_not_exist", false},
		{leanID, "idle", false},
	}
	for _, d := range defs {
		if !m.Register(d.id, AnimationData{Code: d.code, Cyclic: d.cyclic}) {
			t.Fatalf("Failed to register %s", d.id)
		}
	}
}

func (w *testWorld) target() animation.Target {
	return animation.EntityTarget(int64(w.entity))
}

func (w *testWorld) element(t *testing.T, name string) animation.Transform {
	t.Helper()
	tr, ok := w.skeleton.ElementTransform(name)
	if !ok {
		t.Fatalf("Element %s not found", name)
	}
	return tr
}

// recordEvents 订阅并记录所有事件类型
func recordEvents(m *AnimationManager) *[]EventType {
	var got []EventType
	m.Events().Subscribe(func(e Event) {
		got = append(got, e.Type)
	})
	return &got
}

func near(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}
