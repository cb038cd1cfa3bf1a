package systems

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/RaccoonTwigs/vsmod-AnimationManagerLib/pkg/animation"
	"github.com/RaccoonTwigs/vsmod-AnimationManagerLib/pkg/components"
	"github.com/RaccoonTwigs/vsmod-AnimationManagerLib/pkg/netsync"
	"github.com/RaccoonTwigs/vsmod-AnimationManagerLib/pkg/utils"
)

const poseEps = 1e-6

func TestAnimationManager_WalkEaseIn(t *testing.T) {
	w := newTestWorld(t, 42)
	target := animation.EntityTarget(42)

	handle, err := w.manager.RunAnimation(target, walkID,
		animation.EaseIn(500*time.Millisecond, 4, animation.ModifierLinear))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if handle == uuid.Nil {
		t.Fatal("Expected a run handle, got uuid.Nil")
	}

	w.manager.Tick(0.25)
	halfway := w.element(t, "arm_l")
	if !halfway.Rotation.NearlyEqual(utils.Vec3{0, 0, -15}, poseEps) {
		t.Errorf("Expected arm_l rotation (0,0,-15) halfway, got %v", halfway.Rotation)
	}
	if !w.manager.IsRunning(handle) {
		t.Error("Expected run to be active halfway through")
	}

	w.manager.Tick(0.25)

	composer, ok := w.manager.Composer(target)
	if !ok {
		t.Fatal("Expected a composer for Entity(42)")
	}
	instance, ok := composer.Instance(walkID)
	if !ok {
		t.Fatal("Expected walk instance in composer")
	}
	if instance.Status() != animation.StatusFinished {
		t.Errorf("Expected status Finished, got %v", instance.Status())
	}
	if !near(instance.Weight(), 1) {
		t.Errorf("Expected weight 1, got %f", instance.Weight())
	}
	if w.manager.IsRunning(handle) {
		t.Error("Expected run to be released after its last request finished")
	}

	tests := []struct {
		element  string
		rotation utils.Vec3
		offset   utils.Vec3
	}{
		{"arm_l", utils.Vec3{0, 0, -30}, utils.Vec3{-3, 5, 0}},
		{"arm_r", utils.Vec3{0, 0, 30}, utils.Vec3{3, 5, 0}},
		{"leg_l", utils.Vec3{0, 0, 20}, utils.Vec3{-1.5, 0, 0}},
		{"leg_r", utils.Vec3{0, 0, -20}, utils.Vec3{1.5, 0, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.element, func(t *testing.T) {
			got := w.element(t, tt.element)
			if !got.Rotation.NearlyEqual(tt.rotation, poseEps) {
				t.Errorf("Expected rotation %v, got %v", tt.rotation, got.Rotation)
			}
			if !got.Translation.NearlyEqual(tt.offset, poseEps) {
				t.Errorf("Expected translation %v, got %v", tt.offset, got.Translation)
			}
		})
	}

	// 动画保持在最终姿势
	w.manager.Tick(1.0)
	if got := w.element(t, "arm_l"); !got.Rotation.NearlyEqual(utils.Vec3{0, 0, -30}, poseEps) {
		t.Errorf("Expected finished pose to hold, got %v", got.Rotation)
	}
}

func TestAnimationManager_RunRejectsEmptySequence(t *testing.T) {
	w := newTestWorld(t, 42)
	events := recordEvents(w.manager)

	handle, err := w.manager.Run(w.target())
	if !errors.Is(err, ErrEmptySequence) {
		t.Errorf("Expected ErrEmptySequence, got %v", err)
	}
	if handle != uuid.Nil {
		t.Errorf("Expected uuid.Nil, got %s", handle)
	}
	if w.manager.ActiveRuns() != 0 || w.manager.ActiveComposers() != 0 {
		t.Errorf("Expected no state change, got %d runs and %d composers",
			w.manager.ActiveRuns(), w.manager.ActiveComposers())
	}
	if len(*events) != 0 {
		t.Errorf("Expected no events, got %v", *events)
	}
}

func TestAnimationManager_AdditiveAndAverageOrderIndependent(t *testing.T) {
	breathing := animation.NewRequest(breathingID, animation.Set(10))
	idle := animation.NewRequest(idleID, animation.Set(0))

	orders := []struct {
		name     string
		requests []animation.Request
	}{
		{"先呼吸后站立", []animation.Request{breathing, idle}},
		{"先站立后呼吸", []animation.Request{idle, breathing}},
	}

	var results []animation.Transform
	for _, order := range orders {
		t.Run(order.name, func(t *testing.T) {
			w := newTestWorld(t, 7)
			for _, r := range order.requests {
				if _, err := w.manager.Run(w.target(), r); err != nil {
					t.Fatalf("Run(%s) failed: %v", r, err)
				}
			}
			w.manager.Tick(0.05)

			torso := w.element(t, "torso")
			if !torso.Translation.NearlyEqual(utils.Vec3{0, 10.5, 0}, poseEps) {
				t.Errorf("Expected torso translation (0,10.5,0), got %v", torso.Translation)
			}
			if !torso.Rotation.NearlyEqual(utils.Vec3{0, 0, 4}, poseEps) {
				t.Errorf("Expected torso rotation (0,0,4), got %v", torso.Rotation)
			}
			results = append(results, torso)
		})
	}

	if len(results) == 2 && !results[0].NearlyEqual(results[1], poseEps) {
		t.Errorf("Expected identical torso transforms, got %v and %v", results[0], results[1])
	}
}

func TestAnimationManager_SequenceOrdering(t *testing.T) {
	w := newTestWorld(t, 42)
	events := recordEvents(w.manager)

	var advanced []animation.AnimationId
	w.manager.Events().Subscribe(func(e Event) {
		if e.Type == EventRunStarted || e.Type == EventRunAdvanced {
			advanced = append(advanced, e.Request.Animation)
		}
	})

	handle, err := w.manager.Run(w.target(),
		animation.NewRequest(walkID, animation.Set(0)),
		animation.NewRequest(waveID, animation.EaseIn(100*time.Millisecond, 4, animation.ModifierLinear)),
		animation.NewRequest(idleID, animation.Set(0)),
	)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if current, _ := w.manager.CurrentRequest(handle); current.Animation != walkID {
		t.Errorf("Expected first request to be walk, got %s", current.Animation)
	}

	w.manager.Tick(0.05) // walk Set 完成 -> wave
	if current, _ := w.manager.CurrentRequest(handle); current.Animation != waveID {
		t.Errorf("Expected wave after first tick, got %s", current.Animation)
	}
	w.manager.Tick(0.2) // wave 完成 -> idle
	w.manager.Tick(0.05) // idle 完成

	if w.manager.IsRunning(handle) {
		t.Error("Expected run to finish after all requests")
	}

	wantIDs := []animation.AnimationId{walkID, waveID, idleID}
	if len(advanced) != len(wantIDs) {
		t.Fatalf("Expected %d started requests, got %d (%v)", len(wantIDs), len(advanced), advanced)
	}
	for i := range wantIDs {
		if advanced[i] != wantIDs[i] {
			t.Errorf("Request %d: expected %s, got %s", i, wantIDs[i], advanced[i])
		}
	}

	wantEvents := []EventType{EventRunStarted, EventRunAdvanced, EventRunAdvanced, EventRunFinished}
	if len(*events) != len(wantEvents) {
		t.Fatalf("Expected events %v, got %v", wantEvents, *events)
	}
	for i, e := range wantEvents {
		if (*events)[i] != e {
			t.Errorf("Event %d: expected %v, got %v", i, e, (*events)[i])
		}
	}
}

func TestAnimationManager_UnresolvedRequests(t *testing.T) {
	w := newTestWorld(t, 42)

	t.Run("部分请求无法解析", func(t *testing.T) {
		handle, err := w.manager.Run(w.target(),
			animation.NewRequest(missingID, animation.Set(0)),
			animation.NewRequest(idleID, animation.Set(0)),
		)
		if err != nil {
			t.Fatalf("Expected run to proceed, got %v", err)
		}
		current, ok := w.manager.CurrentRequest(handle)
		if !ok || current.Animation != idleID {
			t.Errorf("Expected idle to run, got %v", current)
		}
	})

	t.Run("全部请求无法解析", func(t *testing.T) {
		runs := w.manager.ActiveRuns()
		_, err := w.manager.Run(w.target(), animation.NewRequest(missingID, animation.Set(0)))
		if !errors.Is(err, ErrNoPlayableRequests) {
			t.Errorf("Expected ErrNoPlayableRequests, got %v", err)
		}
		if w.manager.ActiveRuns() != runs {
			t.Errorf("Expected %d runs, got %d", runs, w.manager.ActiveRuns())
		}
	})

	t.Run("未注册的动画", func(t *testing.T) {
		unknown := animation.NewAnimationId(posture, "unknown")
		_, err := w.manager.Run(w.target(), animation.NewRequest(unknown, animation.Set(0)))
		if !errors.Is(err, ErrNoPlayableRequests) {
			t.Errorf("Expected ErrNoPlayableRequests, got %v", err)
		}
	})
}

func TestAnimationManager_DuplicateRunID(t *testing.T) {
	w := newTestWorld(t, 42)
	id := uuid.New()
	opts := RunOptions{ID: id}

	if _, err := w.manager.RunWithOptions(opts, w.target(), animation.NewRequest(walkID, animation.Play(time.Second, 0, 7, animation.ModifierLinear))); err != nil {
		t.Fatalf("First run failed: %v", err)
	}
	_, err := w.manager.RunWithOptions(opts, w.target(), animation.NewRequest(idleID, animation.Set(0)))
	if !errors.Is(err, ErrDuplicateRun) {
		t.Errorf("Expected ErrDuplicateRun, got %v", err)
	}
}

func TestAnimationManager_StopHoldsPose(t *testing.T) {
	w := newTestWorld(t, 42)
	events := recordEvents(w.manager)

	handle, err := w.manager.Run(w.target(),
		animation.NewRequest(waveID, animation.Play(time.Second, 0, 4, animation.ModifierLinear)),
		animation.NewRequest(idleID, animation.Set(0)),
	)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	w.manager.Tick(0.5) // frame 2 -> arm_r rz 75
	held := w.element(t, "arm_r").Rotation

	if !w.manager.Stop(handle) {
		t.Fatal("Expected Stop to find the run")
	}
	if w.manager.Stop(handle) {
		t.Error("Expected second Stop to return false")
	}

	w.manager.Tick(0.5)
	if got := w.element(t, "arm_r").Rotation; !got.NearlyEqual(held, poseEps) {
		t.Errorf("Expected stopped pose %v to hold, got %v", held, got)
	}
	if !near(held[2], 75) {
		t.Errorf("Expected arm_r rotation_z 75 at frame 2, got %f", held[2])
	}

	// 剩余请求被丢弃
	composer, _ := w.manager.Composer(w.target())
	if _, ok := composer.Instance(idleID); ok {
		t.Error("Expected remaining requests to be discarded")
	}

	last := (*events)[len(*events)-1]
	if last != EventRunStopped {
		t.Errorf("Expected last event RunStopped, got %v", last)
	}
}

// TestAnimationManager_ReturnsToRest Clear 或 EaseOut 结束后元素回到静止姿势
func TestAnimationManager_ReturnsToRest(t *testing.T) {
	tests := []struct {
		name     string
		release  animation.RunParameters
		ticks    int
		midpoint float64 // 第一次 tick 后 arm_l 的 rotation_z
	}{
		{"clear", animation.Clear(), 2, 0},
		{"ease out", animation.EaseOut(400*time.Millisecond, animation.ModifierLinear), 10, -15},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := newTestWorld(t, 42)
			if _, err := w.manager.RunAnimation(w.target(), walkID, animation.Set(4)); err != nil {
				t.Fatalf("Run failed: %v", err)
			}
			w.manager.Tick(0.2)
			if got := w.element(t, "arm_l").Rotation; !near(got[2], -30) {
				t.Fatalf("Expected arm_l rotation_z -30, got %v", got)
			}

			handle, err := w.manager.RunAnimation(w.target(), walkID, tt.release)
			if err != nil {
				t.Fatalf("Run failed: %v", err)
			}
			w.manager.Tick(0.2)
			if got := w.element(t, "arm_l").Rotation; !near(got[2], tt.midpoint) {
				t.Errorf("Expected arm_l rotation_z %v after first tick, got %v", tt.midpoint, got)
			}
			for i := 1; i < tt.ticks; i++ {
				w.manager.Tick(0.15)
			}

			if w.manager.IsRunning(handle) {
				t.Error("Expected run to be released")
			}
			composer, _ := w.manager.Composer(w.target())
			if composer.InstanceCount() != 0 {
				t.Errorf("Expected no instances left, got %d", composer.InstanceCount())
			}
			for _, name := range []string{"arm_l", "arm_r", "leg_l", "leg_r"} {
				rest, _ := w.skeleton.RestTransform(name)
				if got := w.element(t, name); !got.NearlyEqual(rest, poseEps) {
					t.Errorf("Expected %s back at rest %v, got %v", name, rest, got)
				}
			}
		})
	}
}

// TestAnimationManager_WeightedCategory 带权重的类别单独运行时完整生效
func TestAnimationManager_WeightedCategory(t *testing.T) {
	t.Run("set", func(t *testing.T) {
		w := newTestWorld(t, 42)
		if _, err := w.manager.RunAnimation(w.target(), leanID, animation.Set(0)); err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		w.manager.Tick(0.1)
		if got := w.element(t, "torso").Rotation; !near(got[2], 4) {
			t.Errorf("Expected torso rotation_z 4, got %v", got)
		}
		if got := w.element(t, "head").Rotation; !near(got[2], -2) {
			t.Errorf("Expected head rotation_z -2, got %v", got)
		}
	})

	t.Run("ease in", func(t *testing.T) {
		w := newTestWorld(t, 42)
		if _, err := w.manager.RunAnimation(w.target(), leanID,
			animation.EaseIn(400*time.Millisecond, 0, animation.ModifierLinear)); err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		w.manager.Tick(0.2)
		if got := w.element(t, "torso").Rotation; !near(got[2], 2) {
			t.Errorf("Expected torso rotation_z 2 halfway, got %v", got)
		}
		w.manager.Tick(0.2)
		if got := w.element(t, "torso").Rotation; !near(got[2], 4) {
			t.Errorf("Expected torso rotation_z 4, got %v", got)
		}
	})

	t.Run("competing with unweighted", func(t *testing.T) {
		w := newTestWorld(t, 42)
		if _, err := w.manager.RunAnimation(w.target(), leanID, animation.Set(0)); err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		if _, err := w.manager.RunAnimation(w.target(), idleID, animation.Set(0)); err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		w.manager.Tick(0.1)
		frame, ok := w.manager.Compose(w.target(), 0)
		if !ok {
			t.Fatal("Expected a composed frame")
		}
		torso := frame.Elements["torso"]
		if !near(torso.Weight, 1) || !near(torso.Transform.Rotation[2], 4) {
			t.Errorf("Expected torso weight 1 rotation 4, got %v / %v", torso.Weight, torso.Transform.Rotation[2])
		}
	})
}

func TestAnimationManager_SupersedeReleasesRun(t *testing.T) {
	w := newTestWorld(t, 42)

	first, err := w.manager.RunAnimation(w.target(), walkID,
		animation.Play(time.Second, 0, 7, animation.ModifierLinear))
	if err != nil {
		t.Fatalf("First run failed: %v", err)
	}
	second, err := w.manager.RunAnimation(w.target(), walkID,
		animation.EaseOut(200*time.Millisecond, animation.ModifierLinear))
	if err != nil {
		t.Fatalf("Second run failed: %v", err)
	}

	if w.manager.IsRunning(first) {
		t.Error("Expected superseded run to be released")
	}
	if !w.manager.IsRunning(second) {
		t.Error("Expected new run to be active")
	}
	if w.manager.ActiveRuns() != 1 {
		t.Errorf("Expected 1 active run, got %d", w.manager.ActiveRuns())
	}
}

func TestAnimationManager_TargetInvalidated(t *testing.T) {
	w := newTestWorld(t, 42)
	events := recordEvents(w.manager)

	if _, err := w.manager.RunAnimation(w.target(), walkID,
		animation.Play(time.Second, 0, 7, animation.ModifierLinear)); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if stats := w.manager.Registry().Stats(); stats.Constructed != 1 {
		t.Errorf("Expected 1 constructed clip, got %d", stats.Constructed)
	}

	w.em.DestroyEntity(w.entity)
	w.manager.Tick(0.1)

	if w.manager.ActiveRuns() != 0 {
		t.Errorf("Expected runs to be stopped, got %d", w.manager.ActiveRuns())
	}
	if w.manager.ActiveComposers() != 0 {
		t.Errorf("Expected composer to be removed, got %d", w.manager.ActiveComposers())
	}
	if stats := w.manager.Registry().Stats(); stats.Constructed != 0 {
		t.Errorf("Expected cached clips to be dropped, got %d", stats.Constructed)
	}
	found := false
	for _, e := range *events {
		if e == EventTargetInvalidated {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected TargetInvalidated event, got %v", *events)
	}
}

func TestAnimationManager_TickWithoutRuns(t *testing.T) {
	w := newTestWorld(t, 42)
	w.manager.Tick(0.016)
	if w.skeleton.Dirty {
		t.Error("Expected skeleton untouched without runs")
	}
}

// syncPair 通过 Loopback 互联的两个世界
func syncPair(t *testing.T) (*testWorld, *testWorld) {
	t.Helper()
	local, remote := newTestWorld(t, 42), newTestWorld(t, 42)
	a, b := netsync.NewLoopbackPair()
	local.manager.SetSynchronizer(a)
	remote.manager.SetSynchronizer(b)
	return local, remote
}

func TestAnimationManager_Synchronization(t *testing.T) {
	play := animation.Play(time.Second, 0, 7, animation.ModifierLinear)

	t.Run("运行同步到远端", func(t *testing.T) {
		local, remote := syncPair(t)
		handle, err := local.manager.RunAnimation(local.target(), walkID, play)
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		remote.manager.Tick(0.1)
		if !remote.manager.IsRunning(handle) {
			t.Fatal("Expected remote to run with the same handle")
		}

		// 远端运行不再回传
		local.manager.Tick(0.1)
		if local.manager.ActiveRuns() != 1 {
			t.Errorf("Expected local to keep exactly 1 run, got %d", local.manager.ActiveRuns())
		}

		local.manager.Stop(handle)
		remote.manager.Tick(0.1)
		if remote.manager.IsRunning(handle) {
			t.Error("Expected remote run to stop")
		}
	})

	t.Run("手持物品不同步", func(t *testing.T) {
		w := newTestWorld(t, 42)
		sync := &recordingSync{}
		w.manager.SetSynchronizer(sync)

		item := w.em.CreateEntity()
		w.em.AddComponent(item, components.NewSkeletonComponent(loadHumanoid(t)))
		w.em.AddComponent(item, &components.HeldItemComponent{Owner: w.entity})

		handle, err := w.manager.RunAnimation(animation.HeldItemTarget(), idleID, animation.Set(0))
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		w.manager.Tick(0.1)
		if w.manager.IsRunning(handle) {
			t.Error("Expected held item run to finish")
		}
		if len(sync.runs) != 0 || len(sync.stops) != 0 {
			t.Errorf("Expected no packets, got %d runs and %d stops", len(sync.runs), len(sync.stops))
		}
	})

	t.Run("显式关闭同步", func(t *testing.T) {
		w := newTestWorld(t, 42)
		sync := &recordingSync{}
		w.manager.SetSynchronizer(sync)

		opts := RunOptions{ID: uuid.New(), Synchronize: false}
		if _, err := w.manager.RunWithOptions(opts, w.target(), animation.NewRequest(walkID, play)); err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		w.manager.Stop(opts.ID)
		if len(sync.runs) != 0 || len(sync.stops) != 0 {
			t.Errorf("Expected no packets, got %d runs and %d stops", len(sync.runs), len(sync.stops))
		}
	})

	t.Run("完成后发送停止包", func(t *testing.T) {
		w := newTestWorld(t, 42)
		sync := &recordingSync{}
		w.manager.SetSynchronizer(sync)

		handle, err := w.manager.RunAnimation(w.target(), idleID, animation.Set(0))
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		if len(sync.runs) != 1 || sync.runs[0].RunID != handle {
			t.Fatalf("Expected one run packet for %s, got %v", handle, sync.runs)
		}
		if sync.runs[0].Target != w.target() {
			t.Errorf("Expected target %s, got %s", w.target(), sync.runs[0].Target)
		}

		w.manager.Tick(0.1)
		if len(sync.stops) != 1 || sync.stops[0].RunID != handle {
			t.Errorf("Expected one stop packet for %s, got %v", handle, sync.stops)
		}
	})

	t.Run("远端运行不回传", func(t *testing.T) {
		w := newTestWorld(t, 42)
		sync := &recordingSync{}
		w.manager.SetSynchronizer(sync)

		packet := netsync.RunPacket{
			RunID:    uuid.New(),
			Target:   w.target(),
			Requests: animation.RequestsFor(idleID, animation.Set(0)),
		}
		w.manager.OnRemoteRun(packet)
		if !w.manager.IsRunning(packet.RunID) {
			t.Fatal("Expected remote run to start")
		}
		w.manager.Tick(0.1)
		if len(sync.runs) != 0 || len(sync.stops) != 0 {
			t.Errorf("Expected no packets, got %d runs and %d stops", len(sync.runs), len(sync.stops))
		}
	})
}

// recordingSync 记录发出的同步包
type recordingSync struct {
	runs  []netsync.RunPacket
	stops []netsync.StopPacket
}

func (s *recordingSync) SyncRun(packet netsync.RunPacket) error {
	s.runs = append(s.runs, packet)
	return nil
}

func (s *recordingSync) SyncStop(packet netsync.StopPacket) error {
	s.stops = append(s.stops, packet)
	return nil
}
