// posesheet 无窗口播放一个动画序列，把采样姿势输出为 WebP 姿势表
//
// 用法：
//
//	go run ./cmd/posesheet -sequence walk_start -samples 12 -out walk.webp
package main

import (
	"flag"
	"fmt"
	"image"
	"log"
	"os"
	"path/filepath"

	"github.com/HugoSmits86/nativewebp"

	"github.com/RaccoonTwigs/vsmod-AnimationManagerLib/pkg/animation"
	"github.com/RaccoonTwigs/vsmod-AnimationManagerLib/pkg/components"
	"github.com/RaccoonTwigs/vsmod-AnimationManagerLib/pkg/config"
	"github.com/RaccoonTwigs/vsmod-AnimationManagerLib/pkg/ecs"
	"github.com/RaccoonTwigs/vsmod-AnimationManagerLib/pkg/embedded"
	"github.com/RaccoonTwigs/vsmod-AnimationManagerLib/pkg/skeleton"
	"github.com/RaccoonTwigs/vsmod-AnimationManagerLib/pkg/systems"
)

var (
	rootDir     = flag.String("root", ".", "data/ 所在目录")
	libraryPath = flag.String("library", "data/library.yaml", "动画库文件或目录")
	shapePath   = flag.String("shape", "data/shapes/humanoid.yaml", "形状文件")
	sequence    = flag.String("sequence", "walk_start", "要播放的序列")
	samples     = flag.Int("samples", 12, "采样数量")
	maxSeconds  = flag.Float64("max", 10, "最长模拟时间(秒)，用于循环动画")
	columns     = flag.Int("cols", 6, "每行单元格数")
	cellSize    = flag.Int("cell", 160, "单元格边长(像素)")
	supersample = flag.Int("ss", 2, "超采样倍数")
	yaw         = flag.Float64("yaw", 20, "相机偏航(度)")
	pitch       = flag.Float64("pitch", 10, "相机俯仰(度)")
	outPath     = flag.String("out", "posesheet.webp", "输出文件")
	verbose     = flag.Bool("verbose", false, "详细日志")
)

func main() {
	flag.Parse()

	if *verbose {
		log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
		systems.Verbose = true
	}

	if err := embedded.InitFromDisk(*rootDir); err != nil {
		log.Fatalf("Failed to open data directory: %v", err)
	}

	poses, err := simulate()
	if err != nil {
		log.Fatalf("Simulation failed: %v", err)
	}

	img := renderSheet(sampleEvenly(poses, *samples), sheetOptions{
		Columns:     *columns,
		Cell:        *cellSize,
		Supersample: *supersample,
		Yaw:         *yaw,
		Pitch:       *pitch,
		Labels:      true,
	})

	if err := writeWebP(*outPath, img); err != nil {
		log.Fatalf("Failed to write %s: %v", *outPath, err)
	}
	fmt.Printf("Wrote %d poses (%d ticks) to %s\n", min(len(poses), *samples), len(poses), *outPath)
}

// simulate 在单实体世界里执行序列，记录每个 tick 的姿势
func simulate() ([]posePoint, error) {
	fsys, err := embedded.FS()
	if err != nil {
		return nil, err
	}
	lib, err := config.LoadLibrary(fsys, *libraryPath)
	if err != nil {
		return nil, err
	}
	shapes := config.NewShapeCache(fsys)
	s, err := shapes.Load(*shapePath)
	if err != nil {
		return nil, err
	}

	em := ecs.NewEntityManager()
	id := em.CreateEntity()
	skel := components.NewSkeletonComponent(s)
	em.AddComponent(id, skel)

	resolver := systems.NewWorldResolver(em)
	registry := systems.NewAnimationRegistry(resolver)
	if _, err := lib.RegisterAll(registry, shapes); err != nil {
		return nil, err
	}
	manager := systems.NewAnimationManager(registry, resolver)
	manager.SetWeightCap(lib.Global.Blending.WeightCap)
	defer manager.Close()

	requests, err := lib.Sequence(*sequence)
	if err != nil {
		return nil, err
	}
	handle, err := manager.RunWithOptions(systems.RunOptions{}, animation.EntityTarget(int64(id)), requests...)
	if err != nil {
		return nil, err
	}

	dt := 1.0 / float64(lib.Global.Playback.TPS)
	maxTicks := int(*maxSeconds / dt)
	poses := []posePoint{{Tick: 0, Joints: skeleton.Solve(s, skel.LocalTransforms())}}
	for tick := 1; tick <= maxTicks && manager.IsRunning(handle); tick++ {
		manager.Tick(dt)
		poses = append(poses, posePoint{Tick: tick, Joints: skeleton.Solve(s, skel.LocalTransforms())})
	}
	log.Printf("[posesheet] %s ran for %d ticks", *sequence, len(poses)-1)
	return poses, nil
}

// sampleEvenly 从 poses 中均匀取 n 个（包含首尾）
func sampleEvenly(poses []posePoint, n int) []posePoint {
	if n <= 0 || len(poses) <= n {
		return poses
	}
	if n == 1 {
		return poses[len(poses)-1:]
	}
	out := make([]posePoint, n)
	for i := 0; i < n; i++ {
		out[i] = poses[i*(len(poses)-1)/(n-1)]
	}
	return out
}

func tickLabel(tick int) string {
	return fmt.Sprintf("t%d", tick)
}

func writeWebP(path string, img *image.NRGBA) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := nativewebp.Encode(f, img, nil); err != nil {
		return fmt.Errorf("WebP encode: %w", err)
	}
	return nil
}
