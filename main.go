package main

import (
	"flag"
	"log"

	"github.com/hajimehoshi/ebiten/v2"

	"github.com/RaccoonTwigs/vsmod-AnimationManagerLib/pkg/app"
	"github.com/RaccoonTwigs/vsmod-AnimationManagerLib/pkg/embedded"
)

var (
	verbose     = flag.Bool("verbose", false, "详细日志")
	libraryPath = flag.String("library", "data/library.yaml", "动画库文件或目录")
	shapePath   = flag.String("shape", "data/shapes/humanoid.yaml", "角色形状文件")
	actors      = flag.Int("actors", 3, "角色数量")
	relay       = flag.String("relay", "", "同步中继地址 (ws://host:port/sync)")
	watchData   = flag.Bool("watch", false, "从磁盘读取 data/ 并在修改时热重载")
	dataRoot    = flag.String("root", ".", "磁盘模式下 data/ 所在目录")
)

func main() {
	flag.Parse()

	if *verbose {
		log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	}

	if *watchData {
		if err := embedded.InitFromDisk(*dataRoot); err != nil {
			log.Fatalf("初始化数据目录失败: %v", err)
		}
	} else {
		embedded.Init(dataFS)
	}

	cfg := app.DefaultConfig()
	cfg.Verbose = *verbose
	cfg.LibraryPath = *libraryPath
	cfg.ShapePath = *shapePath
	cfg.Actors = *actors
	cfg.Relay = *relay
	cfg.Watch = *watchData
	cfg.DataRoot = *dataRoot

	viewer, err := app.NewApp(cfg)
	if err != nil {
		log.Fatalf("查看器初始化失败: %v", err)
	}
	defer func() {
		if err := viewer.Close(); err != nil {
			log.Printf("Warning: failed to save settings: %v", err)
		}
	}()

	ebiten.SetWindowSize(app.ScreenWidth, app.ScreenHeight)
	ebiten.SetWindowTitle("Animation Viewer")
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetFullscreen(viewer.Fullscreen())
	ebiten.SetTPS(viewer.TPS())

	if err := ebiten.RunGame(viewer); err != nil {
		log.Fatal(err)
	}
}
