package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/planelock/planelock/internal/adapter/manip"
	"github.com/planelock/planelock/internal/core/config"
	"github.com/planelock/planelock/internal/core/events"
	"github.com/planelock/planelock/internal/core/events/bus"
	"github.com/planelock/planelock/internal/core/observability/log"
	"github.com/planelock/planelock/internal/core/scene"
	"github.com/planelock/planelock/internal/core/sim"
	"github.com/planelock/planelock/internal/core/systems"
	"github.com/planelock/planelock/internal/core/systems/boundary"
	"github.com/planelock/planelock/internal/core/systems/constraint"
)

func main() {
	var (
		configPath = flag.String("config", "", "scene config file (required)")
		listenAddr = flag.String("listen", "127.0.0.1:8090", "manipulation signal listen address, empty to disable")
		frameRate  = flag.Int("rate", 60, "frames per second")
		logLevel   = flag.String("log-level", "info", "debug | info | warn | error")
	)
	flag.Parse()

	if *configPath == "" {
		fmt.Fprintln(os.Stderr, "simd: -config is required")
		os.Exit(2)
	}

	logger := log.New(log.ParseLevel(*logLevel))

	if err := run(*configPath, *listenAddr, *frameRate, logger); err != nil {
		logger.Fatal("simd failed", log.Err(err))
	}
}

func run(configPath, listenAddr string, frameRate int, logger *log.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return err
	}
	logger.Info("scene config loaded",
		log.String("path", configPath),
		log.Uint64("digest", cfg.Digest),
		log.Int("objects", len(cfg.Objects)))

	graph := scene.NewGraph()
	eventBus := bus.New()
	world := sim.NewWorld(graph, eventBus, logger)

	surfaceBody := scene.NewPoseBody(cfg.Surface.Origin())
	surfaceBody.SetOrientation(cfg.Surface.Orientation())
	surfaceObj := scene.NewObject(cfg.Surface.Name, surfaceBody)
	if err = graph.Add(surfaceObj); err != nil {
		return err
	}

	var manipSrv *manip.Server
	if listenAddr != "" {
		manipSrv = manip.NewServer(listenAddr, eventBus, logger)
	}

	clamp := constraint.New(
		constraint.WithSurfaceName(cfg.Surface.Name),
		constraint.WithSignalSource(manipSrv != nil),
	)
	monitor := boundary.New(boundary.WithSurfaceName(cfg.Surface.Name))

	manager := systems.NewManager()
	for _, s := range []systems.System{&stepper{}, clamp, monitor} {
		if err = manager.Register(s); err != nil {
			return err
		}
	}
	if err = manager.InitializeAll(ctx, world); err != nil {
		return err
	}

	for i := range cfg.Objects {
		oc := &cfg.Objects[i]

		var body *scene.RigidBody
		if oc.Simulated {
			body = scene.NewRigidBody(oc.Origin())
		} else {
			body = scene.NewPoseBody(oc.Origin())
		}
		obj := scene.NewObject(oc.Name, body)
		if err = graph.Add(obj); err != nil {
			return err
		}

		if err = clamp.Attach(obj, oc.ConstraintSettings(), surfaceObj); err != nil {
			return err
		}
		if bs := oc.BoundarySettings(); bs != nil {
			if err = monitor.Watch(obj, *bs, surfaceObj); err != nil {
				return err
			}
		}
		if oc.Grabbable && manipSrv != nil {
			manipSrv.Register(oc.Name, obj.ID())
		}
	}

	// Stand-in for the external inventory/spawner collaborator.
	removalSub, err := eventBus.Subscribe(events.TypeObjectRemoved, func(e bus.Event) error {
		if r, ok := e.Data().(events.Removal); ok {
			logger.Info("removal notification",
				log.String("object", r.Name),
				log.Float64("x", r.LastPosition.X()),
				log.Float64("z", r.LastPosition.Z()))
		}
		return nil
	})
	if err != nil {
		return err
	}
	defer removalSub.Cancel()

	if manipSrv != nil {
		if err = manipSrv.Start(); err != nil {
			return err
		}
	}

	loop := sim.NewLoop(world, manager)
	frameDelta := time.Second / time.Duration(frameRate)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return loop.Run(gctx, frameDelta)
	})

	err = g.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if manipSrv != nil {
		if serr := manipSrv.Shutdown(shutdownCtx); serr != nil {
			logger.Warn("manip shutdown failed", log.Err(serr))
		}
	}
	if serr := manager.ShutdownAll(shutdownCtx); serr != nil {
		logger.Warn("systems shutdown failed", log.Err(serr))
	}

	if errors.Is(err, context.Canceled) {
		logger.Info("shutdown complete")
		return nil
	}
	return err
}
