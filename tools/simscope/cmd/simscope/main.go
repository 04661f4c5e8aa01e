package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gdamore/tcell/v2"

	"github.com/StarshatterWars/SSW-UE55-sub001/internal/scope"
	"github.com/StarshatterWars/SSW-UE55-sub001/tools/simscope"
)

func main() {
	addr := flag.String("addr", "localhost:43180", "sim host admin address or HUD websocket URL")
	pass := flag.String("pass", os.Getenv("SIM_HUD_PASS"), "HUD pass issued by /hud/pass")
	center := flag.String("center", "", "ship to keep in the middle of the plot")
	rng := flag.Float64("range", scope.DefaultRange, "initial plot half-width in meters")
	iff := flag.Int("iff", 1, "side drawn as friendly when no ship is tracked")
	flag.Parse()

	if err := run(*addr, *pass, *center, *rng, *iff); err != nil {
		fmt.Fprintln(os.Stderr, "simscope:", err)
		os.Exit(1)
	}
}

func run(addr, pass, center string, rng float64, iff int) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	url, err := simscope.HUDURL(addr)
	if err != nil {
		return err
	}
	feed, err := simscope.Dial(ctx, url, pass)
	if err != nil {
		return err
	}
	defer feed.Close()

	//1.- Take over the terminal only once the feed is live.
	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("open terminal: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("init terminal: %w", err)
	}
	defer screen.Fini()
	view := scope.New(screen, scope.WithCenter(center), scope.WithRange(rng), scope.WithIFF(iff))
	view.Redraw()

	events := make(chan tcell.Event, 16)
	go func() {
		defer close(events)
		for {
			ev := screen.PollEvent()
			if ev == nil {
				return
			}
			events <- ev
		}
	}()

	//2.- Frames and key presses share one loop so drawing never races input.
	for {
		select {
		case <-ctx.Done():
			return nil
		case snap, ok := <-feed.Snapshots():
			if !ok {
				return feed.Err()
			}
			view.Draw(snap)
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			switch ev := ev.(type) {
			case *tcell.EventKey:
				if view.HandleKey(ev) {
					return nil
				}
				view.Redraw()
			case *tcell.EventResize:
				screen.Sync()
				view.Redraw()
			}
		}
	}
}
