// Command actorsd runs a demo actor system: a worker pool behind a
// round-robin router, a ticker driven by the scheduler, and optional
// journaling and config hot-reload.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	actors "github.com/ajsinha/abhikarta-llm-sub002"
	"github.com/ajsinha/abhikarta-llm-sub002/journal"
)

type tick struct{}

type work struct {
	ID int
}

type worker struct {
	actors.BaseActor
	handled int
}

func (w *worker) Receive(ctx *actors.Context) error {
	switch msg := ctx.Message().(type) {
	case work:
		w.handled++
		ctx.Logger().Info("handled work", "id", msg.ID, "total", w.handled)
	default:
		ctx.Logger().Warn("unexpected message", "type", fmt.Sprintf("%T", msg))
	}
	return nil
}

type producer struct {
	actors.BaseActor
	pool *actors.ActorRef
	next int
}

func (p *producer) PreStart(ctx *actors.Context) error {
	ctx.Timers().StartTimer("tick", tick{}, time.Second)
	return nil
}

func (p *producer) Receive(ctx *actors.Context) error {
	if _, ok := ctx.Message().(tick); ok {
		p.next++
		p.pool.Tell(work{ID: p.next}, ctx.Self())
	}
	return nil
}

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	journalPath := flag.String("journal", "", "path to SQLite journal (overrides config)")
	watch := flag.Bool("watch", false, "hot-reload the config file on change")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfg := actors.DefaultConfig()
	if *configPath != "" {
		loaded, err := actors.LoadConfig(*configPath)
		if err != nil {
			logger.Error("load config", "error", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	opts := []actors.Option{actors.WithConfig(cfg), actors.WithLogger(logger)}

	path := cfg.JournalPath
	if *journalPath != "" {
		path = *journalPath
	}
	if path != "" {
		store, err := journal.Open(path)
		if err != nil {
			logger.Error("open journal", "error", err)
			os.Exit(1)
		}
		opts = append(opts, actors.WithJournal(store))
	}

	system, err := actors.NewActorSystem(cfg.Name, opts...)
	if err != nil {
		logger.Error("start system", "error", err)
		os.Exit(1)
	}

	if *watch && *configPath != "" {
		watcher, err := actors.NewConfigWatcher(*configPath, logger)
		if err != nil {
			logger.Error("watch config", "error", err)
			os.Exit(1)
		}
		watcher.OnChange(func(old, new actors.Config) {
			logger.Info("config changed", "name", new.Name)
		})
		if err := watcher.Start(); err != nil {
			logger.Error("start config watcher", "error", err)
			os.Exit(1)
		}
		defer watcher.Stop()
	}

	system.SubscribeDeadLetters(func(dl actors.DeadLetter) {
		logger.Warn("dead letter observed", "recipient", dl.Recipient, "reason", dl.Reason)
	})

	workerProps := actors.NewProps(func() actors.Actor { return &worker{} })
	pool, err := system.ActorOf(actors.RoundRobinPool(workerProps, 4), "workers")
	if err != nil {
		logger.Error("spawn pool", "error", err)
		os.Exit(1)
	}
	if _, err := system.ActorOf(actors.NewProps(func() actors.Actor {
		return &producer{pool: pool}
	}), "producer"); err != nil {
		logger.Error("spawn producer", "error", err)
		os.Exit(1)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	stats := system.Stats()
	logger.Info("shutting down", "actors", stats.Actors, "dead_letters", stats.DeadLetters)
	system.Terminate()
}
