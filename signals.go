package main

import (
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// SignalBridge turns SIGINT/SIGTERM into exactly one shutdown request.
// A second signal while shutdown is in flight is logged and dropped so
// the teardown path is never re-entered.
type SignalBridge struct {
	shutdown func()
	ch       chan os.Signal
	once     sync.Once
	done     chan struct{}
}

func newSignalBridge(shutdown func()) *SignalBridge {
	return &SignalBridge{
		shutdown: shutdown,
		ch:       make(chan os.Signal, 2),
		done:     make(chan struct{}),
	}
}

// Start registers the handlers. Call Close to deregister them.
func (b *SignalBridge) Start() {
	signal.Notify(b.ch, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		for {
			select {
			case sig := <-b.ch:
				b.dispatch(sig)
			case <-b.done:
				return
			}
		}
	}()
}

func (b *SignalBridge) dispatch(sig os.Signal) {
	dispatched := false
	b.once.Do(func() {
		dispatched = true
		log.Printf("Received signal %s, shutting down", sig)
		b.shutdown()
	})

	if !dispatched {
		log.Printf("Received signal %s, shutdown already in progress", sig)
	}
}

// Close deregisters the handlers and stops the dispatch goroutine.
func (b *SignalBridge) Close() {
	signal.Stop(b.ch)
	close(b.done)
}
