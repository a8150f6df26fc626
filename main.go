package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"htdeploy/cmd"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())

	// Buffer 2 to catch a quick double Ctrl+C.
	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)

	var wg sync.WaitGroup
	done := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = cmd.ExecuteContext(ctx)
		close(done)
	}()

	var first int32 // 0 = not received, 1 = received first Ctrl+C

waitLoop:
	for {
		select {
		case sig := <-sigs:
			if sig != os.Interrupt && sig != syscall.SIGTERM {
				continue
			}
			if atomic.CompareAndSwapInt32(&first, 0, 1) {
				log.Println("interrupt received, attempting graceful shutdown (press Ctrl+C again to force)")
				cancel()
				select {
				case <-done:
					break waitLoop
				case sig2 := <-sigs:
					log.Printf("second signal (%v) received, forcing exit\n", sig2)
					os.Exit(130)
				case <-time.After(5 * time.Second):
					log.Println("timeout waiting for deploy to unwind, forcing exit")
					os.Exit(1)
				}
			} else {
				os.Exit(130)
			}
		case <-done:
			break waitLoop
		}
	}

	wg.Wait()
}
