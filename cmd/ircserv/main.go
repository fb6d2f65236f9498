// Command ircserv runs the IRC server described in spec.md.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"ircserv/internal/ircd"
)

func main() {
	log.SetFlags(0)

	a, err := getArgs()
	if err != nil {
		log.Fatal(err)
	}

	// Go gets a context cancelled by SIGINT/SIGTERM instead of the spec's raw
	// termination flag checked each poll() iteration; the event loop selects
	// on ctx.Done() the same way it selects on every other channel.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := ircd.NewServer(a.Password)
	if err := server.Run(ctx, a.Port); err != nil {
		log.Fatal(err)
	}
}
