package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"time26/cmd"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.Cmd().ExecuteContext(ctx); err != nil {
		log.WithError(err).Error("Command failed")
		stop()
		os.Exit(1)
	}
}
