package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	cli "github.com/urfave/cli/v3"
)

func newRootCommand() *cli.Command {
	return &cli.Command{
		Name:                  "convoflow",
		Usage:                 "Author conversation flows and simulate them on chat or voice",
		EnableShellCompletion: true,
		Commands: []*cli.Command{
			NewServeCommand(),
			NewSimulateCommand(),
			NewValidateCommand(),
		},
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := newRootCommand().Run(ctx, os.Args)
	if err == nil {
		return
	}

	if !errors.Is(err, ErrCompletedWithErrors) {
		fmt.Fprintln(os.Stderr, err)
	}

	stop()
	os.Exit(1)
}
