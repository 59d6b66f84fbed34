package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/dukex/convoflow/pkg/cmd"
	"github.com/dukex/convoflow/pkg/flowfile"
	"github.com/dukex/convoflow/pkg/log"
	cli "github.com/urfave/cli/v3"
)

var ErrInvalidFlow = errors.New("flow is invalid")

func NewValidateCommand() *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Usage:     "Check a flow file against the graph rules and node schemas",
		ArgsUsage: "FILE",
		Flags:     logFlags(),
		Action: func(ctx context.Context, command *cli.Command) error {
			path := command.Args().First()
			if path == "" {
				return errMissingFlowFile
			}

			log.Setup(command.String("log-level"), command.String("log-format"))

			registry, err := cmd.NewRegistry(log.WithModule("validate"))
			if err != nil {
				return err
			}

			flow, err := flowfile.Load(path)
			if err != nil {
				return err
			}

			out := command.Root().Writer

			if err := flowfile.Validate(flow, registry); err != nil {
				fmt.Fprintf(out, "%s: invalid\n%v\n", path, err)

				return fmt.Errorf("%w: %s", ErrInvalidFlow, path)
			}

			fmt.Fprintf(out, "%s: ok (%d nodes, %d edges)\n", path, len(flow.Nodes), len(flow.Edges))

			return nil
		},
	}
}
