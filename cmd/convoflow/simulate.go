package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/dukex/convoflow/pkg/cmd"
	"github.com/dukex/convoflow/pkg/flowfile"
	"github.com/dukex/convoflow/pkg/log"
	"github.com/dukex/convoflow/pkg/models"
	"github.com/dukex/convoflow/pkg/persistence/memory"
	"github.com/dukex/convoflow/pkg/services"
	"github.com/dukex/convoflow/pkg/simulate"
	"github.com/dukex/convoflow/pkg/studio"
	cli "github.com/urfave/cli/v3"
)

// ErrCompletedWithErrors is returned when a simulated run ends with at least one error.
var ErrCompletedWithErrors = errors.New("run completed with errors")

var errMissingFlowFile = errors.New("a flow file is required")

func NewSimulateCommand() *cli.Command {
	return &cli.Command{
		Name:      "simulate",
		Aliases:   []string{"sim"},
		Usage:     "Run a flow file through the simulator and print its log",
		ArgsUsage: "FILE",
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:  "channel",
				Usage: "Channel to simulate (chat, voice)",
				Value: string(models.ChannelChat),
			},
			&cli.StringSliceFlag{
				Name:  "input",
				Usage: "Text answers, consumed in order whenever the run waits for input",
			},
			&cli.StringSliceFlag{
				Name:  "digits",
				Usage: "Keypad answers, consumed in order whenever the run waits for DTMF",
			},
			&cli.FloatFlag{
				Name:  "api-failure-rate",
				Usage: "Probability that a simulated API call fails",
				Value: simulate.DefaultAPIFailureRate,
			},
			&cli.Uint64Flag{
				Name:  "seed",
				Usage: "Seed for simulated outcomes, 0 picks a random one",
			},
			&cli.BoolFlag{
				Name:  "latency",
				Usage: "Pause before each simulated step",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print the final run snapshot as JSON",
			},
		}, logFlags()...),
		Action: func(ctx context.Context, command *cli.Command) error {
			path := command.Args().First()
			if path == "" {
				return errMissingFlowFile
			}

			log.Setup(command.String("log-level"), command.String("log-format"))

			logger := log.WithModule("simulate")

			session, flow, err := newSimulationSession(ctx, path, cmd.EngineConfig{
				APIFailureRate: command.Float("api-failure-rate"),
				Latency:        command.Bool("latency"),
				Seed:           command.Uint64("seed"),
			}, logger)
			if err != nil {
				return err
			}

			logger.InfoContext(ctx, "Simulating flow", "flow_id", flow.ID, "flow_name", flow.Name)

			snapshot, err := drive(ctx, session, models.Channel(command.String("channel")),
				command.StringSlice("input"), command.StringSlice("digits"))
			if err != nil {
				return err
			}

			out := command.Root().Writer
			if command.Bool("json") {
				err = printJSON(out, snapshot)
			} else {
				err = printRun(out, snapshot)
			}

			if err != nil {
				return err
			}

			if snapshot.Stats.Outcome == models.OutcomeCompletedWithErrors {
				return ErrCompletedWithErrors
			}

			return nil
		},
	}
}

// newSimulationSession loads a flow file into an in-memory store and selects it in a fresh session.
func newSimulationSession(ctx context.Context, path string, config cmd.EngineConfig, logger *slog.Logger) (*studio.Session, *models.Flow, error) {
	flow, err := flowfile.Load(path)
	if err != nil {
		return nil, nil, err
	}

	registry, err := cmd.NewRegistry(logger)
	if err != nil {
		return nil, nil, err
	}

	if err := flowfile.Validate(flow, registry); err != nil {
		return nil, nil, fmt.Errorf("invalid flow %s: %w", path, err)
	}

	store := memory.NewPersistence()
	if err := store.SaveFlow(ctx, flow); err != nil {
		return nil, nil, err
	}

	session := studio.NewSession(
		services.NewFlow(store, nil, logger),
		services.NewPublishing(store, registry, nil, logger),
		registry,
		cmd.NewEngine(config, logger, nil, nil),
		logger,
	)

	if _, err := session.SelectFlow(ctx, flow.ID); err != nil {
		return nil, nil, err
	}

	return session, flow, nil
}

// drive starts a run and answers every suspension from the scripted answers.
// A voice run with no digits left is hung up; a chat run with no input left stays suspended.
func drive(ctx context.Context, session *studio.Session, channel models.Channel, inputs, digits []string) (models.RunSnapshot, error) {
	snapshot, err := session.StartRun(ctx, channel)
	if err != nil {
		return snapshot, err
	}

	inputs = slices.Clone(inputs)
	digits = slices.Clone(digits)

	for {
		switch snapshot.State {
		case models.RunStateWaitingForInput:
			if len(inputs) == 0 {
				if channel == models.ChannelVoice {
					return session.EndCall(ctx)
				}

				return snapshot, nil
			}

			snapshot, err = session.SubmitTextInput(ctx, inputs[0])
			inputs = inputs[1:]
		case models.RunStateWaitingForDTMF:
			if len(digits) == 0 {
				return session.EndCall(ctx)
			}

			snapshot, err = session.SubmitDigits(ctx, digits[0])
			digits = digits[1:]
		default:
			return snapshot, nil
		}

		if err != nil {
			return snapshot, err
		}
	}
}

func printRun(w io.Writer, snapshot models.RunSnapshot) error {
	for _, event := range snapshot.Events {
		line := fmt.Sprintf("[%s] %s", event.Category, event.Content)
		if event.Status != "" {
			line += fmt.Sprintf(" (%s)", event.Status)
		}

		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}

	stats := snapshot.Stats

	_, err := fmt.Fprintf(w, "\nstate: %s\nnodes visited: %d/%d\napi calls: %d\nerrors: %d\nelapsed: %s\n",
		snapshot.State, stats.NodesVisited, stats.TotalNodes, stats.APICalls, stats.Errors, stats.ElapsedTime)
	if err != nil {
		return err
	}

	if stats.Outcome != "" {
		_, err = fmt.Fprintf(w, "outcome: %s\n", stats.Outcome)
	}

	return err
}

func printJSON(w io.Writer, snapshot models.RunSnapshot) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	return encoder.Encode(snapshot)
}
