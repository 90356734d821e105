package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"lumos/internal/builder"
	"lumos/internal/config"
	"lumos/internal/device"
	"lumos/internal/scaffold"
	"lumos/internal/serial"
)

// argsBetween rejects argument counts outside [lo, hi] as usage errors.
func argsBetween(lo, hi int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) < lo || len(args) > hi {
			return usageErrorf(fmt.Sprintf("'%s' expects usage: lumos %s", cmd.Name(), cmd.Use))
		}
		return nil
	}
}

func (a *App) newDevice(cmd *cobra.Command, g *globals) *device.Device {
	return device.New(g.root, a.Serial, a.Invoker, cmd.InOrStdin(), g.log)
}

// initCmd scaffolds a project, or repairs a partially initialized one.
func (a *App) initCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize a new project in current directory",
		Args:  argsBetween(0, 0),
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt := scaffold.NewPrompter(cmd.InOrStdin(), g.log)
			outcome, err := scaffold.New(g.root, prompt, g.log).Init()
			if err != nil {
				return err
			}
			g.log.Debug("[DEBUG] init outcome: %s\n", outcome)
			return nil
		},
	}
}

func (a *App) buildCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "build",
		Short: "Build the project in current directory",
		Args:  argsBetween(0, 0),
		RunE: func(cmd *cobra.Command, args []string) error {
			env := config.ResolveEnvironment(g.root, a.Getenv)
			g.log.Debug("[DEBUG] resources: %q toolchain: %q\n", env.Root, env.Toolchain)
			_, err := builder.New(g.root, env, a.Invoker, g.log).Build(cmd.Context())
			return err
		},
	}
}

func (a *App) flashCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "flash [port]",
		Short: "Flash firmware to STM32 (auto-detects port if not specified)",
		Args:  argsBetween(0, 1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.newDevice(cmd, g).Flash(cmd.Context(), optionalArg(args, 0))
		},
	}
}

func (a *App) monitorCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "monitor [port] [baud]",
		Short: "Monitor serial output from MCU",
		Args:  argsBetween(0, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			baud := 0
			if raw := optionalArg(args, 1); raw != "" {
				b, err := serial.ParseBaud(raw)
				if err != nil {
					return usageErrorf(err.Error())
				}
				baud = b
			}
			return a.newDevice(cmd, g).Monitor(cmd.Context(), optionalArg(args, 0), baud)
		},
	}
}

func (a *App) resetCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "reset <port>",
		Short: "Reset the MCU by pulsing DTR",
		Args:  argsBetween(1, 1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.newDevice(cmd, g).Reset(cmd.Context(), args[0])
		},
	}
}

func (a *App) portsCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "ports",
		Short: "List available serial ports",
		Args:  argsBetween(0, 0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.newDevice(cmd, g).Ports()
		},
	}
}

func optionalArg(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}
