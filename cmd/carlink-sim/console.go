package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/carlink-protocol/carlink-go/pkg/association"
	"github.com/carlink-protocol/carlink-go/pkg/log"
	"github.com/carlink-protocol/carlink-go/pkg/oob"
	"github.com/carlink-protocol/carlink-go/pkg/reconnect"
	"github.com/carlink-protocol/carlink-go/pkg/security"
	"github.com/carlink-protocol/carlink-go/pkg/session"
	"github.com/carlink-protocol/carlink-go/pkg/transport"
)

// handshakeTimeout bounds one simulated reconnection attempt.
const handshakeTimeout = 5 * time.Second

// Console is the interactive command loop of the simulator.
type Console struct {
	config   Config
	registry *association.Manager
	sessions *session.Manager
	logger   log.Logger
	rl       *readline.Instance
}

func newConsole(cfg Config, registry *association.Manager, logger log.Logger) (*Console, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "carlink> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}

	return &Console{
		config:   cfg,
		registry: registry,
		sessions: session.NewManager(logger),
		logger:   logger,
		rl:       rl,
	}, nil
}

// Close releases the console's terminal resources.
func (c *Console) Close() {
	c.sessions.Shutdown()
	_ = c.rl.Close()
}

// Run starts the interactive command loop.
func (c *Console) Run(ctx context.Context, cancel context.CancelFunc) {
	c.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := c.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(c.rl.Stdout(), "Exiting...")
			cancel()
			return
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		parts := strings.Fields(line)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "help", "?":
			c.printHelp()

		case "associate":
			c.cmdAssociate(args)

		case "reconnect":
			c.cmdReconnect(args)

		case "cars", "list", "ls":
			c.cmdCars()

		case "rename":
			c.cmdRename(args)

		case "remove":
			c.cmdRemove(args)

		case "clear":
			c.cmdClear()

		case "status":
			c.cmdStatus()

		case "quit", "exit", "q":
			fmt.Fprintln(c.rl.Stdout(), "Exiting...")
			cancel()
			return

		default:
			fmt.Fprintf(c.rl.Stdout(), "Unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}
}

func (c *Console) printHelp() {
	fmt.Fprintln(c.rl.Stdout(), `
Companion Link Simulator Commands:
  Handshake:
    associate            - Associate the simulated car
    reconnect <version>  - Run a reconnection handshake (v1..v4)

  Registry:
    cars                 - List associated cars
    rename <id> <name>   - Rename an associated car
    remove <id>          - Remove an associated car
    clear                - Remove all associated cars

  General:
    status               - Show simulator status
    help                 - Show this help
    quit                 - Exit the simulator`)
}

// cmdAssociate handles the associate command.
func (c *Console) cmdAssociate(args []string) {
	carID := c.config.CarID
	name := c.config.CarName
	if len(args) > 0 {
		carID = args[0]
	}
	if len(args) > 1 {
		name = strings.Join(args[1:], " ")
	}

	c.registry.Add(carID, name)
	fmt.Fprintf(c.rl.Stdout(), "Associated %s (%s)\n", carID, name)
}

// cmdReconnect handles the reconnect command. It spins up a simulated
// vehicle on the far end of an in-memory stream and drives the phone
// side of the handshake against it.
func (c *Console) cmdReconnect(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: reconnect <version>  (v1, v2, v3, v4)")
		return
	}

	version, err := parseVersion(args[0])
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Invalid version: %v\n", err)
		return
	}

	if version.AtLeast(security.VersionV2) && !c.registry.IsAssociated(c.config.CarID) {
		fmt.Fprintf(c.rl.Stdout(), "Car %s is not associated; run 'associate' first\n", c.config.CarID)
		return
	}

	if err := c.runHandshake(version); err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Handshake failed: %v\n", err)
		return
	}
}

// runHandshake performs one full reconnection attempt at the given
// version.
func (c *Console) runHandshake(version security.Version) error {
	phoneStream, carStream := transport.Pipe()
	sidePhone, sideCar := transport.Pipe()

	// v4 sources its token from the side channel; earlier versions get a
	// passive provider that is simply never used
	var provider oob.TokenProvider
	if version == security.VersionV4 {
		sp, err := oob.NewSessionProvider(sidePhone)
		if err != nil {
			return err
		}
		sp.PrepareForRequests()
		provider = sp
	} else {
		provider = oob.NewPassiveProvider()
	}

	vehicle, err := startVehicle(c.config.CarID, version, carStream, sideCar)
	if err != nil {
		return err
	}

	peripheral := transport.RemotePeripheral{ID: "sim-vehicle", DisplayName: c.config.CarName}
	helper := reconnect.NewHelper(version, peripheral, reconnect.Config{
		LocalDeviceID: c.config.DeviceID,
		Registry:      c.registry,
		TokenProvider: provider,
		Logger:        c.logger,
	})

	sess, err := c.sessions.Begin(peripheral, "companion-link", helper, phoneStream, provider)
	if err != nil {
		return err
	}
	defer sess.Close()

	done := make(chan error, 1)
	phoneStream.SetMessageHandler(func(data []byte) {
		completed, err := helper.HandleMessage(phoneStream, data)
		if err != nil {
			done <- err
			return
		}
		if completed {
			done <- nil
		}
	})

	advertisement, err := vehicle.Advertisement()
	if err != nil {
		return err
	}
	if err := helper.PrepareForHandshake(advertisement); err != nil {
		return err
	}
	if err := helper.StartHandshake(phoneStream); err != nil {
		return err
	}

	select {
	case err := <-done:
		if err != nil {
			return err
		}
	case <-time.After(handshakeTimeout):
		return fmt.Errorf("handshake timed out after %s", handshakeTimeout)
	}

	configured := make(chan bool, 1)
	helper.ConfigureSecureChannel(&printingChannel{out: c.rl}, phoneStream, func(ok bool) {
		configured <- ok
	})
	if !<-configured {
		return fmt.Errorf("secure channel configuration failed")
	}

	name, _ := c.registry.Name(helper.CarID())
	fmt.Fprintf(c.rl.Stdout(), "Reconnected to %s (%s) using %s\n", helper.CarID(), name, version)
	return nil
}

// cmdCars handles the cars command.
func (c *Console) cmdCars() {
	records := c.registry.Records()
	if len(records) == 0 {
		fmt.Fprintln(c.rl.Stdout(), "No associated cars")
		return
	}

	fmt.Fprintf(c.rl.Stdout(), "\nAssociated Cars (%d):\n", len(records))
	fmt.Fprintln(c.rl.Stdout(), "-------------------------------------------")
	for _, r := range records {
		fmt.Fprintf(c.rl.Stdout(), "  %s  %s\n", r.ID, r.Name)
	}
	fmt.Fprintln(c.rl.Stdout())
}

// cmdRename handles the rename command.
func (c *Console) cmdRename(args []string) {
	if len(args) < 2 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: rename <id> <name>")
		return
	}
	if !c.registry.Rename(args[0], strings.Join(args[1:], " ")) {
		fmt.Fprintf(c.rl.Stdout(), "Car not found: %s\n", args[0])
		return
	}
	fmt.Fprintln(c.rl.Stdout(), "Renamed")
}

// cmdRemove handles the remove command.
func (c *Console) cmdRemove(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: remove <id>")
		return
	}
	c.registry.Remove(args[0])
	fmt.Fprintln(c.rl.Stdout(), "Removed")
}

// cmdClear handles the clear command.
func (c *Console) cmdClear() {
	c.registry.ClearAll()
	fmt.Fprintln(c.rl.Stdout(), "All associations removed")
}

// cmdStatus handles the status command.
func (c *Console) cmdStatus() {
	fmt.Fprintln(c.rl.Stdout(), "\nSimulator Status")
	fmt.Fprintln(c.rl.Stdout(), "-------------------------------------------")
	fmt.Fprintf(c.rl.Stdout(), "  Device ID:       %s\n", c.config.DeviceID)
	fmt.Fprintf(c.rl.Stdout(), "  Simulated car:   %s (%s)\n", c.config.CarID, c.config.CarName)
	fmt.Fprintf(c.rl.Stdout(), "  Associated cars: %d\n", c.registry.Count())
	fmt.Fprintf(c.rl.Stdout(), "  Live sessions:   %d\n", c.sessions.ActiveCount())
	fmt.Fprintln(c.rl.Stdout())
}

// parseVersion maps a user-typed version name to a security version.
func parseVersion(s string) (security.Version, error) {
	switch strings.ToLower(s) {
	case "v1", "1":
		return security.VersionV1, nil
	case "v2", "2":
		return security.VersionV2, nil
	case "v3", "3":
		return security.VersionV3, nil
	case "v4", "4":
		return security.VersionV4, nil
	default:
		return 0, fmt.Errorf("unknown version %q (use v1..v4)", s)
	}
}

// printingChannel is a SecureChannel that reports configuration to the
// console instead of configuring a real link.
type printingChannel struct {
	out *readline.Instance
}

func (p *printingChannel) ApplyVersion(v security.Version) error {
	fmt.Fprintf(p.out.Stdout(), "Secure channel configured for %s\n", v)
	return nil
}

func (p *printingChannel) InstallToken(oob.Token) error {
	fmt.Fprintln(p.out.Stdout(), "Out-of-band token installed as channel key material")
	return nil
}
