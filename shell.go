package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"sync/atomic"
	"time"

	"romcart/device"
	"romcart/mode"
	"romcart/sdcard"
	"romcart/settings"
)

// shell is the interactive configuration session, driving the setup menu
// from standard input. It also forwards 'p'/'P' lines to the SELECT button
// of the attached device, so emulation sessions can be ended from the
// keyboard as well.
type shell struct {
	out   io.Writer
	lines chan string

	dev   atomic.Pointer[device.Device]
	delay bool
	roms  []sdcard.ROM

	greeted bool
}

func newShell(r io.Reader, w io.Writer) *shell {
	s := &shell{out: w, lines: make(chan string)}
	go func() {
		defer close(s.lines)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			line := sc.Text()
			switch line {
			case "p", "P":
				// Button lines act on the device directly, whatever mode
				// it is in. Everything else feeds the setup menu.
				if d := s.dev.Load(); d != nil {
					hold := 300 * time.Millisecond
					if line == "P" {
						hold = 2500 * time.Millisecond
					}
					d.PressButton(hold)
				}
			default:
				s.lines <- line
			}
		}
	}()
	return s
}

// attach points the button lines at the device currently running.
func (s *shell) attach(d *device.Device) {
	s.dev.Store(d)
}

// Run handles one menu command. The controller keeps calling it until the
// returned command ends the session.
func (s *shell) Run(ctx context.Context, env *mode.Env) (mode.Command, error) {
	if !s.greeted {
		s.printMenu()
		s.greeted = true
	}
	fmt.Fprint(s.out, "> ")

	line, err := s.readLine(ctx)
	if err != nil {
		return mode.Command{}, err
	}

	switch line {
	case "":
		return mode.Command{}, nil

	case "l":
		return mode.Command{}, s.list(env)

	case "d":
		s.delay = !s.delay
		fmt.Fprintf(s.out, "delay mode: %v\n", s.delay)
		return mode.Command{}, nil

	case "r":
		return mode.Command{Kind: mode.CmdLaunch, DelayMode: s.delay}, nil

	case "b":
		return mode.Command{Kind: mode.CmdBooster}, nil

	case "m", "h":
		s.printMenu()
		return mode.Command{}, nil

	case "q":
		return mode.Command{}, io.EOF

	default:
		if n, err := strconv.Atoi(line); err == nil {
			return mode.Command{}, s.selectROM(env, n)
		}
		fmt.Fprintf(s.out, "unknown command %q, 'm' shows the menu\n", line)
		return mode.Command{}, nil
	}
}

func (s *shell) readLine(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case line, ok := <-s.lines:
		if !ok {
			return "", io.EOF
		}
		return line, nil
	}
}

func (s *shell) list(env *mode.Env) error {
	roms, err := env.Card.ScanROMs(env.ROMsFolder())
	if err != nil {
		fmt.Fprintf(s.out, "cannot list ROMs: %v\n", err)
		return nil
	}
	s.roms = roms

	selected, _ := env.Settings.String(settings.KeySelected)
	for i, rom := range roms {
		marker := "  "
		if rom.Filename == selected {
			marker = "* "
		}
		fmt.Fprintf(s.out, "%s%3d. %-40s %8d bytes\n", marker, i+1, rom.Filename, rom.Size)
	}
	if len(roms) == 0 {
		fmt.Fprintf(s.out, "no ROM images in %s\n", env.ROMsFolder())
	}
	return nil
}

func (s *shell) selectROM(env *mode.Env, n int) error {
	if len(s.roms) == 0 {
		fmt.Fprintln(s.out, "list ROMs first ('l')")
		return nil
	}
	if n < 1 || n > len(s.roms) {
		fmt.Fprintf(s.out, "no such entry: %d\n", n)
		return nil
	}
	rom := s.roms[n-1]
	env.Settings.PutString(settings.KeySelected, rom.Filename)
	if err := env.Settings.Save(); err != nil {
		return err
	}
	fmt.Fprintf(s.out, "selected %s\n", rom.Filename)
	return nil
}

func (s *shell) printMenu() {
	fmt.Fprint(s.out, `romcart setup:
  l          list ROM images
  <number>   select a ROM from the last listing
  d          toggle delay mode
  r          launch the selected ROM
  b          exit to the booster
  p / P      short / long press of the SELECT button
  m          show this menu
  q          quit
`)
}
