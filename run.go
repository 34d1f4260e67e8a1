package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"romcart/device"
	"romcart/hw/flash"
	"romcart/hw/romemul"
	"romcart/network"
	"romcart/sdcard"
)

// runMain powers the device up and keeps it running across cold restarts:
// a reset outcome tears the whole device down and builds a fresh one, the
// same way the real board reboots.
func runMain(args Run) {
	cfg := device.LoadConfigOrDefault()
	if args.SDRoot != "" {
		cfg.Storage.SDRoot = args.SDRoot
	}
	if args.FlashImage != "" {
		cfg.Storage.FlashImage = args.FlashImage
	}
	if args.Volatile {
		cfg.Storage.FlashImage = ""
	}

	var net network.Client
	if !args.Offline {
		net = &network.Loopback{}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	shell := newShell(os.Stdin, os.Stdout)
	for {
		dev, err := device.New(cfg, shell, net)
		checkf(err, "failed to power up device")
		shell.attach(dev)

		outcome, err := dev.Run(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
				return // operator closed the session
			}
			checkf(err, "device error")
		}

		switch outcome {
		case device.OutcomeReset:
			fmt.Println("-- device reset --")
		case device.OutcomeBooster:
			fmt.Println("-- control handed to booster, bye --")
			return
		default:
			return
		}
	}
}

// flashMain stages a ROM file into the flash image without running the
// device, useful to prepare a flash image ahead of a run.
func flashMain(args Flash) {
	cfg := device.LoadConfigOrDefault()
	if args.FlashImage != "" {
		cfg.Storage.FlashImage = args.FlashImage
	}
	if cfg.Storage.FlashImage == "" {
		fatalf("no flash image configured, pass --flash-image")
	}

	chip := flash.New(cfg.Storage.FlashSize)
	checkf(chip.LoadFile(cfg.Storage.FlashImage), "failed to load flash image")

	stager := &romemul.Stager{Flash: chip}
	checkf(stager.ProgramFile(args.RomPath, romemul.StagingOffset), "failed to stage ROM")
	checkf(chip.SaveFile(cfg.Storage.FlashImage), "failed to save flash image")

	fmt.Printf("%s staged at %#x in %s\n", args.RomPath, romemul.StagingOffset, cfg.Storage.FlashImage)
}

// romInfosMain reports how the stager would treat the given ROM file.
func romInfosMain(args RomInfos) {
	f, err := os.Open(args.RomPath)
	checkf(err, "failed to open ROM")
	defer f.Close()

	st, err := f.Stat()
	checkf(err, "failed to stat ROM")
	size := st.Size()

	var hdr [4]byte
	n, err := io.ReadFull(f, hdr[:])
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		checkf(err, "failed to read ROM")
	}

	legacy := n == 4 && romemul.HasLegacyHeader(size, hdr[:])
	payload := size
	if legacy {
		payload -= 4
	}
	sectors := (payload + flash.SectorSize - 1) / flash.SectorSize

	fmt.Println("file:         ", args.RomPath)
	fmt.Println("size:         ", size)
	fmt.Println("eligible:     ", sdcard.Eligible(st.Name()))
	fmt.Println("legacy header:", legacy)
	fmt.Println("payload:      ", payload)
	fmt.Println("flash sectors:", sectors)
	if payload > romemul.WindowBytes {
		fmt.Printf("note: payload exceeds the %d KiB window, the excess is not addressable\n",
			romemul.WindowBytes/1024)
	}
}
