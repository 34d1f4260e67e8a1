package main

import (
	"fmt"
	"os"
	"runtime/debug"
)

func main() {
	cli := parseArgs(os.Args[1:])

	switch cli.action {
	case runAction:
		runMain(cli.Run)
	case flashAction:
		flashMain(cli.Flash)
	case romInfosAction:
		romInfosMain(cli.RomInfos)
	case versionAction:
		fmt.Println("romcart", version())
	}
}

func version() string {
	bi, ok := debug.ReadBuildInfo()
	if !ok || bi.Main.Version == "" {
		return "(devel)"
	}
	return bi.Main.Version
}
