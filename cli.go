package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/alecthomas/kong"

	"romcart/emu/log"
)

type action byte

const (
	runAction      action = iota // Run the cartridge device
	flashAction                  // Stage a ROM into the flash image
	romInfosAction               // Show ROM infos
	versionAction                // Show romcart version
)

type (
	CLI struct {
		Run      Run      `cmd:"" help:"Run the cartridge device. (default command)" default:"true"`
		Flash    Flash    `cmd:"" help:"Stage a ROM file into the flash image, without running the device."`
		RomInfos RomInfos `cmd:"" help:"Show ROM infos." name:"rom-infos"`
		Version  Version  `cmd:"" help:"Show romcart version."`

		Log logModMask `help:"${log_help}" placeholder:"mod0,mod1,..."`

		action action
	}

	Run struct {
		SDRoot     string `name:"sdroot" help:"${sdroot_help}" type:"existingdir"`
		FlashImage string `name:"flash-image" help:"${flashimage_help}" type:"path"`
		Volatile   bool   `name:"volatile" help:"Do not persist the flash chip image between runs."`
		Offline    bool   `name:"offline" help:"Run without the simulated WiFi link."`
	}

	Flash struct {
		RomPath    string `arg:"" name:"/path/to/rom" help:"${rompath_help}" required:"true" type:"existingfile"`
		FlashImage string `name:"flash-image" help:"${flashimage_help}" type:"path"`
	}

	RomInfos struct {
		RomPath string `arg:"" name:"/path/to/rom" type:"existingfile"`
	}

	Version struct{}
)

var vars = kong.Vars{
	"sdroot_help":     "Directory standing in for the microSD card.",
	"flashimage_help": "File backing the flash chip content.",
	"rompath_help":    "ROM file to program into the flash staging area.",
	"log_help":        "Enable logging for specified modules.",
}

func parseArgs(args []string) CLI {
	var cfg CLI
	parser, err := kong.New(&cfg,
		kong.Name("romcart"),
		kong.Description("ROM cartridge device emulator."),
		kong.UsageOnError(),
		kong.Help(printHelp),
		vars)
	if err != nil {
		panic(err)
	}

	ctx, err := parser.Parse(args)
	checkf(err, "failed to parse command line")
	checkf(ctx.Error, "failed to parse command line")

	switch ctx.Command() {
	case "flash </path/to/rom>":
		cfg.action = flashAction
	case "rom-infos </path/to/rom>":
		cfg.action = romInfosAction
	case "version":
		cfg.action = versionAction
	default:
		cfg.action = runAction
	}
	return cfg
}

func printHelp(options kong.HelpOptions, ctx *kong.Context) error {
	if err := kong.DefaultHelpPrinter(options, ctx); err != nil {
		return err
	}
	if strings.HasPrefix(ctx.Command(), "run") {
		loggingHelp := `
Log modules:
  The --log flag accepts a comma-separated list of modules.

  Valid log modules are:
%s

  As a special case, the following values are accepted:
    - no                     Disable all logging.
    - all                    Enable all logs.
`
		var strs []string
		for _, m := range log.ModuleNames() {
			strs = append(strs, "    - "+m)
		}

		fmt.Fprintf(os.Stderr, loggingHelp, strings.Join(strs, "\n"))
	}

	return nil
}

type logModMask log.ModuleMask

// Decode decodes a comma-separated list of module names into a module mask.
//
// Implements kong.MapperValue interface.
func (lm logModMask) Decode(ctx *kong.DecodeContext) error {
	nolog := false
	allLogs := false

	tok := ctx.Scan.Pop()
	for _, v := range strings.Split(tok.Value.(string), ",") {
		switch v {
		case "all":
			allLogs = true
		case "no":
			nolog = true
		default:
			mod, ok := log.ModuleByName(v)
			if !ok {
				return fmt.Errorf("unknown log module %s", v)
			}
			lm |= logModMask(mod.Mask())
		}
	}

	if nolog {
		if allLogs {
			return fmt.Errorf("cannot use 'all' and 'no' together")
		}
		if lm != 0 {
			return fmt.Errorf("cannot combine 'no' with other log modules")
		}
		log.Disable()
		return nil
	}

	if allLogs {
		lm = logModMask(log.ModuleMaskAll)
	}

	log.EnableDebugModules(log.ModuleMask(lm))
	return nil
}

func checkf(err error, format string, args ...any) {
	if err == nil {
		return
	}
	fatalf(format+".\n"+err.Error(), args...)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "fatal error:")
	fmt.Fprintf(os.Stderr, "\n\t%s\n", fmt.Sprintf(format, args...))
	os.Exit(1)
}
