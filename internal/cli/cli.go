// Package cli parses the v2md daemon's command-line invocation.
package cli

import (
	"errors"
	"fmt"
	"strings"
)

// Command is the top-level subcommand requested on the command line.
type Command string

const (
	CommandDaemon  Command = "daemon"
	CommandDoctor  Command = "doctor"
	CommandVersion Command = "version"
	CommandHelp    Command = "help"
)

var validCommands = map[Command]struct{}{
	CommandDaemon:  {},
	CommandDoctor:  {},
	CommandVersion: {},
	CommandHelp:    {},
}

// Parsed captures the command and its flag overrides. Flag fields are
// pointers so internal/app's applyCLIOverrides can tell "unset" apart from
// "set to the zero value" when applying CLI > env > file > defaults
// precedence.
type Parsed struct {
	Command      Command
	ConfigPath   string
	Host         *string
	Port         *int
	Model        *string
	Device       *string
	ComputeType  *string
	KeepWarmSecs *int
	LazyLoad     *bool
	ShowHelp     bool
}

// Parse interprets argv (excluding the program name).
func Parse(args []string) (Parsed, error) {
	parsed := Parsed{Command: CommandHelp, ShowHelp: true}
	commandSeen := false

	for i := 0; i < len(args); i++ {
		arg := args[i]

		next := func(flag string) (string, error) {
			i++
			if i >= len(args) {
				return "", fmt.Errorf("%s requires a value", flag)
			}
			return args[i], nil
		}

		switch {
		case arg == "-h" || arg == "--help":
			parsed.ShowHelp = true
			parsed.Command = CommandHelp
		case arg == "--version":
			parsed.ShowHelp = false
			parsed.Command = CommandVersion
		case arg == "--config":
			if commandSeen {
				return Parsed{}, fmt.Errorf("unexpected argument: %s", arg)
			}
			v, err := next(arg)
			if err != nil {
				return Parsed{}, err
			}
			parsed.ConfigPath = v
		case arg == "--host":
			v, err := next(arg)
			if err != nil {
				return Parsed{}, err
			}
			parsed.Host = &v
		case arg == "--port":
			v, err := next(arg)
			if err != nil {
				return Parsed{}, err
			}
			port, perr := parsePort(v)
			if perr != nil {
				return Parsed{}, perr
			}
			parsed.Port = &port
		case arg == "--model":
			v, err := next(arg)
			if err != nil {
				return Parsed{}, err
			}
			parsed.Model = &v
		case arg == "--device":
			v, err := next(arg)
			if err != nil {
				return Parsed{}, err
			}
			parsed.Device = &v
		case arg == "--compute-type":
			v, err := next(arg)
			if err != nil {
				return Parsed{}, err
			}
			parsed.ComputeType = &v
		case arg == "--keep-warm-secs":
			v, err := next(arg)
			if err != nil {
				return Parsed{}, err
			}
			secs, serr := parseInt(v, arg)
			if serr != nil {
				return Parsed{}, serr
			}
			parsed.KeepWarmSecs = &secs
		case arg == "--lazy-load":
			v := true
			parsed.LazyLoad = &v
		case arg == "--no-lazy-load":
			v := false
			parsed.LazyLoad = &v
		case strings.HasPrefix(arg, "-"):
			return Parsed{}, fmt.Errorf("unknown flag: %s", arg)
		default:
			if commandSeen {
				return Parsed{}, fmt.Errorf("unexpected argument: %s", arg)
			}
			cmd := Command(arg)
			if _, ok := validCommands[cmd]; !ok {
				return Parsed{}, fmt.Errorf("unknown command: %s", arg)
			}
			parsed.Command = cmd
			parsed.ShowHelp = cmd == CommandHelp
			commandSeen = true
		}
	}

	return parsed, nil
}

func parsePort(v string) (int, error) {
	n, err := parseInt(v, "--port")
	if err != nil {
		return 0, err
	}
	if n <= 0 || n > 65535 {
		return 0, errors.New("--port must be in (0, 65535]")
	}
	return n, nil
}

func parseInt(v string, flag string) (int, error) {
	var n int
	if _, err := fmt.Sscanf(v, "%d", &n); err != nil {
		return 0, fmt.Errorf("%s expects an integer, got %q", flag, v)
	}
	return n, nil
}

// HelpText renders usage text for binaryName.
func HelpText(binaryName string) string {
	return fmt.Sprintf(`Usage:
  %[1]s [--config PATH] <command> [flags]

Commands:
  daemon    Run the transcription daemon and control-plane HTTP server
  doctor    Run configuration and environment checks
  version   Print version information
  help      Show this help

Flags:
  --config PATH          Config file path (default: $XDG_CONFIG_HOME/v2md/config.toml)
  --host HOST             HTTP bind host (default: 127.0.0.1)
  --port PORT             HTTP bind port (default: 8765)
  --model NAME            Whisper model name
  --device accelerator|cpu Inference device
  --compute-type TYPE      Inference precision (e.g. float16, int8)
  --keep-warm-secs N       Idle seconds before unloading the model
  --lazy-load              Defer model load until first recording
  --no-lazy-load           Load the model at daemon startup
  -h, --help               Show help
  --version                Show version
`, binaryName)
}
