package ffmpeg

import (
	"fmt"
	"strings"

	"github.com/google/shlex"
)

// Options owned by the compilation recipe. Operators may not override them
// through extra arguments.
var reservedArgs = map[string]struct{}{
	"-i":              {},
	"-f":              {},
	"-vf":             {},
	"-filter:v":       {},
	"-filter_complex": {},
	"-y":              {},
	"-n":              {},
}

// SplitArgs securely splits an argument string into a slice of arguments.
// It prevents shell injection by not using a shell.
func SplitArgs(command string) ([]string, error) {
	args, err := shlex.Split(command)
	if err != nil {
		return nil, fmt.Errorf("invalid argument syntax: %w", err)
	}
	return args, nil
}

// SanitizeArgs checks operator supplied encoder arguments for shell
// metacharacters and for options that would rewrite the recipe.
func SanitizeArgs(args []string) error {
	for _, arg := range args {
		if _, reserved := reservedArgs[arg]; reserved {
			return fmt.Errorf("argument %s is reserved", arg)
		}
		if strings.ContainsAny(arg, "|&;`$()<>") {
			return fmt.Errorf("disallowed character found in argument: %s", arg)
		}
	}
	return nil
}

// ParseExtraArgs splits and sanitises FF_EXTRA_ARGS.
func ParseExtraArgs(raw string) ([]string, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	args, err := SplitArgs(raw)
	if err != nil {
		return nil, err
	}
	if err := SanitizeArgs(args); err != nil {
		return nil, err
	}
	return args, nil
}
