package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/temirov/ctrlcv/internal/commands"
)

const (
	booleanFlagTypeName               = "bool"
	booleanFlagTrueLiteral            = "true"
	booleanFlagAcceptedValuesListing  = "true, false, yes, no, on, off, 1, 0"
	booleanFlagInvalidValueErrorLabel = "invalid boolean value"
	pathToggleFlagTypeName            = "path"
)

var booleanFlagLiterals = map[string]bool{
	"true":  true,
	"t":     true,
	"1":     true,
	"yes":   true,
	"y":     true,
	"on":    true,
	"false": false,
	"f":     false,
	"0":     false,
	"no":    false,
	"n":     false,
	"off":   false,
}

// booleanFlagValue accepts the usual yes/no spellings and may be given
// bare, as --flag, meaning true.
type booleanFlagValue struct {
	target  *bool
	flagKey string
}

func (value *booleanFlagValue) Set(input string) error {
	normalized := strings.ToLower(strings.TrimSpace(input))
	if normalized == "" {
		normalized = booleanFlagTrueLiteral
	}
	parsed, ok := booleanFlagLiterals[normalized]
	if !ok {
		return fmt.Errorf("%s %q for --%s; accepted values: %s", booleanFlagInvalidValueErrorLabel, input, value.flagKey, booleanFlagAcceptedValuesListing)
	}
	*value.target = parsed
	return nil
}

func (value *booleanFlagValue) String() string {
	if value == nil || value.target == nil {
		return "false"
	}
	return strconv.FormatBool(*value.target)
}

func (value *booleanFlagValue) Type() string {
	return booleanFlagTypeName
}

func registerBooleanFlag(flagSet *pflag.FlagSet, target *bool, name string, defaultValue bool, usage string) {
	*target = defaultValue
	flagSet.Var(&booleanFlagValue{target: target, flagKey: name}, name, usage)
	if lookup := flagSet.Lookup(name); lookup != nil {
		lookup.DefValue = strconv.FormatBool(defaultValue)
		lookup.NoOptDefVal = booleanFlagTrueLiteral
	}
}

// normalizeBooleanFlagArguments joins "--flag literal" into "--flag=literal"
// for every boolean flag of the command tree, so a bare boolean flag can be
// followed by a repository argument without swallowing it.
func normalizeBooleanFlagArguments(command *cobra.Command, arguments []string) []string {
	booleanFlags := map[string]struct{}{}
	collectBooleanFlagNames(command, booleanFlags)
	if len(booleanFlags) == 0 || len(arguments) == 0 {
		return arguments
	}
	normalized := make([]string, 0, len(arguments))
	for index := 0; index < len(arguments); index++ {
		currentArgument := arguments[index]
		if currentArgument == "--" {
			normalized = append(normalized, arguments[index:]...)
			break
		}
		if strings.HasPrefix(currentArgument, "--") && !strings.Contains(currentArgument, "=") && index+1 < len(arguments) {
			flagName := strings.TrimPrefix(currentArgument, "--")
			if _, isBoolean := booleanFlags[flagName]; isBoolean {
				literal := strings.ToLower(strings.TrimSpace(arguments[index+1]))
				if _, valid := booleanFlagLiterals[literal]; valid {
					normalized = append(normalized, fmt.Sprintf("--%s=%s", flagName, arguments[index+1]))
					index++
					continue
				}
			}
		}
		normalized = append(normalized, currentArgument)
	}
	return normalized
}

func collectBooleanFlagNames(command *cobra.Command, target map[string]struct{}) {
	if command == nil {
		return
	}
	visit := func(flagSet *pflag.FlagSet) {
		flagSet.VisitAll(func(flag *pflag.Flag) {
			if flag.Value != nil && flag.Value.Type() == booleanFlagTypeName {
				target[flag.Name] = struct{}{}
			}
		})
	}
	visit(command.PersistentFlags())
	visit(command.Flags())
	for _, child := range command.Commands() {
		collectBooleanFlagNames(child, target)
	}
}

// pathToggleFlagValue appends to a toggle list shared by --select and
// --deselect, so toggles apply in command-line order.
type pathToggleFlagValue struct {
	toggles  *[]commands.PathToggle
	selected bool
}

func (value *pathToggleFlagValue) Set(input string) error {
	path := strings.Trim(strings.TrimSpace(input), "/")
	if path == "" {
		return fmt.Errorf("empty path")
	}
	*value.toggles = append(*value.toggles, commands.PathToggle{Path: path, Selected: value.selected})
	return nil
}

func (value *pathToggleFlagValue) String() string {
	if value == nil || value.toggles == nil {
		return "[]"
	}
	paths := make([]string, 0, len(*value.toggles))
	for _, toggle := range *value.toggles {
		if toggle.Selected == value.selected {
			paths = append(paths, toggle.Path)
		}
	}
	return "[" + strings.Join(paths, ",") + "]"
}

func (value *pathToggleFlagValue) Type() string {
	return pathToggleFlagTypeName
}

func registerPathToggleFlags(flagSet *pflag.FlagSet, toggles *[]commands.PathToggle) {
	flagSet.Var(&pathToggleFlagValue{toggles: toggles, selected: true}, selectFlagName, selectFlagDescription)
	flagSet.Var(&pathToggleFlagValue{toggles: toggles, selected: false}, deselectFlagName, deselectFlagDescription)
}
