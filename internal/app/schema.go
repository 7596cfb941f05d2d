package app

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	aperr "github.com/bulltickr/aoprism-sub000/internal/errors"
)

// CommandSchema is a machine-readable description of one command and
// its subtree, for shell completion and wrapper tooling.
type CommandSchema struct {
	Path        string          `json:"path"`
	Use         string          `json:"use"`
	Short       string          `json:"short"`
	Aliases     []string        `json:"aliases,omitempty"`
	Flags       []FlagSchema    `json:"flags,omitempty"`
	Subcommands []CommandSchema `json:"subcommands,omitempty"`
}

type FlagSchema struct {
	Name      string `json:"name"`
	Shorthand string `json:"shorthand,omitempty"`
	Type      string `json:"type"`
	Usage     string `json:"usage"`
	Default   string `json:"default,omitempty"`
}

func buildSchema(root *cobra.Command, commandPath string) (CommandSchema, error) {
	cmd := root
	for _, part := range strings.Fields(strings.TrimSpace(commandPath)) {
		next := findSubcommand(cmd, part)
		if next == nil {
			return CommandSchema{}, aperr.New(aperr.CodeUsage, fmt.Sprintf("command not found: %s", commandPath))
		}
		cmd = next
	}
	return describeCommand(cmd), nil
}

func findSubcommand(cmd *cobra.Command, name string) *cobra.Command {
	for _, sub := range cmd.Commands() {
		if sub.Name() == name {
			return sub
		}
		for _, alias := range sub.Aliases {
			if alias == name {
				return sub
			}
		}
	}
	return nil
}

func describeCommand(cmd *cobra.Command) CommandSchema {
	s := CommandSchema{
		Path:    strings.TrimSpace(cmd.CommandPath()),
		Use:     cmd.Use,
		Short:   cmd.Short,
		Aliases: cmd.Aliases,
	}
	cmd.NonInheritedFlags().VisitAll(func(f *pflag.Flag) {
		s.Flags = append(s.Flags, FlagSchema{
			Name:      f.Name,
			Shorthand: f.Shorthand,
			Type:      f.Value.Type(),
			Usage:     f.Usage,
			Default:   f.DefValue,
		})
	})
	for _, sub := range cmd.Commands() {
		if sub.Hidden {
			continue
		}
		s.Subcommands = append(s.Subcommands, describeCommand(sub))
	}
	return s
}

func (s *runtimeState) newSchemaCommand(root func() *cobra.Command) *cobra.Command {
	var commandPath string
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Describe the command tree as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			desc, err := buildSchema(root(), commandPath)
			if err != nil {
				return err
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), desc, nil)
		},
	}
	cmd.Flags().StringVar(&commandPath, "command", "", "Limit output to one command path, e.g. \"status list\"")
	return cmd
}
