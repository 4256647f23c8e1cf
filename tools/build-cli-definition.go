// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/xataio/hwbench/cmd"
)

// Definition describes the hwbench command tree for documentation.
type Definition struct {
	Name     string    `json:"name"`
	Version  string    `json:"version"`
	Commands []Command `json:"commands"`
	Flags    []Flag    `json:"flags"`
}

type Command struct {
	Name        string    `json:"name"`
	Short       string    `json:"short"`
	Long        string    `json:"long,omitempty"`
	Use         string    `json:"use"`
	Example     string    `json:"example"`
	Flags       []Flag    `json:"flags"`
	Subcommands []Command `json:"subcommands"`
	Args        []string  `json:"args"`
}

type Flag struct {
	Name        string `json:"name"`
	Shorthand   string `json:"shorthand,omitempty"`
	Description string `json:"description"`
	Default     string `json:"default"`
}

func main() {
	output := "cli-definition.json"
	if len(os.Args) > 1 {
		output = os.Args[1]
	}

	rootCmd := cmd.Prepare()

	var errs []error
	def := Definition{
		Name:     rootCmd.Name(),
		Version:  cmd.Version,
		Commands: commands(rootCmd.Commands(), &errs),
		Flags:    flags(rootCmd.PersistentFlags()),
	}
	if err := errors.Join(errs...); err != nil {
		log.Fatalf("invalid command definitions:\n%v", err)
	}

	if err := writeJSON(output, def); err != nil {
		log.Fatalf("writing %s: %v", output, err)
	}
	log.Printf("CLI definition written to %s", output)
}

func commands(cmds []*cobra.Command, errs *[]error) []Command {
	out := make([]Command, 0, len(cmds))
	for _, c := range cmds {
		if c.Hidden || c.Name() == "help" || c.Name() == "completion" {
			continue
		}
		args, err := positionalArgs(c)
		if err != nil {
			*errs = append(*errs, err)
		}
		out = append(out, Command{
			Name:        c.Name(),
			Short:       c.Short,
			Long:        c.Long,
			Use:         c.Use,
			Example:     c.Example,
			Args:        args,
			Flags:       flags(c.Flags()),
			Subcommands: commands(c.Commands(), errs),
		})
	}
	return out
}

func flags(fs *pflag.FlagSet) []Flag {
	out := []Flag{}
	fs.VisitAll(func(f *pflag.Flag) {
		out = append(out, Flag{
			Name:        f.Name,
			Shorthand:   f.Shorthand,
			Description: f.Usage,
			Default:     f.DefValue,
		})
	})
	return out
}

// positionalArgs returns the ValidArgs of c after checking that they name
// every argument its Args validator accepts.
func positionalArgs(c *cobra.Command) ([]string, error) {
	if c.Args == nil {
		if len(c.ValidArgs) > 0 {
			return nil, fmt.Errorf("%s: ValidArgs without an Args validator", c.CommandPath())
		}
		return []string{}, nil
	}

	maxArgs := 0
	for i := range 10 {
		args := make([]string, i)
		for j := range args {
			args[j] = fmt.Sprintf("arg%d", j)
		}
		if err := c.Args(c, args); err == nil {
			maxArgs = i
		}
	}
	if maxArgs != len(c.ValidArgs) {
		return nil, fmt.Errorf("%s: accepts %d arguments but names %d", c.CommandPath(), maxArgs, len(c.ValidArgs))
	}

	if c.ValidArgs == nil {
		return []string{}, nil
	}
	return c.ValidArgs, nil
}

func writeJSON(path string, data any) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(data); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
