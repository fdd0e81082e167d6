package commands

import (
	"bufio"
	"fmt"
	"io"
	"slices"
	"strings"
	"unicode"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// InteractiveCmd creates the interactive command. With the in-memory store
// this is the only way to run several operations against the same state.
func InteractiveCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "interactive",
		Short: "Run several commands in one session",
		Long: `Start a session where commands share one store, timer queue and mail token.
Type 'help' to list commands and 'exit' or 'quit' to leave.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			commands := make(map[string]*cobra.Command)
			for _, sub := range cmd.Parent().Commands() {
				switch sub.Name() {
				case "interactive", "completion", "help", "serve":
					continue
				}
				commands[sub.Name()] = sub
			}
			return runSession(cmd.InOrStdin(), cmd.OutOrStdout(), commands)
		},
	}
}

func runSession(in io.Reader, out io.Writer, commands map[string]*cobra.Command) error {
	fmt.Fprintln(out, "Type 'help' for available commands, 'exit' or 'quit' to leave")
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			break
		}

		parts, err := parseCommandLine(strings.TrimSpace(scanner.Text()))
		if err != nil {
			fmt.Fprintf(out, "❌ Error parsing command: %v\n\n", err)
			continue
		}
		if len(parts) == 0 {
			continue
		}

		switch parts[0] {
		case "exit", "quit":
			fmt.Fprintln(out, "Goodbye!")
			return nil
		case "help":
			printInteractiveHelp(out, commands)
			continue
		}

		target, ok := commands[parts[0]]
		if !ok {
			fmt.Fprintf(out, "❌ Unknown command: %s (type 'help' for available commands)\n\n", parts[0])
			continue
		}
		if err := runCommand(target, parts[1:], out); err != nil {
			fmt.Fprintf(out, "❌ Error: %v\n\n", err)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading input: %w", err)
	}
	return nil
}

// runCommand calls RunE directly so PersistentPreRunE does not rebuild the app
func runCommand(cmd *cobra.Command, args []string, out io.Writer) error {
	cmd.Flags().VisitAll(func(flag *pflag.Flag) {
		flag.Changed = false
		if sv, ok := flag.Value.(pflag.SliceValue); ok {
			sv.Replace(nil)
			return
		}
		flag.Value.Set(flag.DefValue)
	})

	if err := cmd.ParseFlags(args); err != nil {
		return fmt.Errorf("parsing flags: %w", err)
	}
	if err := cmd.ValidateRequiredFlags(); err != nil {
		return err
	}

	args = cmd.Flags().Args()
	if cmd.Args != nil {
		if err := cmd.Args(cmd, args); err != nil {
			return err
		}
	}

	cmd.SetOut(out)
	if cmd.RunE != nil {
		return cmd.RunE(cmd, args)
	}
	if cmd.Run != nil {
		cmd.Run(cmd, args)
	}
	return nil
}

func printInteractiveHelp(out io.Writer, commands map[string]*cobra.Command) {
	fmt.Fprintln(out, "\nAvailable commands:")

	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		fmt.Fprintf(out, "  %-55s %s\n", commands[name].Use, commands[name].Short)
	}
	fmt.Fprintln(out, "\n  help      Show this help message")
	fmt.Fprintln(out, "  exit      Leave the session")
}

// parseCommandLine splits a line into arguments. Single and double quotes
// group words.
func parseCommandLine(line string) ([]string, error) {
	var args []string
	var current strings.Builder
	var inQuote rune
	quoted := false

	for _, r := range line {
		switch {
		case inQuote != 0:
			if r == inQuote {
				inQuote = 0
			} else {
				current.WriteRune(r)
			}
		case r == '"' || r == '\'':
			inQuote = r
			quoted = true
		case unicode.IsSpace(r):
			if current.Len() > 0 || quoted {
				args = append(args, current.String())
				current.Reset()
				quoted = false
			}
		default:
			current.WriteRune(r)
		}
	}
	if inQuote != 0 {
		return nil, fmt.Errorf("unclosed quote: %c", inQuote)
	}
	if current.Len() > 0 || quoted {
		args = append(args, current.String())
	}
	return args, nil
}
