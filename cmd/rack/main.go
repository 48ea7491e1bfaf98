package main

import (
	"flag"
	"fmt"
	"io"
	"os"
)

type command interface {
	Name() string
	Help() string
	Run() error
	Register(*flag.FlagSet)
}

type app struct {
	args     []string
	out      io.Writer
	commands []command
}

const (
	successExitCode = 0
	errorExitCode   = 1
)

func newApp(args []string, out io.Writer) *app {
	return &app{
		args: args,
		out:  out,
		commands: []command{
			&renderCommand{},
			&effectsCommand{out: out},
		},
	}
}

func (a *app) run() int {
	cmdName, args := parseArgs(a.args)
	if cmdName == "" {
		a.printUsage()
		return errorExitCode
	}
	for _, cmd := range a.commands {
		if cmd.Name() != cmdName {
			continue
		}
		flags := flag.NewFlagSet(cmdName, flag.ContinueOnError)
		flags.SetOutput(a.out)
		cmd.Register(flags)
		if err := flags.Parse(args); err != nil {
			return errorExitCode
		}
		if err := cmd.Run(); err != nil {
			fmt.Fprintf(a.out, "Command failed: %v\n", err)
			return errorExitCode
		}
		return successExitCode
	}
	fmt.Fprintf(a.out, "Unknown command: %s\n\n", cmdName)
	a.printUsage()
	return errorExitCode
}

func main() {
	os.Exit(newApp(os.Args, os.Stdout).run())
}

func parseArgs(args []string) (string, []string) {
	if len(args) < 2 {
		return "", nil
	}
	return args[1], args[2:]
}

func (a *app) printUsage() {
	fmt.Fprintln(a.out, "Rack mixes audio files through effect chains")
	fmt.Fprintln(a.out)
	fmt.Fprintln(a.out, "Usage: rack <command> [flags]")
	fmt.Fprintln(a.out)
	fmt.Fprintln(a.out, "Commands:")
	for _, cmd := range a.commands {
		fmt.Fprintf(a.out, "\t%s\t%s\n", cmd.Name(), cmd.Help())
	}
}
