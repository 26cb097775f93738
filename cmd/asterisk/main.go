package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/urfave/cli/v2"

	"github.com/asterisk-lang/asterisk"
)

const sourceFileExt = ".sk"

var version = "1.0.0"

var errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))

func main() {
	app := &cli.App{
		Name:      "asterisk",
		Usage:     "Asterisk language interpreter",
		Version:   version,
		ArgsUsage: "[FILE]",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "repl",
				Usage: "start the interactive shell",
			},
		},
		Action: mainAction,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render(err.Error()))
		os.Exit(1)
	}
}

func mainAction(ctx *cli.Context) error {
	var inputFile string
	if args := ctx.Args(); args.Len() > 0 {
		inputFile = args.First()
	}
	if ctx.Bool("repl") || inputFile == "" {
		return RunREPL(os.Stdin, os.Stdout)
	}
	interp := asterisk.New()
	if _, err := interp.RunFile(inputFile); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("file not found - %s", inputFile)
		}
		return err
	}
	return nil
}
