package main

import (
	"flag"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"pipelined.dev/rack/control"
	"pipelined.dev/rack/effect"
	"pipelined.dev/rack/signal"
)

type effectsCommand struct {
	out io.Writer
}

func (cmd *effectsCommand) Name() string {
	return "effects"
}

func (cmd *effectsCommand) Help() string {
	return "Show the list of available effects and their controls"
}

func (cmd *effectsCommand) Register(*flag.FlagSet) {}

func (cmd *effectsCommand) Run() error {
	r := effect.NewRegistry()
	if err := effect.RegisterBuiltins(r); err != nil {
		return err
	}
	format := signal.Format{SampleRate: 44100, Channels: 2}
	w := tabwriter.NewWriter(cmd.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "EFFECT\tKIND\tCONTROLS")
	for _, id := range r.IDs() {
		e, err := r.New(id, format, effect.Offline, requiredParams[id])
		if err != nil {
			return err
		}
		kind := "fixed"
		if effect.IsVarying(e) {
			kind = "varying"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", id, kind, describe(e.Controls()))
	}
	return w.Flush()
}

// requiredParams are needed to instantiate effects for listing.
var requiredParams = map[string]map[string]float64{
	"resampler": {"rate": 48000},
}

func describe(controls []control.Control) string {
	s := make([]string, 0, len(controls))
	for _, c := range controls {
		switch v := c.(type) {
		case *control.Float:
			s = append(s, fmt.Sprintf("%s[%g..%g]", v.Name(), v.Min(), v.Max()))
		default:
			s = append(s, c.Name())
		}
	}
	return strings.Join(s, ", ")
}
