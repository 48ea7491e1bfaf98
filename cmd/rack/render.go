package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	ossignal "os/signal"
	"time"

	"github.com/sirupsen/logrus"

	"pipelined.dev/rack"
	"pipelined.dev/rack/backend"
	"pipelined.dev/rack/codec"
	"pipelined.dev/rack/control"
	"pipelined.dev/rack/effect"
	"pipelined.dev/rack/generator"
	"pipelined.dev/rack/internal/config"
	"pipelined.dev/rack/log"
	"pipelined.dev/rack/metric"
	"pipelined.dev/rack/mixer"
	"pipelined.dev/rack/mp3"
	"pipelined.dev/rack/portaudio"
	"pipelined.dev/rack/run"
	"pipelined.dev/rack/signal"
	"pipelined.dev/rack/wav"
)

type renderCommand struct {
	config   string
	out      string
	duration time.Duration
}

func (cmd *renderCommand) Name() string {
	return "render"
}

func (cmd *renderCommand) Help() string {
	return "Mix configured inputs through effects into a file or a device"
}

func (cmd *renderCommand) Register(fs *flag.FlagSet) {
	fs.StringVar(&cmd.config, "config", "", "path to config file (required)")
	fs.StringVar(&cmd.out, "out", "", "output file, overrides configured output")
	fs.DurationVar(&cmd.duration, "duration", 0, "render duration, overrides configured duration")
}

func (cmd *renderCommand) Run() error {
	if cmd.config == "" {
		return errors.New("missing -config required flag")
	}
	c, err := config.Load(cmd.config)
	if err != nil {
		return err
	}
	if cmd.out != "" {
		c.Output = config.Output{Path: cmd.out, BitRate: c.Output.BitRate, Quality: c.Output.Quality}
	}
	if cmd.duration > 0 {
		c.Duration = cmd.duration
	}
	if c.Endless() && c.Duration == 0 {
		return errors.New("render of endless inputs requires duration")
	}
	closer, err := log.Configure(c.Log.Level, c.Log.File)
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx, stop := ossignal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return render(ctx, c)
}

func newCodecs(c *config.Config) (*codec.Registry, error) {
	r := codec.NewRegistry()
	for _, cd := range []codec.Codec{
		wav.Codec{},
		mp3.Codec{BitRate: c.Output.BitRate, Quality: c.Output.Quality},
	} {
		if err := r.Add(cd); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func newEffects() (*effect.Registry, error) {
	r := effect.NewRegistry()
	if err := effect.RegisterBuiltins(r); err != nil {
		return nil, err
	}
	return r, nil
}

func newBackends() (*backend.Registry, error) {
	r := backend.NewRegistry()
	if err := r.Add(portaudio.Backend{}); err != nil {
		return nil, err
	}
	return r, nil
}

// build creates the mixer with inputs and effects.
func build(c *config.Config, codecs *codec.Registry) (*mixer.Mixer, error) {
	typ, err := c.MixerType()
	if err != nil {
		return nil, err
	}
	format := c.Format()
	m := mixer.New(typ, format, mixer.WithName("master"))
	if err := control.Apply(m, c.Mixer); err != nil {
		return nil, fmt.Errorf("mixer controls: %w", err)
	}
	for _, in := range c.Inputs {
		name := in.Path
		var node rack.Node
		if in.Waveform != "" {
			name = in.Waveform
			node, err = generator.New(format, in.Waveform, in.Frequency)
		} else {
			node, err = fileSource(in, codecs)
		}
		if err != nil {
			return nil, fmt.Errorf("input %s: %w", name, err)
		}
		input, err := m.AddInput(node)
		if err != nil {
			return nil, fmt.Errorf("input %s: %w", name, err)
		}
		input.Gain().Set(in.Gain)
		input.Pan().Set(in.Pan)
		input.Mute().Set(in.Mute)
	}
	effects, err := newEffects()
	if err != nil {
		return nil, err
	}
	for _, ec := range c.Effects {
		e, err := effects.New(ec.Name, format, typ, ec.Params)
		if err != nil {
			return nil, err
		}
		logger := log.Component("effect", ec.Name)
		e = effect.Logged(effect.Timed(e, metric.NewMeter("effect."+ec.Name, format.SampleRate)), logger)
		if err := m.AddEffect(e); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func fileSource(in config.Input, codecs *codec.Registry) (rack.Node, error) {
	d, err := codecs.DecodeFile(in.Path)
	if err != nil {
		return nil, err
	}
	src, err := codec.NewSource(d)
	if err != nil {
		return nil, err
	}
	src.Loop().Set(in.Loop)
	return src, nil
}

// fileSink creates streaming sink for the output file.
func fileSink(c *config.Config, codecs *codec.Registry, format signal.Format) (rack.Sink, error) {
	cd, err := codecs.ForPath(c.Output.Path)
	if err != nil {
		return nil, err
	}
	format.BitDepth = signal.BitDepth(c.BitDepth)
	switch cd := cd.(type) {
	case wav.Codec:
		return wav.Create(c.Output.Path, format, nil)
	case mp3.Codec:
		return mp3.Create(c.Output.Path, format, cd.BitRate, cd.Quality)
	}
	return nil, fmt.Errorf("no sink for %s", c.Output.Path)
}

func render(ctx context.Context, c *config.Config) error {
	codecs, err := newCodecs(c)
	if err != nil {
		return err
	}
	m, err := build(c, codecs)
	if err != nil {
		return err
	}
	// resampler in the chain changes the output rate
	format := m.Format()
	d := &run.Driver{
		Node:   m,
		Frames: c.BufferSize,
		Limit:  format.SampleRate.FramesIn(c.Duration),
		Close:  true,
	}
	if c.Output.Backend != "" {
		backends, err := newBackends()
		if err != nil {
			return err
		}
		b, err := backends.Lookup(c.Output.Backend)
		if err != nil {
			return err
		}
		out, err := b.OpenOutput(format, c.BufferSize)
		if err != nil {
			return err
		}
		// device requires exact chunks
		d.Output, d.Fixed = out, true
	} else {
		sink, err := fileSink(c, codecs, format)
		if err != nil {
			return err
		}
		d.Output = sink
	}

	logger := log.GetLogger().WithFields(logrus.Fields{
		"mixer":  m.Name(),
		"format": format,
		"inputs": len(m.Inputs()),
	})
	logger.Info("render started")
	start := time.Now()
	err = run.Async(ctx, d).Await()
	err = errors.Join(err, m.Close())
	logger.WithFields(logrus.Fields{
		"frames":  d.Rendered(),
		"elapsed": time.Since(start),
		"metrics": metric.Get(m),
	}).Info("render finished")
	return err
}
