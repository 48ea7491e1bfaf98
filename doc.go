/*
Package rack allows to build and render real-time audio signal graphs.

Concept

The graph is pulled from its terminal outputs. A driver owned by an output
asks the root node to render a number of frames, the node asks its inputs
and so on down to the leaves. Every node is:

    Format - sample rate and number of channels it produces;
    Render - returns a new buffer with requested number of frames.

Nodes that have inputs implement Composite, so the graph can be walked to
detect cycles before a connection is made.

Components

    signal - non-interleaved buffers, formats and mixing arithmetic;
    control - lock-free parameters with listeners;
    line - bounded queues to hand chunks between goroutines;
    effect - fixed and varying size signal transforms;
    mixer - sums inputs, runs effects chain and feeds outputs;
    codec, wav, mp3 - decoded sources and file sinks;
    generator - waveform and noise sources;
    backend, portaudio - audio devices;
    run - drivers that pull the graph at device cadence.

Concurrency

Each mixer has exactly one rendering goroutine at a time. Topology changes
can happen on any goroutine: they build new immutable lists and swap them
atomically, so rendering never waits on a lock. Every render takes a
snapshot of the lists once, changes become visible on the next render.

Buffers are owned by one stage at a time. Returning a buffer from Render
transfers its ownership to the caller.
*/
package rack
