// Package metric publishes counters of graph components with expvar.
// Counters are aggregated per component type.
package metric

import (
	"expvar"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"pipelined.dev/rack/signal"
)

const componentsLabel = "rack.components"

const (
	// RenderCounter measures number of render calls.
	RenderCounter = "Renders"
	// FrameCounter measures number of rendered frames.
	FrameCounter = "Frames"
	// LatencyCounter measures latency between render calls.
	LatencyCounter = "Latency"
	// ElapsedCounter measures total time spent in render calls.
	ElapsedCounter = "Elapsed"
	// DurationCounter counts what's the duration of signal.
	DurationCounter = "Duration"
	// ComponentCounter counts number of components.
	ComponentCounter = "Components"
	// FaultCounter counts recovered failures, like effect errors.
	FaultCounter = "Faults"
	// UnderrunCounter counts chunks that weren't delivered in time.
	UnderrunCounter = "Underruns"
)

var (
	components = metrics{
		m: make(map[string]metric),
	}

	counters = []string{
		RenderCounter,
		FrameCounter,
		LatencyCounter,
		ElapsedCounter,
		DurationCounter,
		ComponentCounter,
		FaultCounter,
		UnderrunCounter,
	}
)

// Get metrics values for provided component type.
func Get(component interface{}) map[string]string {
	return getCounters(ComponentType(component))
}

// GetAll returns counters for all measured components.
func GetAll() map[string]map[string]string {
	m := make(map[string]map[string]string)
	components.Lock()
	defer components.Unlock()
	for component := range components.m {
		m[component] = getCounters(component)
	}
	return m
}

func getCounters(componentType string) map[string]string {
	m := make(map[string]string)
	for _, counter := range counters {
		v := expvar.Get(key(componentType, counter))
		if v != nil {
			m[counter] = v.String()
		}
	}
	return m
}

// Meter captures counters of a single component. All methods are safe
// for concurrent use and don't allocate.
type Meter struct {
	metric     metric
	sampleRate signal.SampleRate
	calledAt   atomic.Int64
}

// NewMeter registers a new component of provided type.
func NewMeter(componentType string, sampleRate signal.SampleRate) *Meter {
	m := Meter{
		metric:     components.get(componentType),
		sampleRate: sampleRate,
	}
	m.metric.components.Add(1)
	return &m
}

// Measure captures a render call that started at provided time and
// returned a number of frames.
func (m *Meter) Measure(start time.Time, frames int) {
	if m == nil {
		return
	}
	now := time.Now()
	if last := m.calledAt.Swap(now.UnixNano()); last != 0 {
		m.metric.latency.set(time.Duration(now.UnixNano() - last))
	}
	m.metric.elapsed.add(now.Sub(start))
	m.metric.renders.Add(1)
	m.metric.frames.Add(int64(frames))
	m.metric.duration.add(m.sampleRate.DurationOf(frames))
}

// Fault counts a recovered failure.
func (m *Meter) Fault() {
	if m == nil {
		return
	}
	m.metric.faults.Add(1)
}

// Underrun counts a chunk that wasn't delivered in time.
func (m *Meter) Underrun() {
	if m == nil {
		return
	}
	m.metric.underruns.Add(1)
}

type metrics struct {
	sync.Mutex
	m map[string]metric
}

func (m *metrics) get(componentType string) metric {
	m.Lock()
	defer m.Unlock()
	if metric, ok := m.m[componentType]; ok {
		// return existing metric if available
		return metric
	}
	// create new metric
	metric := newMetric(componentType)
	m.m[componentType] = metric
	return metric
}

type metric struct {
	components *expvar.Int
	renders    *expvar.Int
	frames     *expvar.Int
	faults     *expvar.Int
	underruns  *expvar.Int
	latency    *duration
	elapsed    *duration
	duration   *duration
}

func newMetric(componentType string) metric {
	m := metric{
		components: expvar.NewInt(key(componentType, ComponentCounter)),
		renders:    expvar.NewInt(key(componentType, RenderCounter)),
		frames:     expvar.NewInt(key(componentType, FrameCounter)),
		faults:     expvar.NewInt(key(componentType, FaultCounter)),
		underruns:  expvar.NewInt(key(componentType, UnderrunCounter)),
		latency:    &duration{},
		elapsed:    &duration{},
		duration:   &duration{},
	}
	expvar.Publish(key(componentType, LatencyCounter), m.latency)
	expvar.Publish(key(componentType, ElapsedCounter), m.elapsed)
	expvar.Publish(key(componentType, DurationCounter), m.duration)
	return m
}

func key(componentType, counter string) string {
	return fmt.Sprintf("%s.%s.%s", componentsLabel, componentType, counter)
}

// ComponentType returns the name of component type used to aggregate
// counters.
func ComponentType(component interface{}) string {
	if s, ok := component.(string); ok {
		return s
	}
	rv := reflect.ValueOf(component)
	for rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Interface {
		rv = rv.Elem()
	}
	return rv.Type().String()
}

// duration allows to format time.Duration metric values.
type duration struct {
	d atomic.Int64
}

func (v *duration) String() string {
	return fmt.Sprintf("%q", time.Duration(v.d.Load()))
}

func (v *duration) add(delta time.Duration) {
	v.d.Add(int64(delta))
}

func (v *duration) set(value time.Duration) {
	v.d.Store(int64(value))
}
