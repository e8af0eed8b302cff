// Package probe implements the Probe Engine: given a candidate port and
// a caller-supplied command schedule, it classifies the port by running
// commands until a response processor commits a verdict, the schedule
// is exhausted, or a hard error occurs. Grounded in the response-
// processor contract of mm-port-probe-at.c.
package probe

import (
	"context"
	"time"

	"github.com/ttymodem/mmcore/atengine"
	"github.com/ttymodem/mmcore/metrics"
	"github.com/ttymodem/mmcore/mmerr"
	"github.com/ttymodem/mmcore/mmtypes"
	"github.com/ttymodem/mmcore/pluginconfig"
	"github.com/ttymodem/mmcore/result"
)

// Disposition is a response processor's verdict for one schedule entry.
type Disposition int

const (
	// Advance tries the next schedule entry.
	Advance Disposition = iota
	// Completed commits Value as the probe verdict and stops.
	Completed
	// Abort is fatal; probing of this port stops immediately.
	Abort
)

// ProcessorResult is what a ResponseProcessor returns.
type ProcessorResult struct {
	Disposition Disposition
	Value       any
	Err         error
}

// ResponseProcessor classifies one command's outcome. respErr is the
// error atengine.Port.Send returned, if any; a nil respErr means the
// command completed with payload. last is true for the final schedule
// entry, letting a processor decide what "exhausted" means for its
// own protocol.
type ResponseProcessor func(command, payload string, respErr error, last bool) ProcessorResult

// ScheduleEntry is one step of a probe schedule.
type ScheduleEntry struct {
	Command   string
	Timeout   time.Duration
	Processor ResponseProcessor
}

// Verdict is the accumulated result of running a schedule against a
// port, mirroring ProbeTask's verdict fields from spec.md §3.
type Verdict struct {
	IsAT     bool
	IsQCDM   bool
	Vendor   string
	Product  string
	Revision string
	Tags     *result.Map
}

// Run executes schedule against port in order, stopping at the first
// Completed or Abort disposition, or after the last entry Advances.
// Cancellation is checked at each schedule-entry boundary, per
// spec.md §4.5's "react within one command boundary". ctx is also
// passed to each Send, so a command in flight when ctx is cancelled
// ends with a Cancelled error, which goes to that entry's processor.
func Run(ctx context.Context, port *atengine.Port, schedule []ScheduleEntry, mc *metrics.Collector) (Verdict, error) {
	start := time.Now()
	for i, entry := range schedule {
		select {
		case <-ctx.Done():
			recordOutcome(mc, port, start, "cancelled")
			return Verdict{}, mmerr.New(mmerr.Cancelled, "probe cancelled")
		default:
		}

		last := i == len(schedule)-1
		payload, err := port.Send(ctx, []byte(entry.Command), entry.Timeout, atengine.SendOptions{})
		pr := entry.Processor(entry.Command, payload, err, last)

		switch pr.Disposition {
		case Completed:
			v, _ := pr.Value.(Verdict)
			recordOutcome(mc, port, start, "completed")
			return v, nil
		case Abort:
			recordOutcome(mc, port, start, "aborted")
			return Verdict{}, pr.Err
		case Advance:
			continue
		}
	}
	recordOutcome(mc, port, start, "not-classified")
	return Verdict{}, nil
}

func recordOutcome(mc *metrics.Collector, port *atengine.Port, start time.Time, outcome string) {
	if mc == nil {
		return
	}
	mc.ObserveProbeDuration(port.Path(), time.Since(start).Seconds())
	mc.IncProbeOutcome(port.Path(), outcome)
}

// ATSchedule builds the built-in three-attempt AT probing schedule
// from spec.md §4.5: classified AT on the first clean success or any
// recognized error that isn't a response timeout or a bare parse
// failure; a parse failure on all three attempts classifies Not-AT.
func ATSchedule(timeout time.Duration) []ScheduleEntry {
	entries := make([]ScheduleEntry, 3)
	for i := range entries {
		entries[i] = ScheduleEntry{
			Command:   "AT\r",
			Timeout:   timeout,
			Processor: atProcessor,
		}
	}
	return entries
}

// ATScheduleFromConfig builds the AT probing schedule using a plugin's
// configured attempt count and per-attempt timeout instead of the
// hard-coded three-attempt default, so a vendor plugin loaded via
// pluginconfig can tune probing without reimplementing atProcessor.
func ATScheduleFromConfig(c pluginconfig.Config) []ScheduleEntry {
	attempts := c.Probe.Attempts
	if attempts <= 0 {
		attempts = 3
	}
	timeout := c.ProbeTimeout()
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	entries := make([]ScheduleEntry, attempts)
	for i := range entries {
		entries[i] = ScheduleEntry{
			Command:   "AT\r",
			Timeout:   timeout,
			Processor: atProcessor,
		}
	}
	return entries
}

func atProcessor(_, _ string, respErr error, last bool) ProcessorResult {
	if respErr == nil {
		return ProcessorResult{Disposition: Completed, Value: Verdict{IsAT: true}}
	}
	if mmerr.Is(respErr, mmerr.SerialResponseTimeout) {
		return ProcessorResult{Disposition: Advance}
	}
	if mmerr.Is(respErr, mmerr.SerialParseFailed) {
		if last {
			return ProcessorResult{Disposition: Completed, Value: Verdict{IsAT: false}}
		}
		return ProcessorResult{Disposition: Advance}
	}
	// Any other recognized error (e.g. +CME ERROR) still proves the
	// port is AT-capable: only a modem talking AT would produce it.
	return ProcessorResult{Disposition: Completed, Value: Verdict{IsAT: true}}
}

// ClassifyPort derives a PortType/PortFlags pair from a probe verdict
// and the merged tag set (udev-rule assignments, probe-processor
// output and plugin tags, already combined by the caller into tags).
// Tag names follow the ID_MM_PORT_TYPE_* convention used by udev rule
// files (spec.md §6).
func ClassifyPort(isAT bool, tags map[string]string) (mmtypes.PortType, mmtypes.PortFlags) {
	if !isAT {
		return mmtypes.PortTypeUnknown, mmtypes.PortFlagNone
	}
	var flags mmtypes.PortFlags
	if tags["ID_MM_PORT_TYPE_AT_PRIMARY"] == "1" {
		flags |= mmtypes.PortFlagPrimary
	}
	if tags["ID_MM_PORT_TYPE_AT_SECONDARY"] == "1" {
		flags |= mmtypes.PortFlagSecondary
	}
	if tags["ID_MM_PORT_TYPE_AT_PPP"] == "1" {
		flags |= mmtypes.PortFlagPPP
	}
	if tags["ID_MM_PORT_TYPE_GPS_CONTROL"] == "1" {
		flags |= mmtypes.PortFlagGPSControl
	}
	return mmtypes.PortTypeAt, flags
}

// MergeTags combines udev-rule assignments, a probe's own ResultMap of
// string-valued tags, and opaque plugin-level tags (each "name=value")
// into one flat map, later sources overriding earlier ones — the same
// "later SetProperty wins" rule udevrules itself applies.
func MergeTags(udevTags map[string]string, probeTags *result.Map, pluginTags []string) map[string]string {
	out := make(map[string]string, len(udevTags))
	for k, v := range udevTags {
		out[k] = v
	}
	if probeTags != nil {
		for _, k := range probeTags.Keys() {
			if v, err := probeTags.GetString(k); err == nil {
				out[k] = v
			}
		}
	}
	for _, kv := range pluginTags {
		for i := 0; i < len(kv); i++ {
			if kv[i] == '=' {
				out[kv[:i]] = kv[i+1:]
				break
			}
		}
	}
	return out
}
