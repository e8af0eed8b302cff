package probe

import (
	"context"

	"github.com/ttymodem/mmcore/atengine"
	"github.com/ttymodem/mmcore/kerneldevice"
	"github.com/ttymodem/mmcore/metrics"
	"github.com/ttymodem/mmcore/mmtypes"
	"github.com/ttymodem/mmcore/udevrules"
)

// ClassifyWithUdev runs schedule against port, same as Run, but first
// evaluates rules against the live properties accessor exposes and
// folds the resulting udev tag assignments into the final
// PortType/PortFlags classification (spec.md §4.5's "port-tag
// propagation": udev-rule assignments, probe-processor Completed{}
// output, and explicit plugin tags are merged together). accessor is
// queried only for the property names rules' MatchConditions actually
// reference, via udevrules.RuleSet.Params.
func ClassifyWithUdev(ctx context.Context, port *atengine.Port, schedule []ScheduleEntry, rules *udevrules.RuleSet, accessor kerneldevice.KernelDeviceAccessor, pluginTags []string, mc *metrics.Collector) (Verdict, mmtypes.PortType, mmtypes.PortFlags, error) {
	var udevTags map[string]string
	if rules != nil && accessor != nil {
		props := kerneldevice.ToPropertyMap(accessor, rules.Params())
		udevTags = rules.Evaluate(props)
	}

	verdict, err := Run(ctx, port, schedule, mc)
	if err != nil {
		return Verdict{}, mmtypes.PortTypeUnknown, mmtypes.PortFlagNone, err
	}

	tags := MergeTags(udevTags, verdict.Tags, pluginTags)
	typ, flags := ClassifyPort(verdict.IsAT, tags)
	return verdict, typ, flags, nil
}
