package atport

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ttymodem/mmcore/atengine"
	"github.com/ttymodem/mmcore/clockfmt"
	"github.com/ttymodem/mmcore/mmerr"
	"github.com/ttymodem/mmcore/result"
)

// ClockResultKey is the result.Map key ReadClock populates with the
// modem's network clock, rendered through clockfmt.Format.
const ClockResultKey = "clock"

// ReadClock sends "AT+CCLK?" and parses the 3GPP TS 27.007 §8.15
// response ("+CCLK: "yy/MM/dd,hh:mm:ss±zz"") into a result.Map holding
// the reading as clockfmt's canonical ISO-8601 string under
// ClockResultKey, satisfying spec.md §8's ISO-8601 round-trip property
// for an actual modem-clock read rather than only clockfmt's own tests.
func (p *Port) ReadClock(ctx context.Context, timeout time.Duration) (*result.Map, error) {
	payload, err := p.CommandFull(ctx, "AT+CCLK?", timeout, atengine.SendOptions{})
	if err != nil {
		return nil, err
	}
	t, err := parseCCLK(payload)
	if err != nil {
		return nil, err
	}
	m := result.New()
	if err := m.AddString(ClockResultKey, clockfmt.Format(t)); err != nil {
		return nil, err
	}
	return m, nil
}

// parseCCLK parses "+CCLK: "yy/MM/dd,hh:mm:ss±zz"", where zz is a
// signed quarter-hour UTC offset, per 3GPP TS 27.007 §8.15.
func parseCCLK(payload string) (time.Time, error) {
	line := payload
	if idx := strings.Index(line, "+CCLK:"); idx >= 0 {
		line = line[idx+len("+CCLK:"):]
	}
	line = strings.Trim(strings.TrimSpace(line), `"`)

	datePart, timePart, ok := strings.Cut(line, ",")
	if !ok {
		return time.Time{}, mmerr.New(mmerr.SerialParseFailed, "malformed +CCLK response: "+payload)
	}

	dateFields := strings.Split(datePart, "/")
	if len(dateFields) != 3 {
		return time.Time{}, mmerr.New(mmerr.SerialParseFailed, "malformed +CCLK date: "+payload)
	}

	sign := 1
	clock := timePart
	quarters := 0
	if zoneIdx := strings.IndexAny(timePart, "+-"); zoneIdx >= 0 {
		clock = timePart[:zoneIdx]
		if timePart[zoneIdx] == '-' {
			sign = -1
		}
		q, err := strconv.Atoi(timePart[zoneIdx+1:])
		if err != nil {
			return time.Time{}, mmerr.New(mmerr.SerialParseFailed, "malformed +CCLK zone: "+payload)
		}
		quarters = q
	}
	timeFields := strings.Split(clock, ":")
	if len(timeFields) != 3 {
		return time.Time{}, mmerr.New(mmerr.SerialParseFailed, "malformed +CCLK time: "+payload)
	}

	fields := make([]int, 0, 6)
	for _, s := range append(append([]string{}, dateFields...), timeFields...) {
		n, err := strconv.Atoi(s)
		if err != nil {
			return time.Time{}, mmerr.New(mmerr.SerialParseFailed, "malformed +CCLK fields: "+payload)
		}
		fields = append(fields, n)
	}
	year, month, day, hour, minute, second := fields[0], fields[1], fields[2], fields[3], fields[4], fields[5]
	if year < 100 {
		year += 2000
	}
	if month < 1 || month > 12 || day < 1 || day > 31 || hour < 0 || hour > 23 || minute < 0 || minute > 59 || second < 0 || second > 59 {
		return time.Time{}, mmerr.New(mmerr.SerialParseFailed, "out-of-range +CCLK fields: "+payload)
	}

	offset := sign * quarters * 15 * 60
	loc := time.FixedZone(fmt.Sprintf("UTC%+03d:%02d", offset/3600, (offset%3600)/60), offset)
	return time.Date(year, time.Month(month), day, hour, minute, second, 0, loc), nil
}
