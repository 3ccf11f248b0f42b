package policy

import (
	"fmt"
	"strconv"
	"strings"
)

// Unit 是 Cadence 的时间单位。
type Unit int

const (
	Minutes Unit = iota + 1
	Hours
	Days
	Weeks
	Months
	Years
)

var unitSuffixes = map[Unit]string{
	Minutes: "m",
	Hours:   "h",
	Days:    "d",
	Weeks:   "w",
	Months:  "mo",
	Years:   "y",
}

func (u Unit) String() string {
	switch u {
	case Minutes:
		return "minutes"
	case Hours:
		return "hours"
	case Days:
		return "days"
	case Weeks:
		return "weeks"
	case Months:
		return "months"
	case Years:
		return "years"
	default:
		return fmt.Sprintf("unit(%d)", int(u))
	}
}

// Cadence 描述缓存新鲜度窗口，例如 3 天。
type Cadence struct {
	Unit      Unit
	Magnitude uint
}

// Every 是 Cadence{Unit: u, Magnitude: n} 的简写。
func Every(n uint, u Unit) Cadence {
	return Cadence{Unit: u, Magnitude: n}
}

func (c Cadence) String() string {
	suffix, ok := unitSuffixes[c.Unit]
	if !ok {
		return fmt.Sprintf("%d%s", c.Magnitude, c.Unit)
	}
	return strconv.FormatUint(uint64(c.Magnitude), 10) + suffix
}

// ParseCadence 解析 "3d"、"12h"、"2w"、"6mo"、"1y"、"30m" 形式的窗口。
func ParseCadence(raw string) (Cadence, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return Cadence{}, fmt.Errorf("empty cadence")
	}

	idx := strings.IndexFunc(raw, func(r rune) bool { return r < '0' || r > '9' })
	if idx <= 0 {
		return Cadence{}, fmt.Errorf("invalid cadence %q: expected <number><unit>", raw)
	}

	magnitude, err := strconv.ParseUint(raw[:idx], 10, 32)
	if err != nil {
		return Cadence{}, fmt.Errorf("invalid cadence %q: %w", raw, err)
	}

	suffix := raw[idx:]
	for unit, candidate := range unitSuffixes {
		if suffix == candidate {
			return Cadence{Unit: unit, Magnitude: uint(magnitude)}, nil
		}
	}
	return Cadence{}, fmt.Errorf("invalid cadence %q: unknown unit %q (y|mo|w|d|h|m)", raw, suffix)
}
