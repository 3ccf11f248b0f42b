package policy

import (
	"math"
	"time"
)

// IsExpired 判断 fileTime 是否早于 now 回退一个 cadence 后的边界。
// 恰好落在边界上的文件仍视为新鲜；Magnitude 为 0 时只要时间有流逝即过期。
func IsExpired(fileTime, now time.Time, c Cadence) bool {
	return fileTime.Before(Boundary(now, c))
}

// Boundary 返回 now 向前回退 cadence 后的时间点。年/月/周/日按日历计算。
func Boundary(now time.Time, c Cadence) time.Time {
	n := int(c.Magnitude)
	switch c.Unit {
	case Years:
		return now.AddDate(-n, 0, 0)
	case Months:
		return now.AddDate(0, -n, 0)
	case Weeks:
		return now.AddDate(0, 0, -n*7)
	case Days:
		return now.AddDate(0, 0, -n)
	case Hours:
		return back(now, n, time.Hour)
	case Minutes:
		return back(now, n, time.Minute)
	default:
		return now
	}
}

// back 返回 now 之前 n 个 unit 的时间点；超出 time.Duration 表示范围时返回零值时间，
// 此时任何文件都不会过期。
func back(now time.Time, n int, unit time.Duration) time.Time {
	if int64(n) > math.MaxInt64/int64(unit) {
		return time.Time{}
	}
	return now.Add(-time.Duration(n) * unit)
}
