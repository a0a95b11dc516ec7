// Package timeline enumerates the monthly period axis every reference array
// is indexed against, and derives the handful of calendar constants formulas
// can reference as T.*.
package timeline

// Timeline is the monthly period axis for a model run: Year[t]/Month[t] give
// the calendar year/month of period t, for t in [0, Periods()).
type Timeline struct {
	Year  []int
	Month []int
}

// Config is the start/end of the monthly axis, inclusive on both ends.
type Config struct {
	StartYear, StartMonth int
	EndYear, EndMonth     int
}

// Build enumerates the monthly periods from (startYear, startMonth) to
// (endYear, endMonth) inclusive, carrying month overflow into the year.
func Build(cfg Config) Timeline {
	var years, months []int
	y, m := cfg.StartYear, cfg.StartMonth
	for y < cfg.EndYear || (y == cfg.EndYear && m <= cfg.EndMonth) {
		years = append(years, y)
		months = append(months, m)
		m++
		if m > 12 {
			m = 1
			y++
		}
	}
	return Timeline{Year: years, Month: months}
}

// Periods returns P, the total monthly period count.
func (t Timeline) Periods() int {
	return len(t.Year)
}

// IsLeap applies the Gregorian leap-year rule.
func IsLeap(year int) bool {
	return (year%4 == 0 && year%100 != 0) || year%400 == 0
}

// DaysInMonth returns the calendar day count of (year, month).
func DaysInMonth(year, month int) int {
	switch month {
	case 1, 3, 5, 7, 8, 10, 12:
		return 31
	case 4, 6, 9, 11:
		return 30
	default:
		if IsLeap(year) {
			return 29
		}
		return 28
	}
}

// DaysInYear returns 365 or 366.
func DaysInYear(year int) int {
	if IsLeap(year) {
		return 366
	}
	return 365
}

// Constants builds the T.* calendar-derived reference arrays: days/hours in
// month/year/quarter, quarter/calendar-year/fiscal-year-end flags, and the
// broadcast scalars MiY/QiY/HiD/MiQ.
func (t Timeline) Constants() map[string][]float64 {
	p := t.Periods()
	dim := make([]float64, p)
	diy := make([]float64, p)
	him := make([]float64, p)
	hiy := make([]float64, p)
	diq := make([]float64, p)
	qe := make([]float64, p)
	cye := make([]float64, p)
	fye := make([]float64, p)
	miy := make([]float64, p)
	qiy := make([]float64, p)
	hid := make([]float64, p)
	miq := make([]float64, p)

	for i := 0; i < p; i++ {
		y, m := t.Year[i], t.Month[i]
		d := DaysInMonth(y, m)
		dim[i] = float64(d)
		dy := DaysInYear(y)
		diy[i] = float64(dy)
		him[i] = float64(d * 24)
		hiy[i] = float64(dy * 24)

		q := (m - 1) / 3
		firstMonthOfQuarter := q*3 + 1
		quarterDays := 0
		for k := 0; k < 3; k++ {
			quarterDays += DaysInMonth(y, firstMonthOfQuarter+k)
		}
		diq[i] = float64(quarterDays)

		if m == 3 || m == 6 || m == 9 || m == 12 {
			qe[i] = 1
		}
		if m == 12 {
			cye[i] = 1
		}
		if m == 6 {
			fye[i] = 1
		}
		miy[i] = 12
		qiy[i] = 4
		hid[i] = 24
		miq[i] = 3
	}

	return map[string][]float64{
		"T.DiM": dim,
		"T.DiY": diy,
		"T.HiM": him,
		"T.HiY": hiy,
		"T.DiQ": diq,
		"T.QE":  qe,
		"T.CYE": cye,
		"T.FYE": fye,
		"T.MiY": miy,
		"T.QiY": qiy,
		"T.HiD": hid,
		"T.MiQ": miq,
	}
}
