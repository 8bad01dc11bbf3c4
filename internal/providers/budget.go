package providers

import (
	"fmt"
	"sync"
	"time"
)

// BudgetGuard caps how many upstream calls each source may make per hour,
// per day, and per month. Clients consume before dialing; an exhausted
// window is a fetch failure like any other and the assembler falls back to
// defaults.
//
// Sources without a registered budget are unmetered.
type BudgetGuard struct {
	mu      sync.Mutex
	windows map[string]*budgetWindow
}

type budgetWindow struct {
	hourlyLimit  int
	hourlyUsed   int
	hourlyReset  time.Time
	dailyLimit   int
	dailyUsed    int
	dailyReset   time.Time
	monthlyLimit int
	monthlyUsed  int
	monthlyReset time.Time
}

// BudgetStatus is the exported utilization view for one source.
type BudgetStatus struct {
	Source             string    `json:"source"`
	HourlyUsed         int       `json:"hourly_used"`
	HourlyLimit        int       `json:"hourly_limit"`
	DailyUsed          int       `json:"daily_used"`
	DailyLimit         int       `json:"daily_limit"`
	MonthlyUsed        int       `json:"monthly_used"`
	MonthlyLimit       int       `json:"monthly_limit"`
	HourlyUtilization  float64   `json:"hourly_utilization"`
	DailyUtilization   float64   `json:"daily_utilization"`
	MonthlyUtilization float64   `json:"monthly_utilization"`
	Remaining          int       `json:"remaining"`
	NextReset          time.Time `json:"next_reset"`
	State              string    `json:"state"` // active, warning, exhausted
}

func NewBudgetGuard() *BudgetGuard {
	return &BudgetGuard{windows: make(map[string]*budgetWindow)}
}

// Register sets the hourly, daily, and monthly call limits for a source. A
// limit of zero or less leaves that window unbounded.
func (bg *BudgetGuard) Register(source string, hourly, daily, monthly int) {
	bg.mu.Lock()
	defer bg.mu.Unlock()
	now := time.Now()
	bg.windows[source] = &budgetWindow{
		hourlyLimit:  hourly,
		hourlyReset:  nextHour(now),
		dailyLimit:   daily,
		dailyReset:   nextDay(now),
		monthlyLimit: monthly,
		monthlyReset: nextMonth(now),
	}
}

// Consume charges calls against the source's windows, rolling expired
// windows first. It returns an error when any window would overflow,
// without consuming.
func (bg *BudgetGuard) Consume(source string, calls int) error {
	bg.mu.Lock()
	defer bg.mu.Unlock()

	w, ok := bg.windows[source]
	if !ok {
		return nil
	}
	w.roll(time.Now())

	if w.hourlyLimit > 0 && w.hourlyUsed+calls > w.hourlyLimit {
		return fmt.Errorf("hourly call budget exhausted for %s: %d/%d", source, w.hourlyUsed, w.hourlyLimit)
	}
	if w.dailyLimit > 0 && w.dailyUsed+calls > w.dailyLimit {
		return fmt.Errorf("daily call budget exhausted for %s: %d/%d", source, w.dailyUsed, w.dailyLimit)
	}
	if w.monthlyLimit > 0 && w.monthlyUsed+calls > w.monthlyLimit {
		return fmt.Errorf("monthly call budget exhausted for %s: %d/%d", source, w.monthlyUsed, w.monthlyLimit)
	}

	w.hourlyUsed += calls
	w.dailyUsed += calls
	w.monthlyUsed += calls
	return nil
}

// Status reports utilization for one source, or nil when unmetered.
func (bg *BudgetGuard) Status(source string) *BudgetStatus {
	bg.mu.Lock()
	defer bg.mu.Unlock()

	w, ok := bg.windows[source]
	if !ok {
		return nil
	}
	w.roll(time.Now())

	hourlyUtil := utilization(w.hourlyUsed, w.hourlyLimit)
	dailyUtil := utilization(w.dailyUsed, w.dailyLimit)
	monthlyUtil := utilization(w.monthlyUsed, w.monthlyLimit)

	state := "active"
	switch {
	case hourlyUtil >= 100 || dailyUtil >= 100 || monthlyUtil >= 100:
		state = "exhausted"
	case hourlyUtil >= 80 || dailyUtil >= 80 || monthlyUtil >= 80:
		state = "warning"
	}

	// Remaining is the tightest bound across the windows that have one.
	remaining := 0
	bounded := false
	for _, win := range [][2]int{
		{w.hourlyUsed, w.hourlyLimit},
		{w.dailyUsed, w.dailyLimit},
		{w.monthlyUsed, w.monthlyLimit},
	} {
		if win[1] <= 0 {
			continue
		}
		if left := win[1] - win[0]; !bounded || left < remaining {
			remaining = left
			bounded = true
		}
	}

	nextReset := w.hourlyReset
	if w.dailyReset.Before(nextReset) {
		nextReset = w.dailyReset
	}
	if w.monthlyReset.Before(nextReset) {
		nextReset = w.monthlyReset
	}

	return &BudgetStatus{
		Source:             source,
		HourlyUsed:         w.hourlyUsed,
		HourlyLimit:        w.hourlyLimit,
		DailyUsed:          w.dailyUsed,
		DailyLimit:         w.dailyLimit,
		MonthlyUsed:        w.monthlyUsed,
		MonthlyLimit:       w.monthlyLimit,
		HourlyUtilization:  hourlyUtil,
		DailyUtilization:   dailyUtil,
		MonthlyUtilization: monthlyUtil,
		Remaining:          remaining,
		NextReset:          nextReset,
		State:              state,
	}
}

// Statuses reports every metered source.
func (bg *BudgetGuard) Statuses() map[string]*BudgetStatus {
	bg.mu.Lock()
	sources := make([]string, 0, len(bg.windows))
	for s := range bg.windows {
		sources = append(sources, s)
	}
	bg.mu.Unlock()

	out := make(map[string]*BudgetStatus, len(sources))
	for _, s := range sources {
		if st := bg.Status(s); st != nil {
			out[s] = st
		}
	}
	return out
}

func (w *budgetWindow) roll(now time.Time) {
	if now.After(w.hourlyReset) {
		w.hourlyUsed = 0
		w.hourlyReset = nextHour(now)
	}
	if now.After(w.dailyReset) {
		w.dailyUsed = 0
		w.dailyReset = nextDay(now)
	}
	if now.After(w.monthlyReset) {
		w.monthlyUsed = 0
		w.monthlyReset = nextMonth(now)
	}
}

func utilization(used, limit int) float64 {
	if limit <= 0 {
		return 0
	}
	return float64(used) / float64(limit) * 100
}

func nextHour(t time.Time) time.Time {
	return t.Truncate(time.Hour).Add(time.Hour)
}

func nextDay(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day+1, 0, 0, 0, 0, t.Location())
}

func nextMonth(t time.Time) time.Time {
	year, month, _ := t.Date()
	return time.Date(year, month+1, 1, 0, 0, 0, 0, t.Location())
}
