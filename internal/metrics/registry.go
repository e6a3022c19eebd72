package metrics

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/aborodya/zipline/internal/ledger"
)

// Default returns the canonical metric set: algorithm and benchmark returns,
// PnL, cash flow, start/end-of-period snapshots of cash, value and exposure,
// and pass-through copies of position and account statistics. Every call
// returns fresh instances since units are stateful.
func Default() []Metric {
	return []Metric{
		NewReturns(),
		NewBenchmarkReturns(),
		NewPNL(),
		NewCashFlow(),

		NewStartOfPeriodLedgerField(ledger.PortfolioPositionsExposure, "starting_exposure"),
		NewDailyLedgerField(ledger.PortfolioPositionsExposure, "ending_exposure"),
		NewStartOfPeriodLedgerField(ledger.PortfolioPositionsValue, "starting_value"),
		NewDailyLedgerField(ledger.PortfolioPositionsValue, "ending_value"),
		NewStartOfPeriodLedgerField(ledger.PortfolioCash, "starting_cash"),
		NewDailyLedgerField(ledger.PortfolioCash, "ending_cash"),
		NewDailyLedgerField(ledger.PortfolioValue, "portfolio_value"),

		NewDailyLedgerField(ledger.LongsCount, "longs_count"),
		NewDailyLedgerField(ledger.ShortsCount, "shorts_count"),
		NewDailyLedgerField(ledger.LongValue, "long_value"),
		NewDailyLedgerField(ledger.ShortValue, "short_value"),
		NewDailyLedgerField(ledger.LongExposure, "long_exposure"),
		NewDailyLedgerField(ledger.ShortExposure, "short_exposure"),
		NewDailyLedgerField(ledger.AccountGrossLeverage, "gross_leverage"),
		NewDailyLedgerField(ledger.AccountNetLeverage, "net_leverage"),
	}
}

// SetFactory produces a fresh metric set. Factories must not share unit
// instances between calls.
type SetFactory func() []Metric

var (
	setsMu sync.RWMutex
	sets   = make(map[string]SetFactory)
)

// RegisterSet makes a named metric set loadable. Registering a name twice is
// an error.
func RegisterSet(name string, factory SetFactory) error {
	setsMu.Lock()
	defer setsMu.Unlock()
	if _, dup := sets[name]; dup {
		return fmt.Errorf("metrics set %q is already registered", name)
	}
	sets[name] = factory
	return nil
}

// MustRegisterSet is RegisterSet that panics on error, for package init.
func MustRegisterSet(name string, factory SetFactory) {
	if err := RegisterSet(name, factory); err != nil {
		panic(err)
	}
}

// UnregisterSet removes a named metric set.
func UnregisterSet(name string) error {
	setsMu.Lock()
	defer setsMu.Unlock()
	if _, ok := sets[name]; !ok {
		return fmt.Errorf("metrics set %q is not registered, options are: %s",
			name, strings.Join(setNamesLocked(), ", "))
	}
	delete(sets, name)
	return nil
}

// LoadSet builds a fresh instance of a named metric set.
func LoadSet(name string) ([]Metric, error) {
	setsMu.RLock()
	factory, ok := sets[name]
	setsMu.RUnlock()
	if !ok {
		setsMu.RLock()
		known := setNamesLocked()
		setsMu.RUnlock()
		return nil, fmt.Errorf("no metrics set registered as %q, options are: %s",
			name, strings.Join(known, ", "))
	}
	return factory(), nil
}

// SetNames returns the registered set names in sorted order.
func SetNames() []string {
	setsMu.RLock()
	defer setsMu.RUnlock()
	return setNamesLocked()
}

func setNamesLocked() []string {
	names := make([]string, 0, len(sets))
	for name := range sets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func init() {
	MustRegisterSet("default", Default)
	MustRegisterSet("none", func() []Metric { return nil })
}
