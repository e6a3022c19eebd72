package ledger

// Field reads one scalar out of a ledger. Metric units resolve their field
// once at construction and call it on every bar, instead of re-parsing an
// attribute path per read.
type Field func(*Ledger) float64

var (
	PortfolioCash              Field = func(l *Ledger) float64 { return l.Portfolio().Cash }
	PortfolioValue             Field = func(l *Ledger) float64 { return l.Portfolio().PortfolioValue }
	PortfolioPositionsValue    Field = func(l *Ledger) float64 { return l.Portfolio().PositionsValue }
	PortfolioPositionsExposure Field = func(l *Ledger) float64 { return l.Portfolio().PositionsExposure }
	PortfolioPNL               Field = func(l *Ledger) float64 { return l.Portfolio().PNL }
	PortfolioReturns           Field = func(l *Ledger) float64 { return l.Portfolio().Returns }
	PortfolioCashFlow          Field = func(l *Ledger) float64 { return l.Portfolio().CashFlow }

	LongsCount    Field = func(l *Ledger) float64 { return float64(l.PositionStats().LongsCount) }
	ShortsCount   Field = func(l *Ledger) float64 { return float64(l.PositionStats().ShortsCount) }
	LongValue     Field = func(l *Ledger) float64 { return l.PositionStats().LongValue }
	ShortValue    Field = func(l *Ledger) float64 { return l.PositionStats().ShortValue }
	LongExposure  Field = func(l *Ledger) float64 { return l.PositionStats().LongExposure }
	ShortExposure Field = func(l *Ledger) float64 { return l.PositionStats().ShortExposure }

	AccountGrossLeverage Field = func(l *Ledger) float64 { return l.Account().GrossLeverage }
	AccountNetLeverage   Field = func(l *Ledger) float64 { return l.Account().NetLeverage }
)
