package ledger

import "time"

// Portfolio is the running snapshot of simulated holdings and performance.
// Returns and PNL are cumulative since the start of the simulation.
type Portfolio struct {
	CashFlow          float64
	StartingCash      float64
	PortfolioValue    float64
	PNL               float64
	Returns           float64
	Cash              float64
	PositionsValue    float64
	PositionsExposure float64
	StartDate         time.Time
}

// Account is the brokerage-style view derived from the portfolio each time
// it is recomputed. Leverage fields are positive infinity and Cushion is NaN
// while the portfolio value is zero.
type Account struct {
	SettledCash            float64
	AccruedInterest        float64
	BuyingPower            float64
	EquityWithLoan         float64
	TotalPositionsValue    float64
	TotalPositionsExposure float64
	RegTEquity             float64
	RegTMargin             float64
	InitialMarginReq       float64
	MaintenanceMarginReq   float64
	AvailableFunds         float64
	ExcessLiquidity        float64
	Cushion                float64
	DayTradesRemaining     float64
	Leverage               float64
	NetLeverage            float64
	GrossLeverage          float64
	NetLiquidation         float64
}
