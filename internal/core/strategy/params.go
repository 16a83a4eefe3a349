package strategy

// Params tunes the bar-close EMA crossover.
type Params struct {
	Symbol string

	FastPeriod int
	SlowPeriod int

	// A bar is a volume spike when its volume exceeds VolumeMultiplier times
	// the mean of the last VolumeWindow bars. The mean reads 0 until
	// VolumeMinBars bars are in.
	VolumeWindow     int
	VolumeMinBars    int
	VolumeMultiplier float64

	TradeSizePct    float64 // fraction of equity committed per entry
	RiskPerTradePct float64 // stop distance as a fraction of entry
	RewardRatio     float64 // target distance in stop distances
	MaxDailyLossPct float64 // realized day loss, as a fraction of equity, that halts entries
	MinEquity       float64
}

func DefaultParams(symbol string) Params {
	return Params{
		Symbol:           symbol,
		FastPeriod:       5,
		SlowPeriod:       13,
		VolumeWindow:     30,
		VolumeMinBars:    5,
		VolumeMultiplier: 3.0,
		TradeSizePct:     0.005,
		RiskPerTradePct:  0.005,
		RewardRatio:      1.8,
		MaxDailyLossPct:  0.02,
		MinEquity:        100,
	}
}

// warmup is the number of bars needed before signals are taken.
func (p Params) warmup() int {
	return p.SlowPeriod + 5
}
