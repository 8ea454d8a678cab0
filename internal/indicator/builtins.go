package indicator

// builtin is one registry entry: a factory and every name it answers to.
type builtin struct {
	names   []string
	factory Factory
}

var builtins = []builtin{
	{[]string{"sma"}, func(a *Args) (Indicator, error) {
		return NewSMA(a.Int(0, "period", 14))
	}},
	{[]string{"ema"}, func(a *Args) (Indicator, error) {
		return NewEMA(a.Int(0, "period", 14))
	}},
	{[]string{"smma", "rma", "wema"}, func(a *Args) (Indicator, error) {
		return NewSMMA(a.Int(0, "period", 14))
	}},
	{[]string{"wma", "lwma"}, func(a *Args) (Indicator, error) {
		return NewWMA(a.Int(0, "period", 14))
	}},
	{[]string{"ewma"}, func(a *Args) (Indicator, error) {
		return NewEWMA(a.Float(0, "alpha", 0.1))
	}},
	{[]string{"wws"}, func(a *Args) (Indicator, error) {
		return NewWWS(a.Int(0, "period", 14))
	}},
	{[]string{"rsi"}, func(a *Args) (Indicator, error) {
		return NewRSI(a.Int(0, "period", 14))
	}},
	{[]string{"crsi"}, func(a *Args) (Indicator, error) {
		return NewConnorsRSI(a.Int(0, "rsi", 3), a.Int(1, "streak", 2), a.Int(2, "rank", 100))
	}},
	{[]string{"roc"}, func(a *Args) (Indicator, error) {
		return NewROC(a.Int(0, "period", 10))
	}},
	{[]string{"macd"}, func(a *Args) (Indicator, error) {
		return NewMACD(a.Int(0, "fast", 12), a.Int(1, "slow", 26), a.Int(2, "signal", 9))
	}},
	{[]string{"bb", "bollinger"}, func(a *Args) (Indicator, error) {
		return NewBollinger(a.Int(0, "period", 20), a.Float(1, "k", 2))
	}},
	{[]string{"atr"}, func(a *Args) (Indicator, error) {
		return NewATR(a.Int(0, "period", 14))
	}},
	{[]string{"adx"}, func(a *Args) (Indicator, error) {
		return NewADX(a.Int(0, "period", 14))
	}},
	{[]string{"psar"}, func(a *Args) (Indicator, error) {
		return NewPSAR(a.Float(0, "step", 0.02), a.Float(1, "max", 0.2))
	}},
	{[]string{"stochastic", "stoch"}, func(a *Args) (Indicator, error) {
		return NewStochastic(a.Int(0, "period", 14), a.Int(1, "k", 3), a.Int(2, "d", 3))
	}},
	{[]string{"stochrsi"}, func(a *Args) (Indicator, error) {
		return NewStochRSI(a.Int(0, "rsi", 14), a.Int(1, "stoch", 14), a.Int(2, "k", 3), a.Int(3, "d", 3))
	}},
	{[]string{"supertrend"}, func(a *Args) (Indicator, error) {
		period := a.Int(0, "period", 14)
		mult := a.Float(1, "multiplier", 3)
		raw := a.String(2, "smoothing", string(SmoothSMA))
		smoothing, ok := ParseSmoothing(raw)
		if !ok {
			smoothing = Smoothing(raw)
		}
		return NewSuperTrend(period, mult, smoothing)
	}},
	{[]string{"heikenashi", "ha"}, func(a *Args) (Indicator, error) {
		return NewHeikenAshi(), nil
	}},
	{[]string{"pivot"}, func(a *Args) (Indicator, error) {
		return NewPivot(a.String(0, "mode", string(PivotClassic)))
	}},
	{[]string{"donchian", "dc"}, func(a *Args) (Indicator, error) {
		return NewDonchian(a.Int(0, "period", 20))
	}},
	{[]string{"cci"}, func(a *Args) (Indicator, error) {
		return NewCCI(a.Int(0, "period", 20))
	}},
	{[]string{"chaikin"}, func(a *Args) (Indicator, error) {
		return NewChaikin(a.Int(0, "fast", 3), a.Int(1, "slow", 10))
	}},
	{[]string{"chop"}, func(a *Args) (Indicator, error) {
		return NewChoppiness(a.Int(0, "period", 14))
	}},
	{[]string{"ao"}, func(a *Args) (Indicator, error) {
		return NewAwesome(a.Int(0, "fast", 5), a.Int(1, "slow", 34))
	}},
	{[]string{"ac"}, func(a *Args) (Indicator, error) {
		return NewAccelerator(a.Int(0, "fast", 5), a.Int(1, "slow", 34), a.Int(2, "signal", 5))
	}},
	{[]string{"aroon"}, func(a *Args) (Indicator, error) {
		return NewAroon(a.Int(0, "period", 25))
	}},
}
