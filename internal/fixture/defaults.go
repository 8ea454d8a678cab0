package fixture

// DefaultSpecs is the indicator set the fixture generator produces, keyed
// with the generator's file names. The generator imports move and wave but
// never instantiates them, so no fixture files exist for either.
const DefaultSpecs = "ac:5:34:5@ac," +
	"adx:14@adx," +
	"ao:5:34@ao," +
	"atr:14@atr," +
	"bb:20:2@bollingerBands," +
	"cci:20@cci," +
	"chaikin:3:10@chaikin," +
	"crsi:3:2:100@crsi," +
	"dc:20@dc," +
	"ema:14@ema," +
	"ewma:0.1@ewma," +
	"ha@heikenAshi," +
	"lwma:14@lwma," +
	"macd:12:26:9@macd," +
	"pivot:classic@pivot," +
	"psar:0.02:0.2@psar," +
	"rma:14@rma," +
	"roc:10@roc," +
	"rsi:14@rsi," +
	"sma:14@sma," +
	"smma:14@smma," +
	"stoch:14:3:3@stochastic," +
	"stochrsi:14:14:3:3@stochasticRSI," +
	"supertrend:14:3:sma@supertrend," +
	"wema:14@wema," +
	"wma:14@wma," +
	"wws:14@wws"
