package instruments

// IndexAliases maps common shorthand for NSE indices to their trading symbol.
var IndexAliases = map[string]string{
	"NIFTY":      "NIFTY 50",
	"NIFTY50":    "NIFTY 50",
	"NIFTY-50":   "NIFTY 50",
	"BANKNIFTY":  "NIFTY BANK",
	"BANK NIFTY": "NIFTY BANK",
	"NIFTYBANK":  "NIFTY BANK",
	"FINNIFTY":   "NIFTY FIN SERVICE",
	"SENSEX":     "SENSEX",
}
