package advisor

import "regexp"

// The advisory reply is free text; the only contract is a literal marker
// somewhere in it. Parsing is isolated here so the brittle text boundary has
// exactly one home, and an unparseable reply always maps to the conservative
// outcome (no buy / hold), never to an action.

// BuySignal is the tagged result of parsing a buy-mode reply.
type BuySignal int

const (
	BuyNo BuySignal = iota
	BuyYes
	BuyUnparseable
)

// SellSignal is the tagged result of parsing a sell-mode reply.
type SellSignal int

const (
	SellHold SellSignal = iota
	SellSell
	SellUnparseable
)

var (
	buySignalRe = regexp.MustCompile(`Buy Signal:\s*\[?(Yes|No)\]?`)
	sellRecRe   = regexp.MustCompile(`Recommendation:\s*\[?(SELL|HOLD)\]?`)
)

// ParseBuySignal scans the reply for the `Buy Signal: Yes|No` marker,
// tolerating surrounding prose.
func ParseBuySignal(reply string) BuySignal {
	m := buySignalRe.FindStringSubmatch(reply)
	if m == nil {
		return BuyUnparseable
	}
	if m[1] == "Yes" {
		return BuyYes
	}
	return BuyNo
}

// ParseSellRecommendation scans the reply for the `Recommendation: SELL|HOLD`
// marker, tolerating surrounding prose.
func ParseSellRecommendation(reply string) SellSignal {
	m := sellRecRe.FindStringSubmatch(reply)
	if m == nil {
		return SellUnparseable
	}
	if m[1] == "SELL" {
		return SellSell
	}
	return SellHold
}
