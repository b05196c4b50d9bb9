package detection

import (
	"time"

	"github.com/alanyoungcy/arbwatch/internal/classify"
	"github.com/alanyoungcy/arbwatch/internal/domain"
	"github.com/alanyoungcy/arbwatch/internal/fees"
	"github.com/alanyoungcy/arbwatch/internal/lifecycle"
	"github.com/alanyoungcy/arbwatch/internal/spread"
)

// leg is what a run managed to load for one market.
type leg struct {
	market    domain.Market
	hasMarket bool
	snapshot  domain.PriceSnapshot
	hasQuote  bool
}

func (l leg) closed(now time.Time) bool {
	return l.hasMarket && !l.market.Tradable(now)
}

func (l leg) quote() spread.Quote {
	return spread.Quote{Platform: l.market.Platform, MarketID: l.market.ID, Snapshot: l.snapshot}
}

// evaluator turns loaded legs into lifecycle observations. It holds the fee
// schedule of one run.
type evaluator struct {
	calc       *spread.Calculator
	thresholds classify.Thresholds
	fees       fees.FeeConfig
}

func (e evaluator) underround(marketID string, l leg, now time.Time) (lifecycle.Observation, error) {
	key := domain.OpportunityKey{Type: domain.OpportunityUnderround, SubjectID: marketID}
	switch {
	case l.closed(now):
		return lifecycle.Observation{Key: key, Outcome: lifecycle.OutcomeMarketClosed}, nil
	case !l.hasMarket || !l.hasQuote:
		return lifecycle.Observation{Key: key, Outcome: lifecycle.OutcomeMissing}, nil
	}

	s, ok := e.calc.Underround(l.quote())
	if !ok {
		return lifecycle.Observation{Key: key, Outcome: lifecycle.OutcomeNoSpread}, nil
	}
	return e.observe(key, s)
}

func (e evaluator) crossPlatform(pair domain.MarketPair, a, b leg, now time.Time) (lifecycle.Observation, error) {
	key := domain.OpportunityKey{Type: domain.OpportunityCrossPlatform, SubjectID: pair.ID}
	switch {
	case a.closed(now) || b.closed(now):
		return lifecycle.Observation{Key: key, Outcome: lifecycle.OutcomeMarketClosed}, nil
	case !a.hasMarket || !a.hasQuote || !b.hasMarket || !b.hasQuote:
		return lifecycle.Observation{Key: key, Outcome: lifecycle.OutcomeMissing}, nil
	}

	s, ok := e.calc.CrossPlatform(a.quote(), b.quote())
	if !ok {
		return lifecycle.Observation{Key: key, Outcome: lifecycle.OutcomeNoSpread}, nil
	}
	return e.observe(key, s)
}

// observe nets and classifies a gross spread. A missing fee schedule is
// returned as an error so the caller can skip the key for this cycle.
func (e evaluator) observe(key domain.OpportunityKey, s spread.Spread) (lifecycle.Observation, error) {
	feeLegs := make([]fees.Leg, len(s.Legs))
	details := domain.OpportunityDetails{Direction: s.Direction, Legs: make([]domain.OpportunityLeg, len(s.Legs))}
	for i, l := range s.Legs {
		feeLegs[i] = fees.Leg{Platform: l.Platform, Price: l.Ask}
		details.Legs[i] = domain.OpportunityLeg{
			Platform:     l.Platform,
			MarketID:     l.MarketID,
			Side:         string(l.Side),
			AskPrice:     l.Ask,
			LiquidityUSD: l.LiquidityUSD,
		}
	}

	res, err := e.fees.Net(s.GrossPct, feeLegs)
	if err != nil {
		return lifecycle.Observation{Key: key, Outcome: lifecycle.OutcomeMissing}, err
	}

	deployable := e.calc.Deployable(s.Legs)
	quality := e.thresholds.Classify(res.NetSpreadPct, deployable)
	if quality == domain.QualityNone {
		return lifecycle.Observation{Key: key, Outcome: lifecycle.OutcomeNoSpread}, nil
	}

	return lifecycle.Observation{
		Key:     key,
		Outcome: lifecycle.OutcomeSpread,
		Candidate: domain.ArbOpportunity{
			Type:                  key.Type,
			SubjectID:             key.SubjectID,
			Quality:               quality,
			GrossSpreadPct:        s.GrossPct,
			TotalFeesPct:          res.TotalFeesPct,
			NetSpreadPct:          res.NetSpreadPct,
			MaxDeployableUSD:      deployable,
			CapitalWeightedSpread: e.calc.CapitalWeighted(res.NetSpreadPct, deployable),
			Details:               details,
		},
	}, nil
}
