package copilot

import (
	"context"
	"regexp"
	"strconv"
	"strings"
)

var (
	reOrders     = regexp.MustCompile(`(\d+)\s*(?:orders?|sampled)`)
	rePercent    = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(?:%|percent)`)
	reReturnRate = regexp.MustCompile(`return(?:s|\s*rate)?\s*(?:of\s*)?(\d+(?:\.\d+)?)`)
	reDays       = regexp.MustCompile(`(\d+)\s*(?:days?|periods?)`)
	reWeeks      = regexp.MustCompile(`(\d+)\s*weeks?`)
	reVehicles   = regexp.MustCompile(`(\d+)\s*(?:vehicles?|trucks?|vans?)`)
	reCapacity   = regexp.MustCompile(`capacity\s*(?:of\s*)?(\d+)`)
	reDelayRange = regexp.MustCompile(`(?:delay|shipping)[a-z ]*?(\d+)\s*(?:-|to|and)\s*(\d+)`)
	reStock      = regexp.MustCompile(`(?:(\d+)\s*units?(?:\s*of)?\s*(?:initial\s*)?stock|stock\s*(?:of\s*)?(\d+))`)
)

// keywordRules score a query by keyword hits. The highest score wins and
// ties go to the earlier rule.
var keywordRules = []struct {
	op       Operation
	keywords []string
}{
	{OpOptimizeRoute, []string{"route", "vehicle", "truck", "fleet", "dispatch"}},
	{OpSafetyStock, []string{"safety stock", "reorder", "replenish", "inventory", "eoq", "order quantity"}},
	{OpForecastDemand, []string{"forecast", "predict", "projection", "future demand", "next"}},
	{OpSummarizeDataset, []string{"summar", "describe", "overview", "statistics", "dataset", "columns"}},
	{OpRunSimulation, []string{"simulat", "what if", "what happens", "run", "orders", "return"}},
}

// KeywordInterpreter is a deterministic interpreter for when no language
// model is configured.
type KeywordInterpreter struct{}

func (KeywordInterpreter) Interpret(_ context.Context, query string) (*Intent, error) {
	q := strings.ToLower(query)
	intent := &Intent{Source: "keyword"}
	best := 0
	for _, rule := range keywordRules {
		if n := countHits(q, rule.keywords); n > best {
			best = n
			intent.Operation = rule.op
		}
	}
	if best == 0 {
		return nil, unknownIntent(query)
	}

	a := &intent.Args
	switch intent.Operation {
	case OpRunSimulation:
		a.Orders = firstInt(reOrders, q)
		m := rePercent.FindStringSubmatch(q)
		if m == nil {
			m = reReturnRate.FindStringSubmatch(q)
		}
		if m != nil {
			v, _ := strconv.ParseFloat(m[1], 64)
			a.ReturnRatePct = &v
		}
		if m := reDelayRange.FindStringSubmatch(q); m != nil {
			lo, _ := strconv.ParseInt(m[1], 10, 64)
			hi, _ := strconv.ParseInt(m[2], 10, 64)
			a.DelayMinDays, a.DelayMaxDays = &lo, &hi
		}
		if m := reStock.FindStringSubmatch(q); m != nil {
			s := m[1]
			if s == "" {
				s = m[2]
			}
			v, _ := strconv.ParseInt(s, 10, 64)
			a.InitialStock = &v
		}
	case OpForecastDemand:
		a.Periods = firstInt(reDays, q)
		if w := firstInt(reWeeks, q); a.Periods == 0 && w > 0 {
			a.Periods = 7 * w
		}
	case OpOptimizeRoute:
		a.Vehicles = firstInt(reVehicles, q)
		a.VehicleCapacity = int64(firstInt(reCapacity, q))
	}
	return intent, nil
}

func countHits(s string, words []string) int {
	n := 0
	for _, w := range words {
		if strings.Contains(s, w) {
			n++
		}
	}
	return n
}

func firstInt(re *regexp.Regexp, s string) int {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return 0
	}
	v, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return v
}
