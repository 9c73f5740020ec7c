package main

import (
	"fmt"
	"os"

	"github.com/GoPolymarket/levergate/internal/config"
	"github.com/GoPolymarket/levergate/internal/leverage"
	"github.com/GoPolymarket/levergate/internal/service"
	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"
)

// inspector validates the loaded config and prints the path the engine would
// walk from a given leverage ratio back toward target, one rebalance per step.
// "inspector sign" prints signed auth headers for a keeper call instead.
func main() {
	if len(os.Args) > 1 && os.Args[1] == "sign" {
		runSign(os.Args[2:])
		return
	}

	current := pflag.String("leverage", "", "current leverage ratio to project from (default: max leverage ratio)")
	collateral := pflag.String("collateral", "1", "collateral units per position token")
	steps := pflag.Int("steps", 10, "number of rebalances to project")
	pflag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fail("load config", err)
	}

	strategy, err := cfg.StrategySettings()
	if err != nil {
		fail("strategy", err)
	}
	if err := service.ValidateStrategy(strategy); err != nil {
		fail("strategy", err)
	}
	settings, err := cfg.Settings()
	if err != nil {
		fail("settings", err)
	}
	if err := service.ValidateSettings(settings); err != nil {
		fail("settings", err)
	}
	exchanges, err := cfg.ExchangeSettings()
	if err != nil {
		fail("exchanges", err)
	}
	for _, ex := range exchanges {
		if err := service.ValidateExchange(ex.Name, ex.Settings); err != nil {
			fail("exchanges", err)
		}
	}

	m := settings.Methodology
	fmt.Println("--- Config OK ---")
	fmt.Printf("Feeds:        %s / %s\n", strategy.CollateralFeed, strategy.BorrowFeed)
	fmt.Printf("Band:         %s <= %s <= %s (incentivized %s)\n",
		m.MinLeverageRatio, m.TargetLeverageRatio, m.MaxLeverageRatio, settings.Incentive.IncentivizedLeverageRatio)
	fmt.Printf("Speed:        %s every %s\n", m.RecenteringSpeed, m.RebalanceInterval)
	fmt.Printf("TWAP:         cooldown %s, incentivized %s\n",
		settings.Execution.TwapCooldownPeriod, settings.Incentive.IncentivizedTwapCooldownPeriod)
	for _, ex := range exchanges {
		fmt.Printf("Exchange:     %-12s max %s, incentivized max %s\n",
			ex.Name, ex.Settings.TwapMaxTradeSize, ex.Settings.IncentivizedTwapMaxTradeSize)
	}

	ratio := m.MaxLeverageRatio
	if *current != "" {
		if ratio, err = decimal.NewFromString(*current); err != nil {
			fail("--leverage", err)
		}
	}
	units, err := decimal.NewFromString(*collateral)
	if err != nil {
		fail("--collateral", err)
	}

	fmt.Println("\n--- Recentering Path ---")
	fmt.Printf("%-5s %-24s %-24s %s\n", "step", "leverage", "next", "notional")
	for i := 1; i <= *steps; i++ {
		next := leverage.NewLeverageRatio(ratio, m.TargetLeverageRatio, m.MinLeverageRatio, m.MaxLeverageRatio, m.RecenteringSpeed)
		notional, err := leverage.TotalRebalanceNotional(ratio, next, units)
		if err != nil {
			fail("projection", err)
		}
		fmt.Printf("%-5d %-24s %-24s %s\n", i, ratio.StringFixed(8), next.StringFixed(8), notional.StringFixed(8))
		if next.Equal(ratio) {
			break
		}
		// collateral scales with the ratio at constant equity
		units = leverage.DivDown(leverage.MulDown(units, next), ratio)
		ratio = next
	}
}

func fail(what string, err error) {
	fmt.Fprintf(os.Stderr, "%s: %v\n", what, err)
	os.Exit(1)
}
