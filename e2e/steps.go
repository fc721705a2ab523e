package e2e

import (
	"github.com/cucumber/godog"

	"taproom/e2e/steps/beers"
	"taproom/e2e/steps/common"
)

// RegisterSteps registers all step definitions from modular packages
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	// Register common steps (requests, status and body assertions)
	common.RegisterSteps(ctx, tc)

	// Register beer collection and realtime steps
	beers.RegisterSteps(ctx, tc)
}
