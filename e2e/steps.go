package e2e

import (
	"github.com/cucumber/godog"

	"safepilgrim/e2e/steps/common"
	"safepilgrim/e2e/steps/digitalid"
)

// RegisterSteps registers all step definitions from modular packages
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	// Register common steps (background, generic requests, assertions)
	common.RegisterSteps(ctx, tc)

	// Register digital ID issuance steps
	digitalid.RegisterSteps(ctx, tc)
}
