// Package deployment provides pure functions for the deployment lifecycle.
//
// This package contains the functional core logic of the orchestrator: the
// status precedence rule, the undeploy refusal table, job id generation and
// pagination. All functions are free of I/O so they can be tested without a
// registry, cache or executor.
//
// # Functions
//
//   - Reconcile: Pick the authoritative status from registry, cache and default
//   - UndeployRefusal: Explain why a non-live unit can not be undeployed
//   - JobIDGenerator: Produce "{millis}-{counter}" job ids
//   - Paginate: Apply page windows to collected results
//
// # Usage
//
// The imperative shell (internal/shell/orchestrator) gathers the inputs and
// delegates every decision to these functions.
//
//	live, _ := registry.GetDeployedUnit(ctx, id)
//	cached, _ := cache.MostRecent(id.String())
//	status, source := deployment.Reconcile(id, live, cached)
package deployment
