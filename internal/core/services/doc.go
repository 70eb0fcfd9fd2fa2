// Package services implements the driving ports: fact extraction, quality
// evaluation, refinement, package orchestration and settings.
//
// Services depend only on domain types and driven ports. The orchestrator
// (PackageService) is the single writer to the metadata store; every other
// service is stateless apart from its configuration.
package services
