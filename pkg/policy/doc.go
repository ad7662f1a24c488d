// Package policy provides Open Policy Agent (OPA) checks for deployment
// descriptors.
//
// Policies are Rego modules with deny rules under the data.bedrock
// namespace. Every evaluation receives the canonical descriptor document
// as input.config and the evaluation context (environment, operation) as
// input.context.
//
// # Architecture
//
// The policy system consists of three main components:
//
//  1. Engine - Compiles Rego policies and evaluates their deny rules
//  2. Loader - Loads policies from .rego and .json files
//  3. Built-in Policies - Operational checks every descriptor gets
//
// # Usage
//
// Creating a policy engine and checking a descriptor tree:
//
//	engine, err := policy.NewEngine(logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	result, err := engine.EvaluateSpec(ctx, tree)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if !result.Allowed {
//	    for _, violation := range result.Violations {
//	        fmt.Printf("%s: %s\n", violation.Policy, violation.Message)
//	    }
//	}
//
// Loading custom policies:
//
//	err = engine.LoadPolicies(ctx, []string{"/etc/bedrock/policies"})
//
// # Built-in Policies
//
// The following policies are included by default:
//
//  1. dedicated-rpc-pool - Warns when rpc handlers share the progress pool
//  2. xstream-ceiling - Caps the number of declared execution streams
//  3. production-profiling - Blocks profiling/diagnostics in production
//  4. progress-pool-isolation - Keeps providers off the progress pool
//
// # Custom Policies
//
// Custom policies are written in Rego against the canonical document:
//
//	package bedrock.custom
//
//	import rego.v1
//
//	deny contains violation if {
//	    some provider in input.config.providers
//	    provider.provider_id == 0
//	    violation := {
//	        "message": sprintf("provider '%s' uses the reserved id 0", [provider.name]),
//	        "severity": "error",
//	        "target": sprintf("providers/%s", [provider.name]),
//	    }
//	}
//
// # Severity Levels
//
// Violations have four severity levels:
//
//  - info: Informational messages
//  - warning: Issues that should be reviewed but don't block a deployment
//  - error: Issues that block a deployment
//  - critical: Severe issues requiring immediate attention
//
// # Performance
//
// Policies are compiled once and reused for multiple evaluations. The
// engine prepares each policy's deny query with OPA's PreparedEvalQuery.
package policy
