package policy

import (
	"time"
)

// BuiltinPolicies returns all built-in descriptor policies.
func BuiltinPolicies() []Policy {
	return []Policy{
		dedicatedRPCPoolPolicy(),
		xstreamCeilingPolicy(),
		productionProfilingPolicy(),
		progressPoolIsolationPolicy(),
	}
}

// dedicatedRPCPoolPolicy warns when rpc handlers share the pool that
// drives the mercury progress loop.
func dedicatedRPCPoolPolicy() Policy {
	return Policy{
		Name:        "dedicated-rpc-pool",
		Description: "Warns when the rpc pool is shared with the mercury progress loop",
		Severity:    SeverityWarning,
		Enabled:     true,
		Tags:        []string{"pools", "performance"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package bedrock.pools

import rego.v1

# RPC handlers on the progress pool delay network progress
deny contains violation if {
	margo := input.config.margo
	margo.rpc_pool == margo.progress_pool
	violation := {
		"message": sprintf("rpc pool '%s' is shared with the mercury progress loop", [margo.rpc_pool]),
		"severity": "warning",
		"target": "margo/rpc_pool",
	}
}`,
	}
}

// xstreamCeilingPolicy caps the number of execution streams a
// descriptor may declare.
func xstreamCeilingPolicy() Policy {
	return Policy{
		Name:        "xstream-ceiling",
		Description: "Caps the number of execution streams a descriptor may declare",
		Severity:    SeverityError,
		Enabled:     true,
		Tags:        []string{"xstreams", "resources"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package bedrock.xstreams

import rego.v1

# Each xstream maps to an OS thread
max_xstreams := 64

deny contains violation if {
	streams := input.config.margo.argobots.xstreams
	count(streams) > max_xstreams
	violation := {
		"message": sprintf("descriptor declares %d xstreams, exceeding the ceiling of %d", [count(streams), max_xstreams]),
		"severity": "error",
		"target": "margo/argobots/xstreams",
	}
}`,
	}
}

// productionProfilingPolicy blocks profiling and diagnostics in
// production deployments.
func productionProfilingPolicy() Policy {
	return Policy{
		Name:        "production-profiling",
		Description: "Blocks margo profiling and diagnostics in production deployments",
		Severity:    SeverityError,
		Enabled:     true,
		Tags:        []string{"profiling", "production"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package bedrock.profiling

import rego.v1

deny contains violation if {
	input.context.environment == "production"
	input.config.margo.enable_profiling == true
	violation := {
		"message": "argobots profiling must not be enabled in production",
		"severity": "error",
		"target": "margo/enable_profiling",
	}
}

deny contains violation if {
	input.context.environment == "production"
	input.config.margo.enable_diagnostics == true
	violation := {
		"message": "margo diagnostics must not be enabled in production",
		"severity": "error",
		"target": "margo/enable_diagnostics",
	}
}`,
	}
}

// progressPoolIsolationPolicy blocks providers from running rpc
// handlers on the progress pool.
func progressPoolIsolationPolicy() Policy {
	return Policy{
		Name:        "progress-pool-isolation",
		Description: "Blocks providers from running rpc handlers on the progress pool",
		Severity:    SeverityError,
		Enabled:     true,
		Tags:        []string{"pools", "providers"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package bedrock.providers

import rego.v1

deny contains violation if {
	progress := input.config.margo.progress_pool
	some provider in input.config.providers
	provider.pool == progress
	violation := {
		"message": sprintf("provider '%s' runs rpc handlers on the progress pool '%s'", [provider.name, progress]),
		"severity": "error",
		"target": sprintf("providers/%s", [provider.name]),
	}
}`,
	}
}
