// Package service deploys descriptors and drives running daemons.
//
// # Overview
//
// A daemon is started from a serialized descriptor and then controlled over
// a newline-delimited JSON protocol on its stdin and stdout (see the
// protocol subpackage). This package provides:
//
//   - Deployer: starts a daemon from a spec.ProcSpec and hands back a
//     ServiceHandle (LocalDeployer for child processes, the transports
//     packages for remote hosts)
//   - ServiceHandle: the request/response client for one running daemon
//   - StartPlan: a provider start order derived from the descriptor's
//     dependency graph
//   - Bootstrap: replays modules, groups, instances, providers and clients
//     onto a running daemon in dependency order
//
// # Example Usage
//
//	tree, err := spec.NewProcSpec("na+sm")
//	// ... populate the descriptor ...
//
//	deployer := service.NewLocalDeployer(&service.LocalDeployerConfig{Logger: logger})
//	handle, err := deployer.Deploy(ctx, tree)
//	if err != nil {
//	    return err
//	}
//	defer handle.Close()
//
//	current, err := handle.GetConfig(ctx)
//
// # Thread Safety
//
// A ServiceHandle serializes requests internally; the underlying protocol
// is strictly one request at a time. Deployers are stateless and safe for
// concurrent use.
package service
