// Package spec provides the in-memory model of a Bedrock process
// descriptor: the Margo/Mercury/Argobots runtime settings, ABT-IO
// instances, SSG groups, loadable module libraries, providers and
// clients that make up one service process.
//
// A descriptor is built incrementally starting from NewProcSpec and is
// mutated exclusively through the Add/Set operations of its nodes.
// Every mutation is validated immediately: duplicate names, unknown
// pool references, malformed dependency expressions and conflicting
// provider ids are rejected at the call site, so a tree observable
// through the API is always in a valid state. Collections are
// append-only; entries are never removed or renamed, which keeps both
// positional indices and name references stable for the lifetime of
// the tree.
//
// MarshalJSON emits the canonical wire document consumed by the
// Bedrock daemon, and ParseProcSpec is its exact inverse. Pool
// references are written as pool names; when parsing a document
// returned by a running daemon they may also appear as positional
// indices and are resolved back to names.
//
// A tree is owned by a single logical caller. No internal locking is
// performed: concurrent mutation of the same tree is the caller's
// responsibility to avoid. Distinct trees share no state and may be
// used concurrently. ProcSpec and its nodes must not be copied after
// first use.
package spec
