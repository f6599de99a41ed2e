// Package toolexec manages the tool registry and executes individual
// workflow steps against tool bindings.
//
// A binding is either a local handler (in-process tools such as the
// structure library search) or a remote call to an external tool server
// over the MCP JSON-RPC transport. Every invocation is normalized into a
// Result: domain errors reported by the tool and transport failures are
// folded into the same error shape so callers never need to distinguish
// them.
package toolexec
