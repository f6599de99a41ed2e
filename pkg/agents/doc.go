// Package agents implements the decision calls the workflow core depends
// on: the Analyzer (planning), the Supervisor (plan review), and the
// Reporter (result synthesis). Each wraps a language-model provider and
// absorbs its own transport and parse failures per the workflow's error
// policy, so the orchestrator only ever sees well-formed decisions.
package agents
