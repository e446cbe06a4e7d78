// Package domain defines the core domain types and collaborator interfaces.
//
// No implementation code lives here - just the shared value types flowing
// through the enrichment pipeline and the contracts for external collaborators
// (chat ingestion, emote sources, identity lookup, NLP scoring). Keeping the
// interfaces here prevents circular imports between the session, broadcast,
// and emote packages.
package domain
