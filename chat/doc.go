// Package chat provides retrieval-grounded conversation over ingested
// tax documents.
//
// A Session holds a bounded conversation history and answers each user
// message by retrieving relevant chunks, assembling a source-attributed
// context, and asking the generator for a completion. Sessions are safe
// for concurrent use.
package chat
