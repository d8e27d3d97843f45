// Package intent turns a transcript into a structured [models.Intent].
//
// The language model is an external collaborator behind [Model]. The extractor owns the instruction sent to it
// and the rules for reading its reply: only the five recognized facets are kept, and anything it cannot read
// degrades to an intent that carries just the transcript.
package intent
