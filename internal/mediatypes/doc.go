// Package mediatypes holds the media kind enum, extension and MIME tables,
// and the MIME helpers shared by the resolver, materializer and provider.
//
// It has no dependencies outside the standard library so every other
// package can import it without cycles.
//
// # MIME precedence
//
// Picked items often start with a placeholder MIME type such as "image/*".
// Prefer implements the one rule every stage follows: a concrete type always
// replaces a placeholder, and a placeholder never replaces a concrete type.
//
//	m := mediatypes.Prefer("image/*", "image/png")   // "image/png"
//	m = mediatypes.Prefer(m, "image/*")              // still "image/png"
//
// # Guessing and sniffing
//
// GuessFromPath derives a type from a path or URL extension, Sniff from the
// leading bytes of a stream.
package mediatypes
