/*
Package provider is a SQLite-backed content provider. It serves the three
capabilities the resolver consumes: single-row column queries, document URI
decomposition and byte streams.

# Collections

Every registered file is a row in one of four collections, addressed by
MediaStore-style URIs:

	content://media/external/images/media/<id>
	content://media/external/video/media/<id>
	content://media/external/audio/media/<id>
	content://downloads/public_downloads/<id>

Document URIs of the downloads and media document authorities resolve to
the same rows but never expose the data column, so the resolver has to
decompose them.

# Grants

A grant maps any other content URI (a gallery or vendor authority) onto a
row. ExposeData=false models providers whose data column is unusable: the
URI still opens as a stream. Revoking a grant makes its URI unreadable.

# Indexer

The Indexer walks a directory and keeps the collections in sync with it.
*/
package provider
