/*
Package streaming serves materialized files over HTTP with timeout protection.

Slow or disconnected clients can hold server resources indefinitely when a
large image or video is streamed. ServeFile wraps the response writer so that
every write renews a per-write connection deadline and the request context is
checked between writes. Range and conditional requests are delegated to
http.ServeContent.

# Usage

	func (h *Handlers) GetItemContent(w http.ResponseWriter, r *http.Request) {
		err := streaming.ServeFile(w, r, item.ResolvedPath, item.MimeType, streaming.DefaultConfig())
		if errors.Is(err, streaming.ErrClientGone) {
			return
		}
		...
	}

# Errors

ErrWriteTimeout means a single write took longer than Config.WriteTimeout or
the response outlived Config.MaxDuration. ErrClientGone means the request
context ended first. Both are reported after the fact: headers and part of
the body may already have been sent.

Deadlines need the server's response writer. Middleware wrappers must expose
Unwrap for http.ResponseController to reach it; otherwise the deadline is
silently skipped and only the context check remains.
*/
package streaming
