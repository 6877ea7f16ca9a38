// Package ytdlp embeds platform builds of the yt-dlp binary, extracts the
// right one for the host into a writable cache, and supervises download
// processes spawned from it. The binary itself is an opaque external tool;
// this package only manages its lifecycle and raw output streams.
package ytdlp
