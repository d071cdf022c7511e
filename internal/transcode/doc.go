// Package transcode converts an upstream event stream into relay events.
//
// FrameReader splits raw bytes into event-stream frames. Decoder pulls one
// frame at a time, recognizes the "[DONE]" terminal marker, and hands other
// payloads to a Dialect that extracts the text fragment. Memory use is
// bounded by a single frame (MaxFrameBytes) regardless of reply length.
//
// A frame that fails to decode, or a body that ends before the terminal
// marker, yields an *Error; errors.Is(err, ErrTranscode) matches all of them.
// The decoder never guesses content.
package transcode
