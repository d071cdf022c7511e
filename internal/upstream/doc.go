// Package upstream opens streaming completions against an inference service.
//
// A Client submits the full conversation and returns an Opened value: either
// a *StreamOpened holding the raw, undecoded event stream, or a *NotStreaming
// describing what came back instead. Decoding belongs to package transcode;
// the StreamOpened value carries the Dialect that matches its provider.
//
// Two providers are supported: Workers AI (the default) and any
// OpenAI-compatible /chat/completions endpoint.
package upstream
