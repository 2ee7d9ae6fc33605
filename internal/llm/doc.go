// Package llm contains adapters for invoking large language models as the
// treasury's decision engine. It abstracts away provider-specific APIs and
// normalizes the request/response lifecycle into a small Decide/Explain
// contract consumed by the cycle orchestrator and the chat endpoint.
package llm
