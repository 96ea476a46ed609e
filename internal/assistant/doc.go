// Package assistant provides the classifier and reply-drafting adapters,
// backed by the Gemini API.
//
// Classification maps a message's subject and body to an intent analysis.
// Any API or parse error yields a defensive default analysis (intent
// other, sensitive, low confidence) alongside the error, so a single bad
// response cannot abort an inbox pass. Reply drafting is
// deterministic for meeting negotiation and model-generated for everything
// else, with a deterministic fallback when the model is unavailable.
package assistant
