// Package llm defines provider-neutral chat and tool-calling types. Provider
// clients live in sub-packages; the reasoning loop only sees Client.
package llm
