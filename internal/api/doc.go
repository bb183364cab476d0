// Package api exposes the agent over REST: the action catalog and tool
// listings, synchronous action calls, background tasks and the chat loop.
// Routes under /api/v1 can be guarded by static bearer tokens.
package api
