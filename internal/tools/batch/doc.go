// Package batch runs one backend operation over a list of email IDs for MCP
// tools that accept either a single ID or an array.
//
// Items are processed in order and every item gets its own Result, so a
// partial failure is reported per ID instead of failing the whole call.
package batch
