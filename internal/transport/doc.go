// Package transport connects the daemon to the out-of-process chat client and
// transfer engine. Commands flow out, bot notices flow in, and graph events
// are fanned out to collaborators.
package transport
