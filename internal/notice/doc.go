// Package notice classifies the free-text status lines a bot sends in reply
// to a packet request. Classification drives the bot's negotiation state
// (idle, waiting, active) and yields intents for the scheduler and the
// transport to execute; the classifier itself performs no I/O.
package notice
