// Package telegram talks to the Telegram Bot API for the primary bot and
// every clone.
//
// Each bot identity gets its own Client and long-polling Bot. A Bot is
// both the instance.Runner driving its update loop and the
// channel.Messenger its handlers reply through. The Factory builds bots
// for the instance supervisor and probes clone tokens with getMe.
//
// The module registers itself as "channel.telegram". It owns the primary
// bot's configuration and publishes the Factory and the primary Bot as
// services; starting and stopping bots is left to the supervisor.
//
// No external Telegram library is used: requests are plain net/http
// and encoding/json.
package telegram
