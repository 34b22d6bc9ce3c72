// Package router implements the command router between the UI and the
// application controller.
//
// The UI sends messages shaped {"command": string, "content": any} on the
// transport channel "message". The router:
//   - Queues inbound payloads and handles them one at a time on a single goroutine
//   - Drops messages that are not objects or carry no command
//   - Looks the command up in a fixed table and calls the matching
//     Controller or ConfigService method
//   - Sends replies back as {"command": string, "content": any} on the same channel
//
// Handler errors are logged and counted; the router never retries a command
// and never reports failures to the UI itself. User-visible errors are the
// controller's job.
package router
