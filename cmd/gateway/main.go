// Command gateway runs the orchestrator: the room broker, smart router,
// per-bot agent loops, memory store, and the channel adapters that feed
// them, all wired together by bootstrap.go.
package main

func main() {
	Execute()
}
