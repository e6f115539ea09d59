// Command memctl inspects and maintains a gateway workspace's memory
// database and session logs out-of-process, for operators who need to
// search recall, prune stale learnings, or reset a stuck session without
// going through a running bot.
package main

func main() {
	Execute()
}
