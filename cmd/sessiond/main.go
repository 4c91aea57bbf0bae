// Command sessiond runs a session-aware HTTP node of a clustered
// deployment and offers maintenance commands for the session store.
package main

func main() {
	Execute()
}
