// Package broadcast provides type-safe, non-blocking in-process fan-out.
//
// The session package uses it as the replication bus of MemoryCluster:
// every node subscribes once and receives every cache mutation.
//
//	b := broadcast.NewMemoryBroadcaster[string](64)
//	defer b.Close()
//
//	sub := b.Subscribe(ctx)
//	_ = b.Broadcast(ctx, broadcast.Message[string]{Data: "hello"})
//
//	for msg := range sub.Receive(ctx) {
//		fmt.Println(msg.Data)
//	}
//
// Subscriptions end when their context is done, when Close is called on
// them or when the broadcaster is closed. A subscriber whose buffer is full
// misses the message; it is not unsubscribed, and Dropped reports how many
// messages were lost that way.
package broadcast
