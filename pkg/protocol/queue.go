package protocol

// maxQueued bounds the messages kept for an engine that has not started yet.
const maxQueued = 256

// queue holds messages that arrived before the protocol was started.
type queue struct {
	messages []*Message
}

func (q *queue) Store(msg *Message) error {
	if len(q.messages) >= maxQueued {
		return ErrQueueFull
	}
	for _, existing := range q.messages {
		if existing.From == msg.From && existing.Round == msg.Round {
			return ErrDuplicateMessage
		}
	}
	q.messages = append(q.messages, msg)
	return nil
}

// Drain returns all queued messages in arrival order, and empties the queue.
func (q *queue) Drain() []*Message {
	out := q.messages
	q.messages = nil
	return out
}
