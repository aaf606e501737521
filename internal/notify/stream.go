package notify

import "context"

// Stream publishes messages to live subscribers of a broker topic.
type Stream struct {
	Topic  string
	Broker EventBroker
}

func (s *Stream) Name() string { return "stream:" + s.Topic }

func (s *Stream) Publish(ctx context.Context, text string) error {
	return s.Broker.Publish(s.Topic, NewMessage(s.Topic, text))
}
