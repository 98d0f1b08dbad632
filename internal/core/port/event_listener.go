package port

import "context"

// EventListenerPort - контракт фонового слушателя входящих сообщений
type EventListenerPort interface {
	Start(ctx context.Context) error
	Close() error
}
