package session

import "ghostroom/domain"

// Update is a best-effort UI notification. The stream tells a
// consumer that something changed; Snapshot is the source of truth
// for what the state now is.
type Update interface {
	update()
}

type MessageAdded struct {
	Message domain.Message
}

type MessageRemoved struct {
	ID string
}

type ParticipantsChanged struct{}

type StatusChanged struct{}

func (MessageAdded) update()        {}
func (MessageRemoved) update()      {}
func (ParticipantsChanged) update() {}
func (StatusChanged) update()       {}

// notify never blocks the engine: a slow consumer loses updates.
func (e *Engine) notify(u Update) {
	select {
	case e.updates <- u:
	default:
		e.log.Debug("UI update dropped, consumer too slow")
	}
}
