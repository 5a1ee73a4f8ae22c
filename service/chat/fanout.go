package chat

import (
	"encoding/json"

	"VChat/logger"
	"VChat/module/chat/model"
	"VChat/service/natsx"
)

// Fanout pushes persisted messages to their recipient's live connection.
// Delivery is at-most-once: the caller persists first, a failed push is not
// retried and the message is recovered by the next history fetch.
type Fanout struct {
	conns  *ConnManager
	events *natsx.Publisher // may be nil
}

func NewFanout(conns *ConnManager, events *natsx.Publisher) *Fanout {
	return &Fanout{conns: conns, events: events}
}

// Deliver pushes msg to its recipient if online and emits the message event.
// Never returns an error: the sender's REST response does not depend on the
// recipient's connection state.
func (f *Fanout) Deliver(msg *model.Message) {
	frame, err := BuildNewMessage(msg)
	if err != nil {
		logger.Errorf("[fanout] encode message %s: %v", msg.ID, err)
		return
	}

	if _, online := f.conns.Get(msg.ReceiverID); online {
		if err := f.conns.SendUser(msg.ReceiverID, frame); err != nil {
			logger.Warnf("[fanout] push to %s failed: %v", msg.ReceiverID, err)
		}
	}

	if data, err := json.Marshal(msg); err == nil {
		if err := f.events.Publish(natsx.SubjectMessageCreated, data); err != nil {
			logger.Warnf("[fanout] publish event for %s: %v", msg.ID, err)
		}
	}
}
