package model

import "time"

const MsgTableName = "messages"

// Message is one direct message. Append-only: documents are inserted once
// and only the seen flag is ever updated.
type Message struct {
	ID         string    `bson:"_id" json:"_id"`
	SenderID   string    `bson:"sender_id" json:"senderId"`
	ReceiverID string    `bson:"receiver_id" json:"receiverId"`
	Text       string    `bson:"text,omitempty" json:"text,omitempty"`
	Image      string    `bson:"image,omitempty" json:"image,omitempty"`
	Seen       bool      `bson:"seen" json:"seen"`
	CreatedAt  time.Time `bson:"created_at" json:"createdAt"`
}

func (*Message) TableName() string { return MsgTableName }

// HasPayload reports whether the message carries any content at all.
func (m *Message) HasPayload() bool {
	return m.Text != "" || m.Image != ""
}
