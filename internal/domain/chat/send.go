package chat

import (
	"context"
	"log/slog"
)

// Send runs one logical send: validate the body, append the message, then
// commit the companion preview update and publish the notification. The two
// writes are not atomic; when the preview commit fails the appended message
// is kept and the lag is logged, never hidden. Send is never retried
// internally since a retry could duplicate the message.
func Send(ctx context.Context, sends SendTxFactory, notifier Notifier, logger *slog.Logger, conversationID, senderID, senderContact, body string) (Message, error) {
	body, err := ValidateBody(body)
	if err != nil {
		return Message{}, err
	}
	tx, err := sends.BeginSend(ctx, conversationID)
	if err != nil {
		return Message{}, err
	}
	msg, err := tx.Append(ctx, senderID, senderContact, body)
	if err != nil {
		_ = tx.Rollback(ctx)
		return Message{}, err
	}
	if err := tx.Commit(ctx); err != nil && logger != nil {
		logger.Warn("conversation preview update failed, preview may lag behind the log",
			"conversation_id", conversationID, "message_id", msg.ID, "error", err)
	}
	if notifier != nil {
		notifier.MessageSent(ctx, msg)
	}
	return msg, nil
}
