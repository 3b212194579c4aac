package notifier

import (
	"context"
	"errors"
	"strconv"

	maxbot "github.com/max-messenger/max-bot-api-client-go"
)

// MaxSender delivers through the MAX messenger bot API. User ids are the
// numeric chat ids of the users' dialogs with the bot.
type MaxSender struct {
	send func(ctx context.Context, chatID int64, text string) error
}

func NewMaxSender(token string) (*MaxSender, error) {
	if token == "" {
		return nil, errors.New("bot token is required for the max notifier")
	}
	api, err := maxbot.New(token)
	if err != nil {
		return nil, err
	}
	return &MaxSender{
		send: func(ctx context.Context, chatID int64, text string) error {
			_, err := api.Messages.Send(ctx, maxbot.NewMessage().SetChat(chatID).SetText(text))
			return err
		},
	}, nil
}

func (s *MaxSender) Send(ctx context.Context, userID, text string) error {
	chatID, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		return deliveryError(userID, errors.New("user id is not a numeric chat id"))
	}
	if err := s.send(ctx, chatID, text); err != nil {
		return deliveryError(userID, err)
	}
	return nil
}
