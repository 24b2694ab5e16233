package account

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dukerupert/zaikon/internal/line"

	"github.com/google/uuid"
)

const linkCodeLength = 8

type LinkCode struct {
	Code         string    `json:"code"`
	ExpiresAt    time.Time `json:"expires_at"`
	AddFriendURL string    `json:"add_friend_url,omitempty"`
}

// CreateLinkCode issues a code the user sends to the LINE bot to link their
// LINE account. Any earlier code for the same user stops working.
func (s *Service) CreateLinkCode(userID int64) (*LinkCode, error) {
	if _, err := s.Profile(userID); err != nil {
		return nil, err
	}
	s.linkCodes.DeleteFunc(func(_ string, id int64) bool { return id == userID })

	code := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:linkCodeLength])
	expires := s.linkCodes.Put(code, userID)
	return &LinkCode{Code: code, ExpiresAt: expires, AddFriendURL: s.lineURL}, nil
}

func (s *Service) UnlinkLINE(userID int64) error {
	if _, err := s.Profile(userID); err != nil {
		return err
	}
	if err := s.users.SetLineUserID(userID, nil); err != nil {
		return fmt.Errorf("unlink line: %w", err)
	}
	return nil
}

// HandleLINEEvents links the sender of a pending link code. Other messages
// get a short hint. Reply failures are logged only.
func (s *Service) HandleLINEEvents(ctx context.Context, events []line.Event) {
	for _, ev := range events {
		lineUserID, text, ok := ev.TextFrom()
		if !ok {
			continue
		}
		reply := s.linkFromMessage(lineUserID, text)
		if ev.ReplyToken == "" || s.replier == nil {
			continue
		}
		if err := s.replier.ReplyText(ctx, ev.ReplyToken, reply); err != nil {
			s.logger.Warn("line reply", "error", err)
		}
	}
}

func (s *Service) linkFromMessage(lineUserID, text string) string {
	userID, ok := s.linkCodes.Take(strings.ToUpper(text))
	if !ok {
		return "Send the link code shown in the app to connect your account. Codes expire after 10 minutes."
	}

	if other, err := s.users.GetByLineUserID(lineUserID); err != nil {
		s.logger.Error("line link lookup", "error", err)
		return "Something went wrong, please try again."
	} else if other != nil && other.ID != userID {
		if err := s.users.SetLineUserID(other.ID, nil); err != nil {
			s.logger.Error("line unlink previous", "user_id", other.ID, "error", err)
			return "Something went wrong, please try again."
		}
		s.logger.Info("line account moved", "from_user_id", other.ID, "to_user_id", userID)
	}

	if err := s.users.SetLineUserID(userID, &lineUserID); err != nil {
		s.logger.Error("line link", "user_id", userID, "error", err)
		return "Something went wrong, please try again."
	}
	s.logger.Info("line account linked", "user_id", userID)
	return "Your account is now linked. Shopping and replenish lists will be sent here."
}
