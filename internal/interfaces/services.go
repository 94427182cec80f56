package interfaces

import (
	"context"

	"github.com/vladimiradmaev/calorie-helper/internal/conversation"
	"github.com/vladimiradmaev/calorie-helper/internal/domain"
)

// UserServiceInterface defines the contract for user operations
type UserServiceInterface interface {
	RegisterUser(ctx context.Context, telegramID int64) (*domain.User, error)
}

// ConversationInterface defines the contract the chat handlers drive
type ConversationInterface interface {
	HandleText(ctx context.Context, userID int64, text string) ([]conversation.Reply, error)
	HandleCallback(ctx context.Context, userID int64, data string) ([]conversation.Reply, error)
	HandleCommand(ctx context.Context, userID int64, name, args string) ([]conversation.Reply, error)
	RecordReportMessage(ctx context.Context, mealIDs []string, messageID int)
}
