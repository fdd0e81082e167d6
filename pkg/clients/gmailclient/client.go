package gmailclient

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/Majulish/cookie/internal/config"
	"github.com/Majulish/cookie/pkg/utils"
)

// Client sends notification copies through the Gmail API
type Client struct {
	service      *gmail.Service
	userID       string
	sender       string
	lastSendTime time.Time
	sendMutex    sync.Mutex
}

// NewClient creates a Gmail client from an authorized mail token
func NewClient(ctx context.Context, oauthCfg *config.OAuthClientConfig, token *oauth2.Token, mail config.MailConfig) (*Client, error) {
	oauthConfig, err := utils.GetOAuthConfig(oauthCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to get oauth config: %w", err)
	}

	service, err := gmail.NewService(ctx, option.WithHTTPClient(oauthConfig.Client(ctx, token)))
	if err != nil {
		return nil, fmt.Errorf("failed to create gmail service: %w", err)
	}

	return &Client{
		service: service,
		userID:  mail.GmailUserID,
		sender:  mail.Sender,
	}, nil
}
