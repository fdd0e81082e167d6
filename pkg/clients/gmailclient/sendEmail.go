package gmailclient

import (
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"strings"
	"time"

	"google.golang.org/api/gmail/v1"

	"github.com/Majulish/cookie/pkg/core/model"
)

const EMAIL_INTERVAL = 3 * time.Second

// Deliver mails a copy of a notification to the user. Sends are spaced at
// least EMAIL_INTERVAL apart to stay under Gmail rate limits.
func (c *Client) Deliver(ctx context.Context, to model.User, subject, body string) error {
	c.sendMutex.Lock()
	defer c.sendMutex.Unlock()

	if !c.lastSendTime.IsZero() {
		if wait := EMAIL_INTERVAL - time.Since(c.lastSendTime); wait > 0 {
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	msg := &gmail.Message{
		Raw: base64.URLEncoding.EncodeToString(buildMessage(c.sender, to, subject, body)),
	}
	if _, err := c.service.Users.Messages.Send(c.userID, msg).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", to.ID, err)
	}

	c.lastSendTime = time.Now()
	return nil
}

// buildMessage renders an RFC 2822 message. Non-ASCII subjects and names are
// Q-encoded.
func buildMessage(sender string, to model.User, subject, body string) []byte {
	var b strings.Builder
	if sender != "" {
		fmt.Fprintf(&b, "From: %s\r\n", sender)
	}
	if to.Name != "" {
		fmt.Fprintf(&b, "To: %s <%s>\r\n", mime.QEncoding.Encode("utf-8", to.Name), to.Email)
	} else {
		fmt.Fprintf(&b, "To: %s\r\n", to.Email)
	}
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n\r\n")
	b.WriteString(body)
	return []byte(b.String())
}
