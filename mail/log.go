package mail

import (
	"context"
	"fmt"

	"github.com/goliatone/go-print"
	signup "github.com/goliatone/go-signup"
)

// LogMailer prints rendered messages instead of delivering them. Useful
// for development and tests.
type LogMailer struct {
	from     string
	renderer *Renderer
	logger   signup.Logger
}

var _ signup.Mailer = (*LogMailer)(nil)

func NewLogMailer(from string, renderer *Renderer, logger signup.Logger) *LogMailer {
	return &LogMailer{
		from:     from,
		renderer: renderer,
		logger:   logger,
	}
}

func (m *LogMailer) Send(ctx context.Context, n signup.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg, err := m.renderer.Render(n)
	if err != nil {
		return err
	}
	msg.From = m.from

	if m.logger != nil {
		m.logger.Info("sending %s email to %s", n.Kind, msg.To)
	}

	fmt.Println("====== SENDING EMAIL NOTIFICATION =======")
	fmt.Println(print.MaybePrettyJSON(msg))
	fmt.Println("=========================================")

	return nil
}
