package orchestration

import (
	"context"
	"errors"
	"strings"

	"github.com/koscakluka/ema-turns/core/llms"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var errNoReplyGenerator = errors.New("no reply generator configured")

type llm struct {
	// client produces the assistant reply for a conversation.
	client llms.ReplyGenerator
}

func (runtime *llm) set(client llms.ReplyGenerator) {
	if runtime == nil {
		return
	}

	runtime.client = client
}

// generate asks the client for a reply to conversation. A blank reply is an
// error.
func (runtime *llm) generate(ctx context.Context, conversation []llms.Turn) (string, error) {
	ctx, span := tracer.Start(ctx, "generate reply")
	defer span.End()
	span.SetAttributes(attribute.Int("conversation.turns", len(conversation)))

	if runtime == nil || runtime.client == nil {
		span.SetStatus(codes.Error, errNoReplyGenerator.Error())
		return "", errNoReplyGenerator
	}

	var reply string
	err := panicSafeNamedWorker("reply generation", func(ctx context.Context) error {
		var err error
		reply, err = runtime.client.Reply(ctx, conversation)
		return err
	})(ctx)
	if err == nil {
		if reply = strings.TrimSpace(reply); reply == "" {
			err = llms.ErrEmptyReply
		}
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	span.SetAttributes(attribute.Int("reply.length", len(reply)))
	return reply, nil
}
