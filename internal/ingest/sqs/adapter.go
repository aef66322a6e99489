package sqs

import (
	"context"
	"errors"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awssqs "github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"go.uber.org/zap"

	"github.com/BarkinBalci/eventcore/internal/core"
	"github.com/BarkinBalci/eventcore/internal/queue"
)

// Adapter drives an SQS queue into a Pipeline: it long-polls for messages,
// parses each body into an Event, and submits it via Pipeline.Accept. A
// message is deleted from the queue only once Accept has admitted it —
// a message that fails to parse is deleted immediately (it will never
// parse on redelivery either), one that's rejected because the pipeline is
// shutting down or its shard queue is full is left alone to become visible
// again and retried by a later poll.
type Adapter struct {
	receiver *Receiver
	consumer queue.QueueConsumer
	parser   MessageParser
	pipeline *core.Pipeline
	log      *zap.Logger
}

// NewAdapter wires an SQS consumer and a Pipeline together.
func NewAdapter(consumer queue.QueueConsumer, pipeline *core.Pipeline, log *zap.Logger) *Adapter {
	return &Adapter{
		receiver: NewReceiver(consumer, ReceiverConfig{
			MaxMessages:     10,
			WaitTimeSeconds: 20,
			BufferSize:      100,
		}, log),
		consumer: consumer,
		parser:   NewJSONEventParser(),
		pipeline: pipeline,
		log:      log,
	}
}

// Start runs the receive and submit stages until ctx is cancelled, then
// waits for both to exit.
func (a *Adapter) Start(ctx context.Context) {
	messageChan := make(chan types.Message, 100)

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		a.receiver.Start(ctx, messageChan)
	}()

	go func() {
		defer wg.Done()
		a.submit(ctx, messageChan)
	}()

	wg.Wait()
}

func (a *Adapter) submit(ctx context.Context, in <-chan types.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-in:
			if !ok {
				return
			}
			a.handle(ctx, msg)
		}
	}
}

func (a *Adapter) handle(ctx context.Context, msg types.Message) {
	body := aws.ToString(msg.Body)
	event, err := a.parser.Parse([]byte(body))
	if err != nil {
		a.log.Warn("failed to parse message, deleting",
			zap.String("message_id", aws.ToString(msg.MessageId)), zap.Error(err))
		a.delete(ctx, msg)
		return
	}

	if err := a.pipeline.Accept(ctx, event); err != nil {
		if errors.Is(err, core.ErrShutdown) {
			a.log.Info("pipeline shutting down, leaving message for redelivery",
				zap.String("message_id", aws.ToString(msg.MessageId)))
		} else {
			a.log.Warn("pipeline rejected event, leaving message for redelivery",
				zap.String("message_id", aws.ToString(msg.MessageId)), zap.Error(err))
		}
		return
	}

	a.delete(ctx, msg)
}

func (a *Adapter) delete(ctx context.Context, msg types.Message) {
	_, err := a.consumer.DeleteMessage(ctx, &awssqs.DeleteMessageInput{
		QueueUrl:      aws.String(a.consumer.QueueURL()),
		ReceiptHandle: msg.ReceiptHandle,
	})
	if err != nil {
		a.log.Error("failed to delete message",
			zap.String("message_id", aws.ToString(msg.MessageId)), zap.Error(err))
	}
}
