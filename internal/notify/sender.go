package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	sestypes "github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

// snsSubjectLimit is the maximum SNS subject length
const snsSubjectLimit = 100

// ErrNoRecipient is returned when a message has nowhere to go
var ErrNoRecipient = errors.New("no recipient")

// Message is one outgoing notification
type Message struct {
	To      string
	Subject string
	Body    string
}

// Sender delivers a Message on one channel
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SESAPI is the minimal interface for sending email
type SESAPI interface {
	SendEmail(ctx context.Context, input *ses.SendEmailInput, opts ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SNSAPI is the minimal interface for publishing to a topic
type SNSAPI interface {
	Publish(ctx context.Context, input *sns.PublishInput, opts ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SESSender emails alerts from a verified sender identity
type SESSender struct {
	client SESAPI
	from   string
}

// NewSESSender creates an SES sender
func NewSESSender(client SESAPI, from string) *SESSender {
	return &SESSender{client: client, from: from}
}

// NewSESSenderFromConfig builds the SES client from cfg
func NewSESSenderFromConfig(cfg aws.Config, from string) *SESSender {
	return NewSESSender(ses.NewFromConfig(cfg), from)
}

// Send implements Sender. A message without a recipient is not delivered
// and returns ErrNoRecipient.
func (s *SESSender) Send(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return ErrNoRecipient
	}
	_, err := s.client.SendEmail(ctx, &ses.SendEmailInput{
		Source:      aws.String(s.from),
		Destination: &sestypes.Destination{ToAddresses: []string{msg.To}},
		Message: &sestypes.Message{
			Subject: &sestypes.Content{Data: aws.String(msg.Subject), Charset: aws.String("UTF-8")},
			Body: &sestypes.Body{
				Text: &sestypes.Content{Data: aws.String(msg.Body), Charset: aws.String("UTF-8")},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("ses send email: %w", err)
	}
	return nil
}

// SNSSender publishes alerts to one topic
type SNSSender struct {
	client   SNSAPI
	topicARN string
}

// NewSNSSender creates an SNS sender
func NewSNSSender(client SNSAPI, topicARN string) *SNSSender {
	return &SNSSender{client: client, topicARN: topicARN}
}

// NewSNSSenderFromConfig builds the SNS client from cfg
func NewSNSSenderFromConfig(cfg aws.Config, topicARN string) *SNSSender {
	return NewSNSSender(sns.NewFromConfig(cfg), topicARN)
}

// Send implements Sender
func (s *SNSSender) Send(ctx context.Context, msg Message) error {
	subject := msg.Subject
	if len(subject) > snsSubjectLimit {
		subject = subject[:snsSubjectLimit-3] + "..."
	}
	_, err := s.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(s.topicARN),
		Subject:  aws.String(subject),
		Message:  aws.String(msg.Body),
	})
	if err != nil {
		return fmt.Errorf("sns publish: %w", err)
	}
	return nil
}

// Nop discards every message
type Nop struct{}

// Send implements Sender
func (Nop) Send(context.Context, Message) error { return nil }
