// Package dynamolock implements a zinc coordinator.Coordinator using
// conditional writes against a DynamoDB table, one item per locked domain,
// with a lease that expires LeaseDuration after acquisition. The lease is
// not renewed while the lock is held.
package dynamolock

import (
	"context"
	stderrors "errors"
	"net/url"
	"strconv"
	"strings"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/amrox/zinc/coordinator"
	"github.com/amrox/zinc/zerr"
)

func init() {
	coordinator.Register("dynamodb", ValidURL, func(u string) (coordinator.Coordinator, error) {
		return Open(context.Background(), u)
	})
}

// Scheme is the URL scheme this coordinator claims.
const Scheme = "dynamodb"

// DefaultTable is the table name used when the URL names none.
const DefaultTable = "zinc-locks"

// LeaseDuration is how long a held lock is valid without renewal before
// another writer may steal it.
const LeaseDuration = 30 * time.Second

// retryDelay is how often Acquire polls while blocked on a held lock.
const retryDelay = 200 * time.Millisecond

// ValidURL reports whether u is a dynamodb:// URL.
func ValidURL(u string) bool {
	return strings.HasPrefix(u, Scheme+"://")
}

// client is the subset of the DynamoDB API this coordinator calls.
type client interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

// Coordinator grants locks as conditionally-written items in a DynamoDB
// table, keyed by domain.
type Coordinator struct {
	Client client
	Table  string
}

// Open parses a dynamodb://region/table URL and constructs a Coordinator
// using the default AWS credential chain.
func Open(ctx context.Context, u string) (*Coordinator, error) {
	parsed, err := url.Parse(u)
	if err != nil {
		return nil, errors.Wrapf(err, "could not parse coordinator url %s", u)
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(parsed.Host))
	if err != nil {
		return nil, errors.Wrap(err, "could not load AWS config")
	}

	table := strings.Trim(parsed.Path, "/")
	if table == "" {
		table = DefaultTable
	}

	return &Coordinator{Client: dynamodb.NewFromConfig(cfg), Table: table}, nil
}

// GetIndexLock returns a Lock for domain. timeout bounds Acquire; zero
// means the coordinator's default (one LeaseDuration).
func (c *Coordinator) GetIndexLock(domain string, timeout time.Duration) (coordinator.Lock, error) {
	if timeout <= 0 {
		timeout = LeaseDuration
	}
	return &Lock{
		coord:   c,
		domain:  domain,
		owner:   uuid.NewString(),
		timeout: timeout,
	}, nil
}

// Lock is a single domain's DynamoDB-backed lock handle.
type Lock struct {
	coord   *Coordinator
	domain  string
	owner   string
	timeout time.Duration
	held    bool
}

// Acquire blocks until the lock item is written or timeout elapses.
func (l *Lock) Acquire() error {
	if l.held {
		return nil
	}

	deadline := time.Now().Add(l.timeout)
	for {
		ok, err := l.tryAcquire()
		if err != nil {
			return zerr.New(zerr.LockUnavailable, err)
		}
		if ok {
			l.held = true
			return nil
		}
		if time.Now().After(deadline) {
			return zerr.Newf(zerr.LockUnavailable, "timed out acquiring lock for %s", l.domain)
		}
		time.Sleep(retryDelay)
	}
}

func (l *Lock) tryAcquire() (bool, error) {
	now := time.Now()
	expiry := now.Add(LeaseDuration).Unix()

	_, err := l.coord.Client.PutItem(context.Background(), &dynamodb.PutItemInput{
		TableName: &l.coord.Table,
		Item: map[string]types.AttributeValue{
			"domain": &types.AttributeValueMemberS{Value: l.domain},
			"owner":  &types.AttributeValueMemberS{Value: l.owner},
			"expiry": &types.AttributeValueMemberN{Value: strconv.FormatInt(expiry, 10)},
		},
		ConditionExpression: strPtr("attribute_not_exists(domain) OR expiry < :now OR owner = :owner"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now":   &types.AttributeValueMemberN{Value: strconv.FormatInt(now.Unix(), 10)},
			":owner": &types.AttributeValueMemberS{Value: l.owner},
		},
	})
	if err == nil {
		return true, nil
	}

	var condFailed *types.ConditionalCheckFailedException
	if stderrors.As(err, &condFailed) {
		return false, nil
	}
	return false, errors.Wrapf(err, "could not write lock item for %s", l.domain)
}

// Release deletes the lock item, provided this handle still owns it.
// Idempotent.
func (l *Lock) Release() error {
	if !l.held {
		return nil
	}

	_, err := l.coord.Client.DeleteItem(context.Background(), &dynamodb.DeleteItemInput{
		TableName: &l.coord.Table,
		Key: map[string]types.AttributeValue{
			"domain": &types.AttributeValueMemberS{Value: l.domain},
		},
		ConditionExpression: strPtr("owner = :owner"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":owner": &types.AttributeValueMemberS{Value: l.owner},
		},
	})
	l.held = false

	var condFailed *types.ConditionalCheckFailedException
	if err != nil && !stderrors.As(err, &condFailed) {
		return errors.Wrapf(err, "could not release lock for %s", l.domain)
	}
	return nil
}

// IsLocked reports whether this handle currently holds the lock.
func (l *Lock) IsLocked() bool {
	return l.held
}

func strPtr(s string) *string { return &s }
