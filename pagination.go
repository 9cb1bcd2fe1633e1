package dynaschema

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/gob"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

func init() {
	// Register DynamoDB types with gob
	gob.Register(map[string]types.AttributeValue{})
	gob.Register(&types.AttributeValueMemberS{})
	gob.Register(&types.AttributeValueMemberN{})
	gob.Register(&types.AttributeValueMemberB{})
	gob.Register(&types.AttributeValueMemberSS{})
	gob.Register(&types.AttributeValueMemberNS{})
	gob.Register(&types.AttributeValueMemberBS{})
	gob.Register(&types.AttributeValueMemberM{})
	gob.Register(&types.AttributeValueMemberL{})
	gob.Register(&types.AttributeValueMemberNULL{})
	gob.Register(&types.AttributeValueMemberBOOL{})
}

// Paginator converts last evaluated keys into cursors for clients, and
// cursors back into start keys.
type Paginator interface {
	// PageCursor returns a cursor for lastkey, or "" when lastkey is empty.
	PageCursor(ctx context.Context, lastkey Item) (string, error)
	// StartKey returns the key a cursor refers to, or nil for "".
	StartKey(ctx context.Context, cursor string) (Item, error)
}

// EncodeCursor encodes a key as URL-safe text. An empty key encodes to "".
func EncodeCursor(key Item) (string, error) {
	if len(key) == 0 {
		return "", nil
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(key); err != nil {
		return "", fmt.Errorf("failed to encode last key: %w", err)
	}
	return base64.URLEncoding.EncodeToString(buf.Bytes()), nil
}

// DecodeCursor reverses EncodeCursor.
func DecodeCursor(cursor string) (Item, error) {
	if cursor == "" {
		return nil, nil
	}
	data, err := base64.URLEncoding.DecodeString(cursor)
	if err != nil {
		return nil, fmt.Errorf("failed to decode cursor: %w", err)
	}
	var key map[string]types.AttributeValue
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&key); err != nil {
		return nil, fmt.Errorf("failed to decode last key: %w", err)
	}
	return key, nil
}

// TokenPaginator carries the encoded key in the cursor itself.
type TokenPaginator struct{}

func (TokenPaginator) PageCursor(_ context.Context, lastkey Item) (string, error) {
	return EncodeCursor(lastkey)
}

func (TokenPaginator) StartKey(_ context.Context, cursor string) (Item, error) {
	return DecodeCursor(cursor)
}

// TablePaginator stores last evaluated keys as records in the table and
// hands out opaque cursor ids. Records are written through the table's
// store as PageCursor entities with an expiry timestamp for TTL.
type TablePaginator struct {
	cursors *EntityType
	byID    *AccessPattern
	clock   func() time.Time
}

// WithTablePaginator stores page cursors in the table itself.
func WithTablePaginator() TableOption {
	return func(t *Table) { t.paginator = NewTablePaginator(t) }
}

// NewTablePaginator creates a paginator backed by t. The PageCursor entity
// is not added to t's catalog.
func NewTablePaginator(t *Table) *TablePaginator {
	byID := One("page_cursor_by_id", "cursor")
	cursors, err := t.build("PageCursor", []Declaration{
		PartitionKey("cursor", String),
		Attribute("key", String),
		Attribute("expires", Integer[int64]()),
		byID,
	})
	if err != nil {
		// The declaration above is static.
		panic(err)
	}
	return &TablePaginator{cursors: cursors, byID: byID, clock: time.Now}
}

// PageCursor implements Paginator.
func (p *TablePaginator) PageCursor(ctx context.Context, lastkey Item) (string, error) {
	encoded, err := EncodeCursor(lastkey)
	if err != nil || encoded == "" {
		return "", err
	}

	cursor, err := generateCursor(p.clock())
	if err != nil {
		return "", fmt.Errorf("failed to generate cursor: %w", err)
	}

	rec, err := p.cursors.New(map[string]any{
		"cursor":  cursor,
		"key":     encoded,
		"expires": p.clock().Add(p.cursors.table.PaginationTTL).Unix(),
	})
	if err != nil {
		return "", err
	}
	if err := rec.Save(ctx); err != nil {
		return "", fmt.Errorf("failed to store page cursor: %w", err)
	}
	return cursor, nil
}

// StartKey implements Paginator. An unknown or expired cursor yields a nil key.
func (p *TablePaginator) StartKey(ctx context.Context, cursor string) (Item, error) {
	if cursor == "" {
		return nil, nil
	}
	rec, err := p.byID.Get(ctx, cursor)
	if err != nil {
		if errors.Is(err, ErrItemNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get page cursor: %w", err)
	}
	if expires, ok := rec.Get("expires"); ok && p.clock().Unix() > expires.(int64) {
		return nil, nil
	}
	encoded, _ := rec.Get("key")
	s, _ := encoded.(string)
	return DecodeCursor(s)
}

// generateCursor creates a unique cursor string using the time and random bytes.
func generateCursor(now time.Time) (string, error) {
	randomBytes := make([]byte, 8)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", err
	}
	combined := fmt.Sprintf("%d_%s", now.UnixNano(), base64.URLEncoding.EncodeToString(randomBytes))
	return base64.URLEncoding.EncodeToString([]byte(combined)), nil
}
