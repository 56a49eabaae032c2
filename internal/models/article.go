package models

import (
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

// TimestampLayout is the wire and storage layout for article timestamps.
// It sorts lexicographically in the same order as the times it encodes.
const TimestampLayout = "2006-01-02 15:04:05"

// Timestamp is a second-precision time serialized as "yyyy-MM-dd HH:mm:ss"
type Timestamp struct {
	time.Time
}

// NewTimestamp truncates t to whole local seconds so a value survives a
// round trip through any of the stores unchanged.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t.Local().Truncate(time.Second)}
}

func (t Timestamp) String() string {
	if t.IsZero() {
		return ""
	}
	return t.Format(TimestampLayout)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte(`""`), nil
	}
	return []byte(`"` + t.Format(TimestampLayout) + `"`), nil
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		t.Time = time.Time{}
		return nil
	}
	return t.parse(s)
}

func (t Timestamp) MarshalBSONValue() (bsontype.Type, []byte, error) {
	return bson.MarshalValue(t.String())
}

func (t *Timestamp) UnmarshalBSONValue(typ bsontype.Type, data []byte) error {
	s, ok := bson.RawValue{Type: typ, Value: data}.StringValueOK()
	if !ok {
		return fmt.Errorf("timestamp: expected string, got %s", typ)
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	return t.parse(s)
}

func (t *Timestamp) parse(s string) error {
	parsed, err := time.ParseInLocation(TimestampLayout, s, time.Local)
	if err != nil {
		return fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	t.Time = parsed
	return nil
}

// Article is a news article as persisted in the document store
type Article struct {
	ID        string    `json:"id" bson:"_id"`
	Title     string    `json:"title" bson:"title"`
	Cover     string    `json:"cover" bson:"cover"`
	Desc      string    `json:"desc" bson:"desc"`
	Content   string    `json:"content" bson:"content"`
	EditValue string    `json:"editValue" bson:"editValue"`
	CreateAt  Timestamp `json:"createAt" bson:"createAt"`
	UpdateAt  Timestamp `json:"updateAt" bson:"updateAt"`
	Version   int64     `json:"version" bson:"version"`
}

// Newer reports whether a sorts before b in list order: most recent
// update first, ties broken by descending ID.
func (a *Article) Newer(b *Article) bool {
	if !a.UpdateAt.Equal(b.UpdateAt.Time) {
		return a.UpdateAt.After(b.UpdateAt.Time)
	}
	return a.ID > b.ID
}

// ArticlePage is one page of the article list plus pagination metadata.
// CurrentPage carries the zero-based skip offset, not a page number.
type ArticlePage struct {
	Page        int       `json:"page"`
	FirstPage   bool      `json:"firstPage"`
	LastPage    bool      `json:"lastPage"`
	PageSize    int       `json:"pageSize"`
	CurrentPage int       `json:"currentPage"`
	TotalPage   int       `json:"totalPage"`
	List        []Article `json:"list"`
}

// DeleteAck is the store's removal acknowledgment
type DeleteAck struct {
	N  int64 `json:"n"`
	OK int   `json:"ok"`
}
