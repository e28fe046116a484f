package pagination

import (
	"encoding/base64"
	"encoding/json"
)

// Pagination binds the cursor query parameters of a list endpoint.
type Pagination struct {
	Cursor string `form:"cursor"`
	Limit  int    `form:"limit,default=20" validate:"gte=1,lte=100"`
}

func (p Pagination) Normalized() Pagination {
	if p.Limit < 1 {
		p.Limit = 20
	}
	if p.Limit > 100 {
		p.Limit = 100
	}
	return p
}

// Cursor is the opaque position token. CreatedAt is RFC3339Nano so the
// ordering survives the round trip through JSON.
type Cursor struct {
	CreatedAt string `json:"created_at,omitempty"`
	ID        string `json:"id,omitempty"`
}

type PageInfo struct {
	NextCursor string `json:"next_cursor"`
	HasMore    bool   `json:"has_more"`
}

func EncodeCursor(c Cursor) (string, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

func DecodeCursor(data string) (*Cursor, error) {
	b, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, err
	}

	var c Cursor
	if err := json.Unmarshal(b, &c); err != nil {
		return nil, err
	}

	return &c, nil
}

// Trim drops the sentinel row fetched beyond the limit and builds the
// page info from the last row kept.
func Trim[T any](rows []*T, limit int, cursorOf func(*T) Cursor) ([]*T, *PageInfo, error) {
	if len(rows) <= limit {
		return rows, &PageInfo{HasMore: false}, nil
	}

	rows = rows[:limit]
	next, err := EncodeCursor(cursorOf(rows[len(rows)-1]))
	if err != nil {
		return nil, nil, err
	}

	return rows, &PageInfo{NextCursor: next, HasMore: true}, nil
}
