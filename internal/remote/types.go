package remote

import (
	"time"

	"github.com/fyrsmithlabs/listsync/internal/item"
)

// ItemDTO is the wire representation of an item. Sync state is local
// bookkeeping and never crosses the wire.
type ItemDTO struct {
	ID        string        `json:"id"`
	UserID    string        `json:"userId"`
	Scope     string        `json:"scope"`
	Text      string        `json:"text"`
	Completed bool          `json:"completed"`
	Priority  item.Priority `json:"priority,omitempty"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// ToItem converts a DTO into a clean item.
func (d ItemDTO) ToItem() item.Item {
	return item.Item{
		ID:        d.ID,
		Scope:     item.Scope{UserID: d.UserID, ListID: d.Scope},
		Text:      d.Text,
		Completed: d.Completed,
		Priority:  d.Priority.OrDefault(),
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
		Sync:      item.Clean(),
	}
}

// FromItem converts an item into its wire form.
func FromItem(it item.Item) ItemDTO {
	return ItemDTO{
		ID:        it.ID,
		UserID:    it.Scope.UserID,
		Scope:     it.Scope.ListID,
		Text:      it.Text,
		Completed: it.Completed,
		Priority:  it.Priority,
		CreatedAt: it.CreatedAt,
		UpdatedAt: it.UpdatedAt,
	}
}

// CreateRequest is the body of POST /items.
type CreateRequest struct {
	UserID   string        `json:"userId"`
	Scope    string        `json:"scope"`
	Text     string        `json:"text"`
	Priority item.Priority `json:"priority,omitempty"`
}

// UpdateRequest is the body of PATCH /items/{id}.
type UpdateRequest struct {
	Text string `json:"text"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
