package item

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateText(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		wantErr error
	}{
		{name: "simple", text: "buy milk"},
		{name: "empty", text: "", wantErr: ErrEmptyText},
		{name: "whitespace", text: "   \t", wantErr: ErrEmptyText},
		{name: "exactly max ascii", text: strings.Repeat("a", MaxTextLength)},
		{name: "over max ascii", text: strings.Repeat("a", MaxTextLength+1), wantErr: ErrTextTooLong},
		// 200 multi-byte code points is well over 200 bytes but still valid
		{name: "max multibyte", text: strings.Repeat("é", MaxTextLength)},
		{name: "over max multibyte", text: strings.Repeat("日", MaxTextLength+1), wantErr: ErrTextTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateText(tt.text)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestScopeValidate(t *testing.T) {
	assert.NoError(t, Scope{UserID: "u1", ListID: "c1"}.Validate())
	assert.ErrorIs(t, Scope{UserID: "u1"}.Validate(), ErrInvalidScope)
	assert.ErrorIs(t, Scope{ListID: "c1"}.Validate(), ErrInvalidScope)
	assert.Equal(t, "u1/c1", Scope{UserID: "u1", ListID: "c1"}.String())
}

func TestPriorityOrDefault(t *testing.T) {
	assert.Equal(t, PriorityMedium, Priority("").OrDefault())
	assert.Equal(t, PriorityMedium, Priority("urgent").OrDefault())
	assert.Equal(t, PriorityHigh, PriorityHigh.OrDefault())
}

func TestTemporaryID(t *testing.T) {
	id := NewTemporaryID()
	assert.True(t, IsTemporaryID(id))
	assert.False(t, IsTemporaryID("7d1c2f"))
	assert.NotEqual(t, id, NewTemporaryID())
}

func TestSyncState(t *testing.T) {
	assert.True(t, Clean().IsClean())
	assert.True(t, SyncState{}.IsClean(), "zero value is clean")
	assert.True(t, NeedsSync().IsNeedsSync())

	s := Optimistic(ActionDeleting)
	assert.True(t, s.IsOptimistic())
	assert.False(t, s.IsClean())
	assert.Equal(t, "optimistic(deleting)", s.String())
}

func TestListCopyOnWrite(t *testing.T) {
	scope := Scope{UserID: "u1", ListID: "c1"}
	a := Item{ID: "a", Scope: scope, Text: "a"}
	b := Item{ID: "b", Scope: scope, Text: "b"}

	base := NewList([]Item{a})
	withB := base.With(b)

	assert.Equal(t, 1, base.Len(), "original list must not change")
	assert.Equal(t, []string{"a", "b"}, withB.IDs())

	renamed := withB.Replace("a", Item{ID: "a2", Scope: scope, Text: "a"})
	assert.Equal(t, []string{"a2", "b"}, renamed.IDs(), "replace keeps position")
	_, ok := withB.Get("a")
	assert.True(t, ok)

	removed := renamed.Without("b")
	assert.Equal(t, []string{"a2"}, removed.IDs())
	assert.Equal(t, []string{"a2", "b"}, renamed.IDs())
}

func TestListFilter(t *testing.T) {
	base := NewList([]Item{{ID: "a"}, {ID: "b", Completed: true}, {ID: "c"}})
	open := base.Filter(func(it Item) bool { return !it.Completed })

	assert.Equal(t, []string{"a", "c"}, open.IDs())
	assert.Equal(t, 3, base.Len(), "original list must not change")
	assert.Equal(t, 0, base.Filter(func(Item) bool { return false }).Len())
}

func TestListReplaceOntoExistingID(t *testing.T) {
	l := NewList([]Item{{ID: "tmp-1"}, {ID: "srv-1"}})
	next := l.Replace("tmp-1", Item{ID: "srv-1", Text: "merged"})

	require.Equal(t, 1, next.Len())
	got, _ := next.Get("srv-1")
	assert.Equal(t, "merged", got.Text)
}

func TestCacheRecordMatches(t *testing.T) {
	scope := Scope{UserID: "u1", ListID: "c1"}
	rec := CacheRecord{UserID: "u1", ListID: "c1", Items: []Item{{ID: "a", Scope: scope}}}
	assert.True(t, rec.Matches(scope))

	assert.False(t, rec.Matches(Scope{UserID: "u2", ListID: "c1"}))

	rec.Items = append(rec.Items, Item{ID: "b", Scope: Scope{UserID: "u2", ListID: "c1"}})
	assert.False(t, rec.Matches(scope), "a foreign item poisons the record")
}

func TestPendingOperationValidate(t *testing.T) {
	scope := Scope{UserID: "u1", ListID: "c1"}
	op := PendingOperation{ID: "op1", Type: OpCreate, TargetID: "tmp-1", Scope: scope, Payload: Payload{Text: "x"}}
	require.NoError(t, op.Validate())

	bad := op
	bad.Type = "rename"
	assert.Error(t, bad.Validate())

	bad = op
	bad.Payload.Text = ""
	assert.ErrorIs(t, bad.Validate(), ErrEmptyText)

	toggle := PendingOperation{ID: "op2", Type: OpToggle, TargetID: "srv-1", Scope: scope}
	assert.NoError(t, toggle.Validate())
}
