package coordinator

import "github.com/gogpu/batch/internal/logging"

// ID names one placed object within a coordinator.
type ID uint64

// removalQueue collects the IDs of released tokens. It is drained by the
// owning coordinator before every mutation and render.
type removalQueue struct {
	ids []ID
}

func (q *removalQueue) push(id ID) { q.ids = append(q.ids, id) }

func (q *removalQueue) drain() []ID {
	ids := q.ids
	q.ids = nil
	return ids
}

// Token is a reference-counted claim on a placed object. The object is
// removed at the coordinator's next mutation or render after the last
// reference is released.
type Token struct {
	id    ID
	queue *removalQueue
	refs  int
}

// ID returns the object's id.
func (t *Token) ID() ID { return t.id }

// Live reports whether the token still holds references.
func (t *Token) Live() bool { return t.refs > 0 }

// Retain adds a reference.
func (t *Token) Retain() *Token {
	if t.refs <= 0 {
		logging.Logger().Debug("coordinator: retain on released token", "id", t.id)
		return t
	}
	t.refs++
	return t
}

// Release drops a reference. Releasing a dead token is a no-op.
func (t *Token) Release() {
	if t.refs <= 0 {
		logging.Logger().Debug("coordinator: release on released token", "id", t.id)
		return
	}
	t.refs--
	if t.refs == 0 {
		t.queue.push(t.id)
	}
}
