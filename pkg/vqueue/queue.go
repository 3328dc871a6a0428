package vqueue

// NumPriorities is the number of priority lanes. Valid molecule priorities
// are 0..NumPriorities-1; higher runs first.
const NumPriorities = 5

// Queue holds one FIFO lane per priority level. It is a plain container —
// all locking and scheduling policy lives in [Scheduler]. Selection is done
// exclusively through [Queue.Next]; the scheduler never picks a molecule by
// any other rule.
type Queue struct {
	lanes  [NumPriorities][]*Molecule
	nextID int64
}

// NewQueue creates an empty queue. The first enqueued molecule gets id 1;
// 0 is reserved for the parse-failure reply of the command surface.
func NewQueue() *Queue {
	return &Queue{}
}

// Enqueue appends m to the lane of its priority and assigns its id.
func (q *Queue) Enqueue(m *Molecule) int64 {
	q.nextID++
	m.ID = q.nextID
	q.lanes[m.Priority] = append(q.lanes[m.Priority], m)
	return m.ID
}

// Next returns the head of the highest-priority non-empty lane whose head
// still has atoms to run, or nil when the queue is drained. Ties within a
// lane resolve FIFO.
func (q *Queue) Next() *Molecule {
	for p := NumPriorities - 1; p >= 0; p-- {
		for _, m := range q.lanes[p] {
			if !m.Complete() || m.Mode.Has(ModeLoop) {
				return m
			}
		}
	}
	return nil
}

// Cancel removes the molecule with the given id and returns it, or nil if
// no such molecule is queued.
func (q *Queue) Cancel(id int64) *Molecule {
	for p := range q.lanes {
		for i, m := range q.lanes[p] {
			if m.ID == id {
				q.lanes[p] = append(q.lanes[p][:i], q.lanes[p][i+1:]...)
				return m
			}
		}
	}
	return nil
}

// CancelPriority empties the lane p and returns the removed molecules in
// FIFO order. Out-of-range priorities are a no-op.
func (q *Queue) CancelPriority(p int) []*Molecule {
	if p < 0 || p >= NumPriorities {
		return nil
	}
	removed := q.lanes[p]
	q.lanes[p] = nil
	return removed
}

// Remove takes the specific molecule out of its lane. Returns false if m
// is not queued (already removed).
func (q *Queue) Remove(m *Molecule) bool {
	lane := q.lanes[m.Priority]
	for i, qm := range lane {
		if qm == m {
			q.lanes[m.Priority] = append(lane[:i], lane[i+1:]...)
			return true
		}
	}
	return false
}

// Len is the total number of queued molecules.
func (q *Queue) Len() int {
	n := 0
	for p := range q.lanes {
		n += len(q.lanes[p])
	}
	return n
}

// LaneLen is the number of molecules in lane p.
func (q *Queue) LaneLen(p int) int {
	if p < 0 || p >= NumPriorities {
		return 0
	}
	return len(q.lanes[p])
}
