package scheduler

import "container/heap"

// jobQueue is a priority queue ordered by priority descending, then arrival
// order ascending. It implements heap.Interface; use the push/pop wrappers
// below instead of calling heap functions directly.
type jobQueue []*Job

func (q jobQueue) Len() int { return len(q) }

func (q jobQueue) Less(i, j int) bool {
	if q[i].Priority != q[j].Priority {
		return q[i].Priority > q[j].Priority
	}
	return q[i].seq < q[j].seq
}

func (q jobQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *jobQueue) Push(x any) {
	*q = append(*q, x.(*Job))
}

func (q *jobQueue) Pop() any {
	old := *q
	n := len(old)
	job := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return job
}

func (q *jobQueue) push(job *Job) {
	heap.Push(q, job)
}

func (q *jobQueue) pop() *Job {
	if q.Len() == 0 {
		return nil
	}
	return heap.Pop(q).(*Job)
}
