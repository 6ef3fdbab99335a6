package jobqueue

import "container/heap"

// jobHeap orders one class's pending jobs by ScheduledAt, then enqueue order.
type jobHeap []*Job

func (h jobHeap) Len() int { return len(h) }

func (h jobHeap) Less(i, j int) bool {
	if h[i].ScheduledAt.Equal(h[j].ScheduledAt) {
		return h[i].seq < h[j].seq
	}
	return h[i].ScheduledAt.Before(h[j].ScheduledAt)
}

func (h jobHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *jobHeap) Push(x any) { *h = append(*h, x.(*Job)) }

func (h *jobHeap) Pop() any {
	old := *h
	n := len(old)
	job := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return job
}

func (h *jobHeap) push(job *Job) { heap.Push(h, job) }

func (h *jobHeap) pop() *Job { return heap.Pop(h).(*Job) }

func (h jobHeap) peek() *Job {
	if len(h) == 0 {
		return nil
	}
	return h[0]
}
