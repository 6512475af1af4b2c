package backupmgr

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJobQueueFIFO(t *testing.T) {
	q := NewJobQueue(-1)
	for i := 1; i <= 3; i++ {
		q.Enqueue(i)
	}
	assert.Equal(t, 3, q.Size())

	assert.Equal(t, 1, q.Dequeue())
	assert.Equal(t, 2, q.Dequeue())
	q.Enqueue(4)
	assert.Equal(t, 3, q.Dequeue())
	assert.Equal(t, 4, q.Dequeue())
	assert.Equal(t, 0, q.Size())
}

func TestJobQueueEmptyReturnsSentinel(t *testing.T) {
	q := NewJobQueue(NoBackupJob)

	job := q.Dequeue()
	assert.True(t, job.IsNoJob())
	assert.Equal(t, NoBackupJob, job)
	assert.Equal(t, 0, q.Size())
}

func TestJobQueueSizeTracksEnqueueMinusDequeue(t *testing.T) {
	q := NewJobQueue(NoRestoreJob)
	set := NewBackupSet("career", "", "", SetOptions{})

	enqueued, dequeued := 0, 0
	ops := []bool{true, true, false, false, false, true, false, true, true, false}
	for _, enqueue := range ops {
		if enqueue {
			q.Enqueue(NewRestoreJob(set, "x"))
			enqueued++
		} else if !q.Dequeue().IsNoJob() {
			dequeued++
		}
		assert.Equal(t, enqueued-dequeued, q.Size())
	}
}
