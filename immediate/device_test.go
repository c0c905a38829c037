package immediate

import (
	"errors"
	"testing"
	"time"

	"github.com/gogpu/cmdlist"
	"github.com/gogpu/cmdlist/driver"
)

func TestSubmitRequiresEnd(t *testing.T) {
	dev, _ := newTestDevice(t)

	l := dev.NewList("test")
	if err := l.Begin(); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	if _, err := dev.Submit(l); !errors.Is(err, cmdlist.ErrNotEnded) {
		t.Errorf("Submit before End = %v, want ErrNotEnded", err)
	}
	l.Dispose()
}

func TestSubmitTokensIncrease(t *testing.T) {
	dev, _ := newTestDevice(t)

	var last driver.SubmissionToken
	for i := 0; i < 3; i++ {
		l := dev.NewList("test")
		l.Begin()
		l.End()
		tok, err := dev.Submit(l)
		if err != nil {
			t.Fatalf("Submit failed: %v", err)
		}
		if tok <= last {
			t.Errorf("token %d not greater than previous %d", tok, last)
		}
		last = tok
	}
}

func TestWaitCompletesSubmission(t *testing.T) {
	dev, _ := newTestDevice(t)

	l := dev.NewList("test")
	l.Begin()
	l.End()
	tok, err := dev.Submit(l)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	done, err := dev.Wait(tok, time.Second)
	if err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if !done {
		t.Error("Wait reported incomplete")
	}
}

func TestWaitForIdleWithoutSubmissions(t *testing.T) {
	dev, _ := newTestDevice(t)
	if err := dev.WaitForIdle(); err != nil {
		t.Errorf("WaitForIdle on fresh device failed: %v", err)
	}
}

func TestUploadBuffersReusedAfterCompletion(t *testing.T) {
	dev, _ := newTestDevice(t)
	buf, _ := dev.CreateBuffer("target", 64, 0, false)
	data := make([]byte, 64)

	record := func() {
		l := dev.NewList("upload")
		l.Begin()
		if err := l.UpdateBuffer(buf, 0, data); err != nil {
			t.Fatalf("UpdateBuffer failed: %v", err)
		}
		l.End()
		tok, err := dev.Submit(l)
		if err != nil {
			t.Fatalf("Submit failed: %v", err)
		}
		if _, err := dev.Wait(tok, time.Second); err != nil {
			t.Fatalf("Wait failed: %v", err)
		}
	}

	record()
	dev.mu.Lock()
	freeAfterFirst := len(dev.free)
	dev.mu.Unlock()
	if freeAfterFirst != 1 {
		t.Fatalf("free pool has %d buffers after first cycle, want 1", freeAfterFirst)
	}

	// The second cycle must reuse the pooled buffer, not grow the pool.
	record()
	dev.mu.Lock()
	freeAfterSecond := len(dev.free)
	dev.mu.Unlock()
	if freeAfterSecond != 1 {
		t.Errorf("free pool has %d buffers after second cycle, want 1", freeAfterSecond)
	}
}

func TestDisposeFreesUnsubmittedCommandBuffer(t *testing.T) {
	dev, mem := newTestDevice(t)

	l := dev.NewList("abandoned")
	l.Begin()
	if err := l.End(); err != nil {
		t.Fatalf("End failed: %v", err)
	}
	l.Dispose()

	if got := mem.TraceCount("FreeCommandBuffer"); got != 1 {
		t.Errorf("FreeCommandBuffer traced %d times, want 1; trace: %v", got, mem.Trace())
	}
	// The freed command buffer is gone; the list must be re-recorded
	// before it can be submitted.
	if _, err := dev.Submit(l); !errors.Is(err, cmdlist.ErrNotEnded) {
		t.Errorf("Submit after Dispose = %v, want ErrNotEnded", err)
	}
}

func TestDisposeReturnsUploadsToPool(t *testing.T) {
	dev, _ := newTestDevice(t)
	buf, _ := dev.CreateBuffer("target", 64, 0, false)

	l := dev.NewList("upload")
	l.Begin()
	if err := l.UpdateBuffer(buf, 0, make([]byte, 64)); err != nil {
		t.Fatalf("UpdateBuffer failed: %v", err)
	}
	l.Dispose()

	dev.mu.Lock()
	defer dev.mu.Unlock()
	if len(dev.free) != 1 {
		t.Errorf("free pool has %d buffers after dispose, want 1", len(dev.free))
	}
	if len(dev.leased) != 0 {
		t.Errorf("%d buffers still leased after dispose, want 0", len(dev.leased))
	}
}
