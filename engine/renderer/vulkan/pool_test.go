package vulkan

import (
	"errors"
	"sync"
	"testing"
)

func TestSafeCallSerializesGroup(t *testing.T) {
	pool := NewVulkanLockPool()
	var wg sync.WaitGroup
	inside, maxInside := 0, 0
	var mu sync.Mutex
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = pool.SafeCall(PipelineManagement, func() error {
				mu.Lock()
				inside++
				if inside > maxInside {
					maxInside = inside
				}
				mu.Unlock()

				mu.Lock()
				inside--
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()
	if maxInside != 1 {
		t.Fatalf("%d callers inside one group at once", maxInside)
	}
}

func TestSafeQueueCallNests(t *testing.T) {
	pool := NewVulkanLockPool()
	pool.SetQueueFamily(0)
	pool.SetQueueFamily(1)
	want := errors.New("present failed")
	err := pool.SafeQueueCall(0, func() error {
		return pool.SafeQueueCall(1, func() error { return want })
	})
	if !errors.Is(err, want) {
		t.Fatalf("got %v", err)
	}
}
