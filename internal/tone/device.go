package tone

import "sync"

// deviceRefs counts the outputs sharing one process-wide sound device. The
// device is resumed when the first output opens and suspended when the last
// one closes.
type deviceRefs struct {
	mu      sync.Mutex
	n       int
	resume  func() error
	suspend func() error
}

func (d *deviceRefs) acquire() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.n == 0 {
		if err := d.resume(); err != nil {
			return err
		}
	}
	d.n++
	return nil
}

func (d *deviceRefs) release() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.n == 0 {
		return nil
	}
	d.n--
	if d.n == 0 {
		return d.suspend()
	}
	return nil
}

func (d *deviceRefs) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.n
}
