// this code is derived from https://github.com/brunocalza/go-bustub
// there is license and copyright notice in licenses/go-bustub dir

package buffer

// FrameID is the type for buffer pool frame ids
type FrameID uint32

// ClockReplacer picks victim frames with the clock algorithm: every
// candidate gets a reference bit which buys it one trip around the clock.
type ClockReplacer struct {
	cList     *circularList
	clockHand **node
}

// Victim removes and returns the next victim frame, or nil when every
// frame is pinned.
func (c *ClockReplacer) Victim() *FrameID {
	if c.cList.size == 0 {
		return nil
	}

	var victimFrameID *FrameID
	currentNode := *c.clockHand
	for {
		if currentNode.value {
			currentNode.value = false
			c.clockHand = &currentNode.next
			currentNode = currentNode.next
		} else {
			frameID := currentNode.key
			victimFrameID = &frameID

			c.clockHand = &currentNode.next

			c.cList.remove(currentNode.key)
			return victimFrameID
		}
	}
}

// Unpin adds a frame to the replacer, making it a victim candidate
func (c *ClockReplacer) Unpin(id FrameID) {
	if !c.cList.hasKey(id) {
		c.cList.insert(id, true)
		if c.cList.size == 1 {
			c.clockHand = &c.cList.head
		}
	}
}

// Pin removes a frame from the replacer; it must not be victimized until
// it is unpinned again
func (c *ClockReplacer) Pin(id FrameID) {
	node := c.cList.find(id)
	if node == nil {
		return
	}

	if (*c.clockHand) == node {
		c.clockHand = &(*c.clockHand).next
	}
	c.cList.remove(id)
}

// Size returns the number of victim candidates
func (c *ClockReplacer) Size() uint32 {
	return c.cList.size
}

// NewClockReplacer instantiates a new clock replacer
func NewClockReplacer(poolSize uint32) *ClockReplacer {
	cList := newCircularList(poolSize)
	return &ClockReplacer{cList, &cList.head}
}
