package mirror

import (
	"errors"
	"fmt"
)

// Slot is the semantic operation a transport token stands for.
type Slot int

const (
	SlotAuth Slot = iota + 1
	SlotList
	SlotGet
)

func (s Slot) String() string {
	switch s {
	case SlotAuth:
		return "AUTH"
	case SlotList:
		return "LIST"
	case SlotGet:
		return "GET"
	default:
		return fmt.Sprintf("Slot(%d)", int(s))
	}
}

// Correlator errors.
var (
	ErrTokenOutstanding = errors.New("mirror: token already outstanding")
	ErrSlotBusy         = errors.New("mirror: slot already has an outstanding token")
)

// correlator maps outstanding transport tokens to the slot they were issued
// for. A token is forgotten as soon as its completion has been resolved, so a
// duplicate completion resolves to nothing.
type correlator struct {
	bySlot  map[Slot]Token
	byToken map[Token]Slot
}

func newCorrelator() *correlator {
	return &correlator{
		bySlot:  make(map[Slot]Token),
		byToken: make(map[Token]Slot),
	}
}

// track records that token was issued for slot.
func (c *correlator) track(token Token, slot Slot) error {
	if prev, ok := c.byToken[token]; ok {
		return fmt.Errorf("%w: token %d (%s)", ErrTokenOutstanding, token, prev)
	}

	if prev, ok := c.bySlot[slot]; ok {
		return fmt.Errorf("%w: %s holds token %d", ErrSlotBusy, slot, prev)
	}

	c.bySlot[slot] = token
	c.byToken[token] = slot

	return nil
}

// owns reports which slot token belongs to without resolving it. Used for
// intermediate events (discovered entries, data, progress).
func (c *correlator) owns(token Token) (Slot, bool) {
	slot, ok := c.byToken[token]
	return slot, ok
}

// resolve looks up and forgets token. The boolean is false for a token that
// was never tracked or has already been resolved.
func (c *correlator) resolve(token Token) (Slot, bool) {
	slot, ok := c.byToken[token]
	if !ok {
		return 0, false
	}

	delete(c.byToken, token)
	delete(c.bySlot, slot)

	return slot, true
}

// outstanding returns the number of tokens awaiting completion.
func (c *correlator) outstanding() int {
	return len(c.byToken)
}

// reset forgets every outstanding token. Called when the transport is closed.
func (c *correlator) reset() {
	clear(c.bySlot)
	clear(c.byToken)
}
