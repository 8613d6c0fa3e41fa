// ABOUTME: Cursor walks a table one record at a time in ascending key order.
// ABOUTME: A cursor is finite and cannot be restarted.
package storage

import (
	"github.com/harperreed/trackle/internal/models"
)

// Cursor iterates the records of one table.
type Cursor struct {
	table  string
	it     Iterator
	rec    models.Record
	err    error
	closed bool
}

// Next advances to the next record. It returns false at the end of the
// table or on error; check Err afterwards.
func (c *Cursor) Next() bool {
	if c.closed || c.err != nil {
		return false
	}
	if !c.it.Next() {
		if err := c.it.Err(); err != nil {
			c.err = backendErr("scan", c.table, err)
		}
		c.rec = nil
		return false
	}
	raw, err := c.it.Value()
	if err != nil {
		c.err = backendErr("read record", c.table, err)
		return false
	}
	rec, err := decodeRecord(raw)
	if err != nil {
		c.err = backendErr("decode record", c.table, err)
		return false
	}
	c.rec = rec
	return true
}

// Record returns the current record.
func (c *Cursor) Record() models.Record {
	return c.rec
}

// Err returns the first error the cursor hit.
func (c *Cursor) Err() error {
	return c.err
}

// Close releases the cursor. It is safe to call more than once.
func (c *Cursor) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	if err := c.it.Close(); err != nil && c.err == nil {
		c.err = backendErr("scan", c.table, err)
	}
	return c.err
}
