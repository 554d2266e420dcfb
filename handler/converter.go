package handler

import (
	"context"

	"github.com/robert-malhotra/go-smartreader/internal/dtype"
	"github.com/robert-malhotra/go-smartreader/meta"
)

// Converter wraps a handler and changes the sample kind on read. It owns
// its child.
type Converter struct {
	child   Handler
	in, out dtype.Datatype
	scratch []byte
}

// NewConverter wraps child so that samples of kind in are delivered as out.
func NewConverter(child Handler, in, out dtype.Datatype) (*Converter, error) {
	if !dtype.CanConvert(in, out) {
		return nil, Errorf(UnsupportedConversion, "converter", child.Name(),
			"conversion from %s to %s on input is not supported", in, out)
	}
	return &Converter{child: child, in: in, out: out}, nil
}

func (c *Converter) Name() string { return c.child.Name() }

func (c *Converter) TypeName() string {
	return "Converter[" + c.out.String() + "," + c.in.String() + "](" + c.child.TypeName() + ")"
}

func (c *Converter) TotalLength() int64 { return c.child.TotalLength() }

// Child returns the wrapped handler.
func (c *Converter) Child() Handler { return c.child }

func (c *Converter) DescribeStructure(ctx context.Context, info *meta.Info, stack *Stack) error {
	return c.child.DescribeStructure(ctx, info, stack)
}

func (c *Converter) Read(info *meta.Info, offset int64, n int, want dtype.Datatype, dst []byte) error {
	if want != c.out {
		return Errorf(UnsupportedConversion, "converter read", c.Name(),
			"asked for %s but produces %s", want, c.out)
	}
	if c.in == c.out {
		return c.child.Read(info, offset, n, c.in, dst)
	}
	need := n * c.in.Size()
	if cap(c.scratch) < need {
		c.scratch = make([]byte, need)
	}
	buf := c.scratch[:need]
	if err := c.child.Read(info, offset, n, c.in, buf); err != nil {
		return err
	}
	if err := dtype.ConvertTo(dst, c.out, buf, c.in, n); err != nil {
		return &Error{Kind: UnsupportedConversion, Op: "converter read", Path: c.Name(), Err: err}
	}
	return nil
}

func (c *Converter) Close() error              { return c.child.Close() }
func (c *Converter) Reopen() error             { return c.child.Reopen() }
func (c *Converter) Compare(other Handler) int { return c.child.Compare(other) }

// Destroy releases the scratch buffer and destroys the child.
func (c *Converter) Destroy() error {
	c.scratch = nil
	return c.child.Destroy()
}
