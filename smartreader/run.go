package smartreader

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/robert-malhotra/go-smartreader/formats"
	"github.com/robert-malhotra/go-smartreader/handler"
	"github.com/robert-malhotra/go-smartreader/internal/dtype"
	"github.com/robert-malhotra/go-smartreader/internal/wildcard"
	"github.com/robert-malhotra/go-smartreader/meta"
	"github.com/robert-malhotra/go-smartreader/pghmri"
)

// Option configures a run.
type Option func(*runOptions)

type runOptions struct {
	table  handler.Table
	out    io.Writer
	create func(path string) (Destination, error)
	now    func() time.Time
}

func defaultRunOptions() *runOptions {
	return &runOptions{
		table: formats.Default(),
		out:   os.Stderr,
		create: func(path string) (Destination, error) {
			return pghmri.Create(path)
		},
		now: time.Now,
	}
}

// WithTable sets the format dispatch table.
func WithTable(t handler.Table) Option {
	return func(o *runOptions) { o.table = t }
}

// WithOutput sets where the format summary and verbose dumps go.
func WithOutput(w io.Writer) Option {
	return func(o *runOptions) { o.out = w }
}

// WithDestination replaces the Pgh MRI writer.
func WithDestination(create func(path string) (Destination, error)) Option {
	return func(o *runOptions) { o.create = create }
}

// WithClock sets the time source used for the history entry.
func WithClock(now func() time.Time) Option {
	return func(o *runOptions) { o.now = now }
}

// Run converts cfg.Input into the dataset cfg.Output. args is the command
// line recorded in the output history.
func Run(ctx context.Context, cfg *Config, args []string, opts ...Option) error {
	o := defaultRunOptions()
	for _, opt := range opts {
		opt(o)
	}
	log := zerolog.Ctx(ctx)

	info, err := cfg.Info()
	if err != nil {
		return err
	}

	h, err := openInput(ctx, o.table, cfg.Input, info)
	if err != nil {
		return err
	}
	stack := &handler.Stack{}
	stack.Push(h, info)

	var dst Destination
	closeDst := func() {
		if dst != nil {
			dst.Close()
		}
	}
	for stack.Len() > 0 {
		pair, _ := stack.Pop()
		if err := processChunk(ctx, o, cfg, pair, stack, &dst); err != nil {
			drain(stack)
			closeDst()
			return err
		}
	}
	if dst == nil {
		return handler.Errorf(handler.Structural, "run", cfg.Input, "input produced no chunks")
	}

	entry := o.now().Format("[2006-01-02 15:04:05] ") + strings.Join(args, " ")
	if err := dst.AddHistory(entry); err != nil {
		closeDst()
		return destError("history", err)
	}
	if err := dst.Close(); err != nil {
		return handler.WrapIO("close", cfg.Output, err)
	}
	if cfg.Verbose {
		log.Info().Str("output", cfg.Output).Msg("data converted to standard format")
	}
	return nil
}

func drain(stack *handler.Stack) {
	for stack.Len() > 0 {
		p, _ := stack.Pop()
		p.Handler.Destroy()
	}
}

// openInput picks the handler for the input. In multi mode the first
// matching file decides the format and every match becomes a child of an
// aggregator.
func openInput(ctx context.Context, table handler.Table, input string, info *meta.Info) (handler.Handler, error) {
	if info.Bool("ignoreheader") {
		create := handler.NewRaw
		if handler.Datatype(info, handler.KeyDatatypeIn) == dtype.Uint16 {
			create = handler.NewUShort
		}
		return create(input, info)
	}

	if !info.Bool("multi") {
		if _, err := os.Stat(input); err != nil {
			return nil, handler.WrapIO("stat", input, err)
		}
		return table.Open(ctx, input, info)
	}

	names, err := wildcard.Expand(input)
	if err != nil {
		return nil, &handler.Error{Kind: handler.Config, Op: "multi", Path: input, Err: err}
	}
	entry, err := table.Find(ctx, names[0])
	if err != nil {
		return nil, err
	}
	multi := handler.NewMulti()
	for _, name := range names {
		kid, err := entry.Create(name, info)
		if err != nil {
			multi.Destroy()
			return nil, err
		}
		multi.AddFile(kid)
	}
	return multi, nil
}

// processChunk describes, checks and transfers one pair, destroying its
// handler when done.
func processChunk(ctx context.Context, o *runOptions, cfg *Config, pair handler.Pair, stack *handler.Stack, dst *Destination) (err error) {
	log := zerolog.Ctx(ctx)
	h, info := pair.Handler, pair.Info
	defer func() {
		if derr := h.Destroy(); err == nil {
			err = derr
		}
	}()

	if err := h.DescribeStructure(ctx, info, stack); err != nil {
		return err
	}
	if err := Reconcile(ctx, info); err != nil {
		Dump(o.out, info)
		return err
	}
	if err := Check(info); err != nil {
		Dump(o.out, info)
		return err
	}

	in, out := handler.Datatype(info, handler.KeyHandlerOut), handler.Datatype(info, handler.KeyDatatypeOut)
	if in != out {
		log.Debug().Str("chunk", info.String("chunkname")).Stringer("from", in).Stringer("to", out).
			Msg("chunk needs a converter")
		c, err := handler.NewConverter(h, in, out)
		if err != nil {
			return err
		}
		h = c
	}

	if cfg.Verbose {
		Dump(o.out, info)
	}

	if *dst == nil {
		WriteSummary(o.out, info, h)
		d, err := o.create(cfg.Output)
		if err != nil {
			return handler.WrapIO("create", cfg.Output, err)
		}
		*dst = d
	}
	return Transfer(ctx, h, info, *dst)
}
