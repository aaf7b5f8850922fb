package infer

import (
	"errors"

	"github.com/emergingrobotics/npu-segment/pkg/device"
)

// Binding is a device buffer bound to one tensor slot of one session
type Binding struct {
	owner    *Binder
	attr     device.TensorAttr
	mem      *device.Memory
	released bool
}

// Attr returns the tensor slot the buffer is bound to
func (b *Binding) Attr() device.TensorAttr {
	return b.attr
}

// Data returns the host view of the buffer. It must not be used after the
// binding is released.
func (b *Binding) Data() []byte {
	if b.released {
		return nil
	}
	return b.mem.Data
}

// Released reports whether the buffer has been freed
func (b *Binding) Released() bool {
	return b.released
}

// Binder allocates tensor buffers sized from a session's reported shapes,
// binds them, and tracks them so that every buffer is released exactly
// once. Callers defer ReleaseAll right after creating the Binder.
type Binder struct {
	session device.Session
	live    []*Binding
}

// NewBinder creates a binder for a session
func NewBinder(session device.Session) *Binder {
	return &Binder{session: session}
}

// QueryShape asks the session for the attributes of a tensor slot
func (b *Binder) QueryShape(kind device.TensorKind, index int) (device.TensorAttr, error) {
	if b.session == nil {
		return device.TensorAttr{}, &ShapeQueryError{Kind: kind, Index: index, Err: ErrNilSession}
	}

	attr, err := b.session.QueryTensor(kind, index)
	if err != nil {
		return device.TensorAttr{}, &ShapeQueryError{Kind: kind, Index: index, Err: err}
	}
	if !attr.Shape.Valid() {
		return device.TensorAttr{}, &ShapeQueryError{Kind: kind, Index: index, Err: ErrDegenerateShape}
	}
	if attr.Size == 0 {
		attr.Size = attr.Shape.Size()
	}
	return attr, nil
}

// BindInput allocates a buffer for the input slot, copies pixels into it
// and binds it. pixels must hold exactly attr.Size bytes.
func (b *Binder) BindInput(pixels []byte, attr device.TensorAttr) (*Binding, error) {
	if len(pixels) != attr.Size {
		return nil, &BindError{Kind: attr.Kind, Size: attr.Size, Err: ErrBufferSizeMismatch}
	}
	return b.bind(attr, pixels)
}

// BindOutput allocates an uninitialized buffer for the output slot and
// binds it
func (b *Binder) BindOutput(attr device.TensorAttr) (*Binding, error) {
	return b.bind(attr, nil)
}

func (b *Binder) bind(attr device.TensorAttr, fill []byte) (*Binding, error) {
	if b.session == nil {
		return nil, &BindError{Kind: attr.Kind, Size: attr.Size, Err: ErrNilSession}
	}

	mem, err := b.session.CreateMemory(attr.Size)
	if err != nil {
		return nil, &BindError{Kind: attr.Kind, Size: attr.Size, Err: err}
	}

	if fill != nil {
		copy(mem.Data, fill)
	}

	if err := b.session.Bind(mem, attr); err != nil {
		// The buffer never became a binding, so it is freed here rather
		// than by ReleaseAll.
		if freeErr := b.session.FreeMemory(mem); freeErr != nil {
			err = errors.Join(err, freeErr)
		}
		return nil, &BindError{Kind: attr.Kind, Size: attr.Size, Err: err}
	}

	binding := &Binding{owner: b, attr: attr, mem: mem}
	b.live = append(b.live, binding)
	return binding, nil
}

// Release unbinds and frees one binding. Bindings made by another Binder
// are left untouched.
func (b *Binder) Release(binding *Binding) error {
	if binding == nil || binding.owner != b {
		return ErrForeignBinding
	}
	if binding.released {
		return ErrAlreadyReleased
	}
	binding.released = true

	for i, live := range b.live {
		if live == binding {
			b.live = append(b.live[:i], b.live[i+1:]...)
			break
		}
	}

	return b.session.FreeMemory(binding.mem)
}

// Live returns the number of bindings not yet released
func (b *Binder) Live() int {
	return len(b.live)
}

// ReleaseAll releases every live binding, most recent first. It is safe to
// call after some or all bindings were released individually.
func (b *Binder) ReleaseAll() error {
	var errs []error
	for len(b.live) > 0 {
		last := b.live[len(b.live)-1]
		if err := b.Release(last); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
